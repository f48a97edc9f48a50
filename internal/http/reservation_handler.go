package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type reserveRequest struct {
	OrderLineID   string `json:"orderLineId"`
	CombinationID string `json:"combinationId"`
	Quantity      int    `json:"quantity"`
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	res, err := h.reservations.Reserve(r.Context(), req.OrderLineID, req.CombinationID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.Get(r.Context(), chi.URLParam(r, "lineId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	if err := h.reservations.Release(r.Context(), chi.URLParam(r, "lineId")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Fulfill(w http.ResponseWriter, r *http.Request) {
	if err := h.reservations.Fulfill(r.Context(), chi.URLParam(r, "lineId")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
