package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/ledger"
)

const (
	defaultHistoryLimit = 500
	maxHistoryLimit     = 10000
)

type stockResponse struct {
	CombinationID string `json:"combinationId"`
	Stock         int64  `json:"stock"`
}

func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stock, err := h.stock.CurrentStock(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{CombinationID: id, Stock: stock})
}

type movementRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Order-linked movements are written by the reservation coordinator only.
	reason := ledger.Reason(req.Reason)
	if reason != ledger.ReasonRestock && reason != ledger.ReasonManualAdjustment {
		h.fail(w, r, fmt.Errorf("%w: reason %q cannot be recorded directly", ledger.ErrInvalidMovement, req.Reason))
		return
	}

	rec, err := h.stock.RecordMovement(r.Context(), ledger.MovementInput{
		CombinationID: chi.URLParam(r, "id"),
		Delta:         req.Delta,
		Reason:        reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListMovements returns the oldest movements first, at most ?limit of them.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		limit = n
	}

	movements := make([]ledger.Movement, 0)
	for m, err := range h.stock.History(r.Context(), chi.URLParam(r, "id")) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		movements = append(movements, m)
		if len(movements) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, movements)
}
