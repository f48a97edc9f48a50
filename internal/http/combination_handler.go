package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/variant"
)

const maxSelectionBytes = 64 << 10

type resolveResponse struct {
	CombinationID string `json:"combinationId"`
}

// ResolveCombination takes the raw selection as the request body, either
// {"color":"Red"} or [{"type":"color","value":"Red"}].
func (h *Handler) ResolveCombination(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxSelectionBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	sel, err := variant.ParseSelection(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.combinations.Resolve(r.Context(), chi.URLParam(r, "productId"), sel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{CombinationID: id})
}

func (h *Handler) ListCombinations(w http.ResponseWriter, r *http.Request) {
	combos, err := h.combinations.ListByProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, combos)
}

func (h *Handler) GetCombination(w http.ResponseWriter, r *http.Request) {
	c, err := h.combinations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type priceRequest struct {
	PriceDelta *decimal.Decimal `json:"priceDelta"`
}

func (h *Handler) SetPriceDelta(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decodeJSON(r, &req); err != nil || req.PriceDelta == nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.combinations.SetPriceDelta(r.Context(), id, *req.PriceDelta); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) ArchiveCombination(w http.ResponseWriter, r *http.Request) {
	if err := h.combinations.Archive(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
