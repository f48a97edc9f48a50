package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type registerTypeRequest struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

func (h *Handler) RegisterVariantType(w http.ResponseWriter, r *http.Request) {
	var req registerTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	vt, err := h.types.Register(r.Context(), req.Name, req.SortOrder)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vt)
}

func (h *Handler) ListVariantTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.types.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

type createProductRequest struct {
	Name           string   `json:"name"`
	MandatoryTypes []string `json:"mandatoryTypes"`
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	p, err := h.products.Create(r.Context(), req.Name, req.MandatoryTypes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type defineValueRequest struct {
	Type     string `json:"type"`
	Label    string `json:"label"`
	ColorHex string `json:"colorHex"`
}

func (h *Handler) DefineValue(w http.ResponseWriter, r *http.Request) {
	var req defineValueRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	v, err := h.combinations.DefineValue(r.Context(), chi.URLParam(r, "productId"), req.Type, req.Label, req.ColorHex)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}
