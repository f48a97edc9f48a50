package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/ledger"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/product"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/reservation"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/variant"
)

var timeNow = time.Now

type TypeCatalog interface {
	Register(ctx context.Context, name string, sortOrder int) (catalog.VariantType, error)
	List(ctx context.Context) ([]catalog.VariantType, error)
}

type Products interface {
	Create(ctx context.Context, name string, mandatoryTypes []string) (product.Product, error)
}

type Combinations interface {
	Resolve(ctx context.Context, productID string, sel variant.Selection) (string, error)
	DefineValue(ctx context.Context, productID, typeName, label, colorHex string) (variant.Value, error)
	Get(ctx context.Context, combinationID string) (variant.Combination, error)
	ListByProduct(ctx context.Context, productID string) ([]variant.Combination, error)
	SetPriceDelta(ctx context.Context, combinationID string, delta decimal.Decimal) error
	Archive(ctx context.Context, combinationID string) error
}

type Stock interface {
	CurrentStock(ctx context.Context, combinationID string) (int64, error)
	RecordMovement(ctx context.Context, in ledger.MovementInput) (ledger.Receipt, error)
	History(ctx context.Context, combinationID string) iter.Seq2[ledger.Movement, error]
}

type Reservations interface {
	Reserve(ctx context.Context, orderLineID, combinationID string, quantity int) (reservation.Result, error)
	Release(ctx context.Context, orderLineID string) error
	Fulfill(ctx context.Context, orderLineID string) error
	Get(ctx context.Context, orderLineID string) (reservation.Reservation, error)
}

type Deps struct {
	Types        TypeCatalog
	Products     Products
	Combinations Combinations
	Stock        Stock
	Reservations Reservations
}

type Handler struct {
	types        TypeCatalog
	products     Products
	combinations Combinations
	stock        Stock
	reservations Reservations
	logger       zerolog.Logger
}

func NewHandler(d Deps, logger zerolog.Logger) *Handler {
	return &Handler{
		types:        d.Types,
		products:     d.Products,
		combinations: d.Combinations,
		stock:        d.Stock,
		reservations: d.Reservations,
		logger:       logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps domain errors to HTTP statuses. More specific errors are
// checked first: an unknown product also matches ErrInvalidSelection.
func statusFor(err error) int {
	switch {
	case errors.Is(err, variant.ErrProductNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, variant.ErrUnknownCombination),
		errors.Is(err, reservation.ErrReservationNotFound),
		errors.Is(err, catalog.ErrTypeNotFound):
		return http.StatusNotFound
	case errors.Is(err, variant.ErrInvalidSelection),
		errors.Is(err, variant.ErrInvalidValue),
		errors.Is(err, ledger.ErrInvalidMovement),
		errors.Is(err, catalog.ErrInvalidType),
		errors.Is(err, product.ErrInvalidProduct),
		errors.Is(err, product.ErrUnknownType),
		errors.Is(err, reservation.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrDuplicateType),
		errors.Is(err, ledger.ErrInsufficientStock),
		errors.Is(err, ledger.ErrCombinationInactive),
		errors.Is(err, reservation.ErrNotReserved),
		errors.Is(err, reservation.ErrLineConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
