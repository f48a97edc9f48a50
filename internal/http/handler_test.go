package httpapi

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/ledger"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/product"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/reservation"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/variant"
)

type fakeTypes struct {
	types []catalog.VariantType
	err   error
}

func (f *fakeTypes) Register(_ context.Context, name string, sortOrder int) (catalog.VariantType, error) {
	if f.err != nil {
		return catalog.VariantType{}, f.err
	}
	vt := catalog.VariantType{ID: "t-" + name, Name: name, SortOrder: sortOrder}
	f.types = append(f.types, vt)
	return vt, nil
}

func (f *fakeTypes) List(context.Context) ([]catalog.VariantType, error) {
	return f.types, f.err
}

type fakeProducts struct {
	err error
}

func (f *fakeProducts) Create(_ context.Context, name string, mandatory []string) (product.Product, error) {
	if f.err != nil {
		return product.Product{}, f.err
	}
	return product.Product{ID: "p1", Name: name, MandatoryTypes: mandatory}, nil
}

type fakeCombinations struct {
	resolved variant.Selection
	price    decimal.Decimal
	archived string
	err      error
}

func (f *fakeCombinations) Resolve(_ context.Context, productID string, sel variant.Selection) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.resolved = sel
	return "c-" + productID, nil
}

func (f *fakeCombinations) DefineValue(_ context.Context, productID, typeName, label, colorHex string) (variant.Value, error) {
	if f.err != nil {
		return variant.Value{}, f.err
	}
	return variant.Value{ID: "v1", ProductID: productID, TypeName: typeName, Label: label, ColorHex: colorHex}, nil
}

func (f *fakeCombinations) Get(_ context.Context, id string) (variant.Combination, error) {
	if f.err != nil {
		return variant.Combination{}, f.err
	}
	return variant.Combination{ID: id, ProductID: "p1", Active: true}, nil
}

func (f *fakeCombinations) ListByProduct(_ context.Context, productID string) ([]variant.Combination, error) {
	return []variant.Combination{{ID: "c1", ProductID: productID}}, f.err
}

func (f *fakeCombinations) SetPriceDelta(_ context.Context, _ string, delta decimal.Decimal) error {
	f.price = delta
	return f.err
}

func (f *fakeCombinations) Archive(_ context.Context, id string) error {
	f.archived = id
	return f.err
}

type fakeStock struct {
	stock     int64
	movements []ledger.Movement
	recorded  []ledger.MovementInput
	err       error
}

func (f *fakeStock) CurrentStock(context.Context, string) (int64, error) {
	return f.stock, f.err
}

func (f *fakeStock) RecordMovement(_ context.Context, in ledger.MovementInput) (ledger.Receipt, error) {
	if f.err != nil {
		return ledger.Receipt{}, f.err
	}
	f.recorded = append(f.recorded, in)
	f.stock += in.Delta
	return ledger.Receipt{MovementID: "m1", Balance: f.stock}, nil
}

func (f *fakeStock) History(context.Context, string) iter.Seq2[ledger.Movement, error] {
	return func(yield func(ledger.Movement, error) bool) {
		if f.err != nil {
			yield(ledger.Movement{}, f.err)
			return
		}
		for _, m := range f.movements {
			if !yield(m, nil) {
				return
			}
		}
	}
}

type fakeReservations struct {
	result reservation.Result
	err    error
	calls  []string
}

func (f *fakeReservations) Reserve(_ context.Context, line, combination string, qty int) (reservation.Result, error) {
	f.calls = append(f.calls, fmt.Sprintf("reserve %s %s %d", line, combination, qty))
	return f.result, f.err
}

func (f *fakeReservations) Release(_ context.Context, line string) error {
	f.calls = append(f.calls, "release "+line)
	return f.err
}

func (f *fakeReservations) Fulfill(_ context.Context, line string) error {
	f.calls = append(f.calls, "fulfill "+line)
	return f.err
}

func (f *fakeReservations) Get(_ context.Context, line string) (reservation.Reservation, error) {
	if f.err != nil {
		return reservation.Reservation{}, f.err
	}
	return reservation.Reservation{OrderLineID: line, State: reservation.StateReserved}, nil
}

type fixture struct {
	types        *fakeTypes
	products     *fakeProducts
	combinations *fakeCombinations
	stock        *fakeStock
	reservations *fakeReservations
	router       http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		types:        &fakeTypes{},
		products:     &fakeProducts{},
		combinations: &fakeCombinations{},
		stock:        &fakeStock{},
		reservations: &fakeReservations{result: reservation.Result{State: reservation.StateReserved}},
	}
	h := NewHandler(Deps{
		Types:        f.types,
		Products:     f.products,
		Combinations: f.combinations,
		Stock:        f.stock,
		Reservations: f.reservations,
	}, zerolog.Nop())
	f.router = NewRouter(h, zerolog.Nop())
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", strings.TrimSpace(rec.Body.String()))
}

func TestVariantTypes(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/variant-types", `{"name":"color","sortOrder":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"color"`)

	rec = f.do(http.MethodGet, "/api/variant-types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"color"`)

	f.types.err = fmt.Errorf("register: %w", catalog.ErrDuplicateType)
	rec = f.do(http.MethodPost, "/api/variant-types", `{"name":"color","sortOrder":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, "/api/variant-types", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveCombination(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/products/tshirt/combinations/resolve", `{"color":"Red","size":"M"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"combinationId":"c-tshirt"}`, rec.Body.String())
	assert.Equal(t, variant.Selection{"color": "Red", "size": "M"}, f.combinations.resolved)

	rec = f.do(http.MethodPost, "/api/products/tshirt/combinations/resolve", `[{"type":"color","value":"Blue"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, variant.Selection{"color": "Blue"}, f.combinations.resolved)

	rec = f.do(http.MethodPost, "/api/products/tshirt/combinations/resolve", `{"color":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.combinations.err = fmt.Errorf("%w: %w: nope", variant.ErrInvalidSelection, variant.ErrProductNotFound)
	rec = f.do(http.MethodPost, "/api/products/nope/combinations/resolve", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.combinations.err = fmt.Errorf("%w: missing size", variant.ErrInvalidSelection)
	rec = f.do(http.MethodPost, "/api/products/tshirt/combinations/resolve", `{"color":"Red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCombinationAdmin(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPatch, "/api/combinations/c1/price", `{"priceDelta":"2.50"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.combinations.price.Equal(decimal.RequireFromString("2.5")))

	rec = f.do(http.MethodPatch, "/api/combinations/c1/price", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodDelete, "/api/combinations/c1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "c1", f.combinations.archived)

	rec = f.do(http.MethodGet, "/api/combinations/c1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"c1"`)

	rec = f.do(http.MethodPost, "/api/products/p1/values", `{"type":"color","label":"Red","colorHex":"#FF0000"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"colorHex":"#FF0000"`)

	f.combinations.err = variant.ErrUnknownCombination
	rec = f.do(http.MethodGet, "/api/combinations/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStockEndpoints(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/combinations/c1/movements", `{"delta":10,"reason":"restock"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, ledger.MovementInput{CombinationID: "c1", Delta: 10, Reason: ledger.ReasonRestock}, f.stock.recorded[0])

	rec = f.do(http.MethodGet, "/api/combinations/c1/stock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"combinationId":"c1","stock":10}`, rec.Body.String())

	f.stock.movements = []ledger.Movement{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}
	rec = f.do(http.MethodGet, "/api/combinations/c1/movements?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"m2"`)
	assert.NotContains(t, rec.Body.String(), `"m3"`)

	rec = f.do(http.MethodGet, "/api/combinations/c1/movements?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, body := range []string{
		`{"delta":3,"reason":"order-cancellation"}`,
		`{"delta":-3,"reason":"order-reservation"}`,
		`{"delta":3,"reason":"gift"}`,
	} {
		rec = f.do(http.MethodPost, "/api/combinations/c1/movements", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Len(t, f.stock.recorded, 1, "rejected movements must not reach the ledger")

	f.stock.err = &ledger.InsufficientStockError{CombinationID: "c1", Available: 1, Requested: 5}
	rec = f.do(http.MethodPost, "/api/combinations/c1/movements", `{"delta":-5,"reason":"manual-adjustment"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "available 1")

	f.stock.err = ledger.ErrUnknownCombination
	rec = f.do(http.MethodGet, "/api/combinations/zz/movements", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReservationEndpoints(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/reservations", `{"orderLineId":"l1","combinationId":"c1","quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"RESERVED"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/reservations/l1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orderLineId":"l1"`)

	rec = f.do(http.MethodPost, "/api/reservations/l1/release", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodPost, "/api/reservations/l1/fulfill", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, []string{"reserve l1 c1 3", "release l1", "fulfill l1"}, f.reservations.calls)

	f.reservations.err = fmt.Errorf("%w: l2", reservation.ErrNotReserved)
	rec = f.do(http.MethodPost, "/api/reservations/l2/release", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"duplicate type":        {catalog.ErrDuplicateType, http.StatusConflict},
		"invalid selection":     {variant.ErrInvalidSelection, http.StatusBadRequest},
		"unknown product":       {fmt.Errorf("%w: %w", variant.ErrInvalidSelection, variant.ErrProductNotFound), http.StatusNotFound},
		"unknown combination":   {ledger.ErrUnknownCombination, http.StatusNotFound},
		"insufficient stock":    {&ledger.InsufficientStockError{}, http.StatusConflict},
		"invalid movement":      {ledger.ErrInvalidMovement, http.StatusBadRequest},
		"archived combination":  {ledger.ErrCombinationInactive, http.StatusConflict},
		"not reserved":          {reservation.ErrNotReserved, http.StatusConflict},
		"line conflict":         {reservation.ErrLineConflict, http.StatusConflict},
		"reservation not found": {reservation.ErrReservationNotFound, http.StatusNotFound},
		"unknown mandatory":     {product.ErrUnknownType, http.StatusBadRequest},
		"anything else":         {errors.New("boom"), http.StatusInternalServerError},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	f := newFixture()
	f.types.err = errors.New("pq: password authentication failed")

	rec := f.do(http.MethodGet, "/api/variant-types", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}
