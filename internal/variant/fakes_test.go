package variant

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/catalog"
)

type memStore struct {
	mu      sync.Mutex
	values  map[string]Value
	combos  map[string]Combination
	active  map[string]string
	creates int
}

func newMemStore() *memStore {
	return &memStore{
		values: map[string]Value{},
		combos: map[string]Combination{},
		active: map[string]string{},
	}
}

func (s *memStore) FindActive(ctx context.Context, productID, contentKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.active[productID+"|"+contentKey]; ok {
		return id, nil
	}
	return "", ErrUnknownCombination
}

func (s *memStore) Create(ctx context.Context, nc NewCombination) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activeKey := nc.ProductID + "|" + nc.ContentKey
	if _, ok := s.active[activeKey]; ok {
		return "", ErrDuplicateCombination
	}

	c := Combination{ID: nc.ID, ProductID: nc.ProductID, ContentKey: nc.ContentKey, Active: true, Members: []Value{}, CreatedAt: nc.CreatedAt}
	for _, p := range nc.Pairs {
		c.Members = append(c.Members, s.upsertLocked(Value{ID: nc.ID + "-" + p.TypeID, ProductID: nc.ProductID, TypeID: p.TypeID, TypeName: p.TypeName, Label: p.Label}))
	}
	s.combos[c.ID] = c
	s.active[activeKey] = c.ID
	s.creates++
	return c.ID, nil
}

func (s *memStore) upsertLocked(v Value) Value {
	key := v.ProductID + "|" + v.TypeID + "|" + v.Label
	if existing, ok := s.values[key]; ok {
		if v.ColorHex != "" {
			existing.ColorHex = v.ColorHex
			s.values[key] = existing
		}
		return existing
	}
	s.values[key] = v
	return v
}

func (s *memStore) UpsertValue(ctx context.Context, v Value) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(v), nil
}

func (s *memStore) Get(ctx context.Context, combinationID string) (Combination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combos[combinationID]
	if !ok {
		return Combination{}, ErrUnknownCombination
	}
	return c, nil
}

func (s *memStore) ListByProduct(ctx context.Context, productID string) ([]Combination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Combination
	for _, c := range s.combos {
		if c.ProductID == productID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) SetPriceDelta(ctx context.Context, combinationID string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combos[combinationID]
	if !ok {
		return ErrUnknownCombination
	}
	c.PriceDelta = delta
	s.combos[combinationID] = c
	return nil
}

func (s *memStore) Archive(ctx context.Context, combinationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combos[combinationID]
	if !ok {
		return ErrUnknownCombination
	}
	if c.Active {
		delete(s.active, c.ProductID+"|"+c.ContentKey)
	}
	c.Active = false
	s.combos[combinationID] = c
	return nil
}

// racingStore lets a competing writer create the combination right before the
// first Create call, so that call loses the insert.
type racingStore struct {
	*memStore
	raced bool
}

func (s *racingStore) Create(ctx context.Context, nc NewCombination) (string, error) {
	if !s.raced {
		s.raced = true
		competitor := nc
		competitor.ID = "competitor"
		if _, err := s.memStore.Create(ctx, competitor); err != nil {
			return "", err
		}
		return "", ErrDuplicateCombination
	}
	return s.memStore.Create(ctx, nc)
}

type fakeTypes struct {
	types []catalog.VariantType
}

func (f fakeTypes) List(ctx context.Context) ([]catalog.VariantType, error) {
	return append([]catalog.VariantType(nil), f.types...), nil
}

func (f fakeTypes) Refresh(ctx context.Context) ([]catalog.VariantType, error) {
	return f.List(ctx)
}

// staleTypes serves a cached list that is missing types the catalog already has.
type staleTypes struct {
	cached    []catalog.VariantType
	current   []catalog.VariantType
	refreshes int
}

func (f *staleTypes) List(ctx context.Context) ([]catalog.VariantType, error) {
	return append([]catalog.VariantType(nil), f.cached...), nil
}

func (f *staleTypes) Refresh(ctx context.Context) ([]catalog.VariantType, error) {
	f.refreshes++
	f.cached = append([]catalog.VariantType(nil), f.current...)
	return f.List(ctx)
}

type fakeProducts struct {
	mandatory map[string][]string
}

func (f fakeProducts) Exists(ctx context.Context, productID string) (bool, error) {
	_, ok := f.mandatory[productID]
	return ok, nil
}

func (f fakeProducts) MandatoryTypes(ctx context.Context, productID string) ([]string, error) {
	return f.mandatory[productID], nil
}

var testTypes = []catalog.VariantType{
	{ID: "type-color", Name: "color", SortOrder: 1},
	{ID: "type-size", Name: "size", SortOrder: 2},
	{ID: "type-fit", Name: "fit", SortOrder: 3},
}

var testProducts = fakeProducts{mandatory: map[string][]string{
	"tshirt": {"color", "size"},
	"poster": nil,
}}
