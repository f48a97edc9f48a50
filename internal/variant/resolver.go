package variant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/catalog"
)

const (
	defaultMaxAttempts = 3
	colorTypeName      = "color"
)

var colorHexPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ProductCatalog answers the two questions the resolver has about products.
type ProductCatalog interface {
	Exists(ctx context.Context, productID string) (bool, error)
	MandatoryTypes(ctx context.Context, productID string) ([]string, error)
}

// TypeCatalog lists the registered variant types. List may be served from a
// cache; Refresh always reads the source of truth.
type TypeCatalog interface {
	List(ctx context.Context) ([]catalog.VariantType, error)
	Refresh(ctx context.Context) ([]catalog.VariantType, error)
}

// Resolver maps a product and a selection to the one active combination for it,
// creating the combination on first use. It is the only creator of combinations.
type Resolver struct {
	store       Store
	types       TypeCatalog
	products    ProductCatalog
	logger      zerolog.Logger
	maxAttempts int
	now         func() time.Time
}

func NewResolver(store Store, types TypeCatalog, products ProductCatalog, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:       store,
		types:       types,
		products:    products,
		logger:      logger.With().Str("component", "combination-resolver").Logger(),
		maxAttempts: defaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the combination id for sel on productID.
func (r *Resolver) Resolve(ctx context.Context, productID string, sel Selection) (string, error) {
	productID = strings.TrimSpace(productID)
	pairs, err := r.normalize(ctx, productID, sel)
	if err != nil {
		return "", err
	}
	key := ContentKey(pairs)

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		id, err := r.store.FindActive(ctx, productID, key)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrUnknownCombination) {
			return "", err
		}

		id, err = r.store.Create(ctx, NewCombination{
			ID:         newID(),
			ProductID:  productID,
			ContentKey: key,
			Pairs:      pairs,
			CreatedAt:  r.now(),
		})
		switch {
		case err == nil:
			r.logger.Info().
				Str("product_id", productID).
				Str("combination_id", id).
				Int("members", len(pairs)).
				Msg("combination created")
			return id, nil
		case errors.Is(err, ErrProductNotFound):
			return "", fmt.Errorf("%w: %w: %s", ErrInvalidSelection, ErrProductNotFound, productID)
		case errors.Is(err, ErrDuplicateCombination):
			r.logger.Debug().
				Str("product_id", productID).
				Int("attempt", attempt).
				Msg("combination created concurrently, retrying lookup")
			continue
		default:
			return "", err
		}
	}
	return "", fmt.Errorf("resolve combination for product %s: no stable result after %d attempts", productID, r.maxAttempts)
}

func (r *Resolver) normalize(ctx context.Context, productID string, sel Selection) ([]Pair, error) {
	if err := r.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	types, err := r.types.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list variant types: %w", err)
	}
	mandatory, err := r.products.MandatoryTypes(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("mandatory types for %s: %w", productID, err)
	}

	pairs, err := Normalize(types, mandatory, sel)
	if !errors.Is(err, ErrUnregisteredType) {
		return pairs, err
	}

	// A cached list can lag behind a registration; confirm against the catalog itself.
	r.logger.Debug().Err(err).Str("product_id", productID).Msg("unknown variant type, refreshing catalog")
	types, err = r.types.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh variant types: %w", err)
	}
	return Normalize(types, mandatory, sel)
}

func (r *Resolver) requireProduct(ctx context.Context, productID string) error {
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidSelection)
	}
	ok, err := r.products.Exists(ctx, productID)
	if err != nil {
		return fmt.Errorf("check product %s: %w", productID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %w: %s", ErrInvalidSelection, ErrProductNotFound, productID)
	}
	return nil
}

// DefineValue registers a value for a product ahead of any combination using it,
// optionally carrying a color code. Only the color type accepts a color code.
func (r *Resolver) DefineValue(ctx context.Context, productID, typeName, label, colorHex string) (Value, error) {
	productID = strings.TrimSpace(productID)
	typeName = strings.TrimSpace(typeName)
	label = strings.TrimSpace(label)
	colorHex = strings.TrimSpace(colorHex)

	if err := r.requireProduct(ctx, productID); err != nil {
		return Value{}, err
	}
	if label == "" {
		return Value{}, fmt.Errorf("%w: label is required", ErrInvalidValue)
	}
	if colorHex != "" {
		if typeName != colorTypeName {
			return Value{}, fmt.Errorf("%w: color code only applies to the %q type", ErrInvalidValue, colorTypeName)
		}
		if !colorHexPattern.MatchString(colorHex) {
			return Value{}, fmt.Errorf("%w: color code %q is not #RRGGBB", ErrInvalidValue, colorHex)
		}
	}

	vt, err := r.lookupType(ctx, typeName)
	if err != nil {
		return Value{}, err
	}

	return r.store.UpsertValue(ctx, Value{
		ID:        newID(),
		ProductID: productID,
		TypeID:    vt.ID,
		TypeName:  vt.Name,
		Label:     label,
		ColorHex:  strings.ToUpper(colorHex),
	})
}

// lookupType finds a registered type by name, refreshing the catalog once when
// the listed types do not contain it.
func (r *Resolver) lookupType(ctx context.Context, name string) (catalog.VariantType, error) {
	types, err := r.types.List(ctx)
	if err != nil {
		return catalog.VariantType{}, fmt.Errorf("list variant types: %w", err)
	}
	if i := slices.IndexFunc(types, func(vt catalog.VariantType) bool { return vt.Name == name }); i >= 0 {
		return types[i], nil
	}

	types, err = r.types.Refresh(ctx)
	if err != nil {
		return catalog.VariantType{}, fmt.Errorf("refresh variant types: %w", err)
	}
	if i := slices.IndexFunc(types, func(vt catalog.VariantType) bool { return vt.Name == name }); i >= 0 {
		return types[i], nil
	}
	return catalog.VariantType{}, fmt.Errorf("%w: %w: %q", ErrInvalidValue, ErrUnregisteredType, name)
}

func (r *Resolver) Get(ctx context.Context, combinationID string) (Combination, error) {
	return r.store.Get(ctx, combinationID)
}

func (r *Resolver) ListByProduct(ctx context.Context, productID string) ([]Combination, error) {
	productID = strings.TrimSpace(productID)
	if err := r.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	return r.store.ListByProduct(ctx, productID)
}

func (r *Resolver) SetPriceDelta(ctx context.Context, combinationID string, delta decimal.Decimal) error {
	return r.store.SetPriceDelta(ctx, combinationID, delta.Round(2))
}

// Archive retires a combination. A later Resolve of the same selection creates a new one.
func (r *Resolver) Archive(ctx context.Context, combinationID string) error {
	if err := r.store.Archive(ctx, combinationID); err != nil {
		return err
	}
	r.logger.Info().Str("combination_id", combinationID).Msg("combination archived")
	return nil
}

func newID() string {
	return uuid.NewString()
}
