package variant

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSelection   = errors.New("invalid variant selection")
	ErrProductNotFound    = errors.New("product not found")
	ErrUnknownCombination = errors.New("unknown variant combination")
	ErrInvalidValue       = errors.New("invalid variant value")

	// ErrUnregisteredType accompanies ErrInvalidSelection when a selection names a
	// type the catalog does not know.
	ErrUnregisteredType = errors.New("variant type is not registered")

	// ErrDuplicateCombination is returned by Store.Create when another writer won the
	// insert. Resolver recovers from it by looking the combination up again.
	ErrDuplicateCombination = errors.New("duplicate variant combination")
)

// Selection maps a variant type name to the chosen value label, e.g. {"color": "Red", "size": "M"}.
type Selection map[string]string

// Pair is one normalized (type, label) member of a selection.
type Pair struct {
	TypeID    string
	TypeName  string
	SortOrder int
	Label     string
}

type Value struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	TypeID    string `json:"typeId"`
	TypeName  string `json:"type"`
	Label     string `json:"label"`
	ColorHex  string `json:"colorHex,omitempty"`
}

type Combination struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"productId"`
	ContentKey string          `json:"contentKey"`
	PriceDelta decimal.Decimal `json:"priceDelta"`
	Active     bool            `json:"active"`
	Members    []Value         `json:"members"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Selection returns the combination's members as a type -> label mapping.
func (c Combination) Selection() Selection {
	sel := make(Selection, len(c.Members))
	for _, m := range c.Members {
		sel[m.TypeName] = m.Label
	}
	return sel
}

// NewCombination is the input of Store.Create.
type NewCombination struct {
	ID         string
	ProductID  string
	ContentKey string
	Pairs      []Pair
	CreatedAt  time.Time
}
