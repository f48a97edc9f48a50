package catalog

import (
	"cmp"
	"errors"
	"slices"
	"time"
)

var (
	ErrDuplicateType = errors.New("variant type already exists")
	ErrTypeNotFound  = errors.New("variant type not found")
	ErrInvalidType   = errors.New("invalid variant type")
)

// VariantType is a named dimension of product variation, e.g. "color" or "size".
type VariantType struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

// SortTypes orders types by sort order, then name.
func SortTypes(types []VariantType) {
	slices.SortStableFunc(types, func(a, b VariantType) int {
		if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}
