package variant

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/catalog"
)

// Normalize validates sel against the registered types and the product's mandatory
// types and returns its pairs in canonical order: type sort order, type name, label.
func Normalize(types []catalog.VariantType, mandatory []string, sel Selection) ([]Pair, error) {
	byName := make(map[string]catalog.VariantType, len(types))
	for _, vt := range types {
		byName[vt.Name] = vt
	}

	pairs := make([]Pair, 0, len(sel))
	seen := make(map[string]struct{}, len(sel))
	for rawName, rawLabel := range sel {
		name := strings.TrimSpace(rawName)
		label := strings.TrimSpace(rawLabel)

		vt, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %w: %q", ErrInvalidSelection, ErrUnregisteredType, name)
		}
		if label == "" {
			return nil, fmt.Errorf("%w: empty value for variant type %q", ErrInvalidSelection, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: variant type %q selected twice", ErrInvalidSelection, name)
		}
		seen[name] = struct{}{}

		pairs = append(pairs, Pair{TypeID: vt.ID, TypeName: vt.Name, SortOrder: vt.SortOrder, Label: label})
	}

	for _, name := range mandatory {
		if _, ok := seen[name]; !ok {
			return nil, fmt.Errorf("%w: missing mandatory variant type %q", ErrInvalidSelection, name)
		}
	}

	slices.SortFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
			return c
		}
		if c := cmp.Compare(a.TypeName, b.TypeName); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return pairs, nil
}

// ContentKey identifies a member set. Pairs must already be in canonical order.
func ContentKey(pairs []Pair) string {
	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p.TypeID))
		h.Write([]byte{0x1f})
		h.Write([]byte(p.Label))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}
