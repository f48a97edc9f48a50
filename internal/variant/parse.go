package variant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type selectionItem struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ParseSelection turns a raw JSON selection into a Selection. Two shapes are accepted:
//
//	{"color": "Red", "size": "M"}
//	[{"type": "color", "value": "Red"}, {"type": "size", "value": "M"}]
//
// Anything else, non-string values and repeated types are rejected with ErrInvalidSelection.
// An empty body or null yields an empty selection.
func ParseSelection(raw []byte) (Selection, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Selection{}, nil
	}

	switch trimmed[0] {
	case '{':
		return parseObject(trimmed)

	case '[':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		var items []selectionItem
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: trailing data after selection", ErrInvalidSelection)
		}
		sel := make(Selection, len(items))
		for _, it := range items {
			if it.Type == "" {
				return nil, fmt.Errorf("%w: item without type", ErrInvalidSelection)
			}
			if _, dup := sel[it.Type]; dup {
				return nil, fmt.Errorf("%w: variant type %q selected twice", ErrInvalidSelection, it.Type)
			}
			label, err := stringValue(it.Type, it.Value)
			if err != nil {
				return nil, err
			}
			sel[it.Type] = label
		}
		return sel, nil

	default:
		return nil, fmt.Errorf("%w: expected an object or an array", ErrInvalidSelection)
	}
}

// parseObject walks the object token by token so a repeated key is seen
// instead of silently overwriting the earlier one.
func parseObject(raw []byte) (Selection, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}

	sel := Selection{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrInvalidSelection, tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		if _, dup := sel[name]; dup {
			return nil, fmt.Errorf("%w: variant type %q selected twice", ErrInvalidSelection, name)
		}
		label, err := stringValue(name, v)
		if err != nil {
			return nil, err
		}
		sel[name] = label
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after selection", ErrInvalidSelection)
	}
	return sel, nil
}

func stringValue(name string, v json.RawMessage) (string, error) {
	var s string
	if len(v) == 0 || json.Unmarshal(v, &s) != nil {
		return "", fmt.Errorf("%w: value for %q must be a string", ErrInvalidSelection, name)
	}
	return s, nil
}
