package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by stores when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ValidationError reports a malformed snapshot field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %s: %s", e.Field, e.Msg)
}

// Validate checks a parsed snapshot before reconciliation.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Reference) == "" {
		return &ValidationError{Field: "reference", Msg: "must not be empty"}
	}
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Msg: "must not be empty"}
	}
	seen := make(map[string]struct{}, len(p.Stocks))
	for _, st := range p.Stocks {
		if st.SKU == "" {
			return &ValidationError{Field: "stocks.sku", Msg: "must not be empty"}
		}
		if _, ok := seen[st.SKU]; ok {
			return &ValidationError{Field: "stocks.sku", Msg: "duplicate sku " + st.SKU}
		}
		seen[st.SKU] = struct{}{}
	}
	return nil
}
