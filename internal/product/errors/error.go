// Package errors provides custom error types for product-related operations.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrProductNotFound = errors.New("product not found")

// ErrValidation is the sentinel wrapped by every ValidationError, so callers
// can dispatch with errors.Is without inspecting field detail.
var ErrValidation = errors.New("invalid product data")

// ValidationError carries per-field validation failures for a rejected
// create or update request. Nothing is persisted when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
