// Package validation implements country-specific identity document and phone
// validation. Validators register per locale so new countries can be added
// without touching the services that use them.
package validation

import (
	"fmt"
	"strings"
)

// Document validates and canonicalises one national identity document type.
type Document interface {
	// Locale returns the ISO 3166-1 alpha-2 country code the validator serves.
	Locale() string
	// Normalize strips formatting and returns the canonical digit form.
	Normalize(raw string) string
	// Validate reports whether the normalised value is a well-formed document.
	Validate(raw string) error
}

// Registry resolves document validators by locale.
type Registry struct {
	validators map[string]Document
}

// NewRegistry builds a registry pre-loaded with the supplied validators.
func NewRegistry(validators ...Document) *Registry {
	r := &Registry{validators: make(map[string]Document, len(validators))}
	for _, v := range validators {
		r.Register(v)
	}
	return r
}

// DefaultRegistry returns the registry with all built-in locales.
func DefaultRegistry() *Registry {
	return NewRegistry(CPF{})
}

// Register adds or replaces the validator for its locale.
func (r *Registry) Register(v Document) {
	if v == nil {
		return
	}
	r.validators[strings.ToUpper(v.Locale())] = v
}

// ForLocale returns the validator registered for the locale.
func (r *Registry) ForLocale(locale string) (Document, error) {
	v, ok := r.validators[strings.ToUpper(strings.TrimSpace(locale))]
	if !ok {
		return nil, fmt.Errorf("validation: no document validator for locale %q", locale)
	}
	return v, nil
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
