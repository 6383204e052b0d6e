// Package validation collects field-level input errors so a request can be
// rejected with every problem reported at once.
package validation

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsEmail applies the storefront's loose address check: something@something.tld, no spaces.
func IsEmail(value string) bool {
	return emailPattern.MatchString(value)
}

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is returned by services when input is rejected before any side effect.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Add(field, code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

// Required records a "required" error when value is blank and reports whether it was present.
func (e *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) != "" {
		return true
	}
	e.Add(field, "required", field+" is required")
	return false
}

func (e *Errors) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Err returns nil when nothing was recorded.
func (e *Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *Errors) Error() string {
	if e.Empty() {
		return "validation error"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Code)
	}
	return "validation error: " + strings.Join(parts, ", ")
}

// Has reports whether field has at least one error.
func (e *Errors) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
