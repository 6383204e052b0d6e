package validation

import (
	"errors"
	"testing"
)

func TestIsEmail(t *testing.T) {
	cases := map[string]bool{
		"jane@example.com":      true,
		"a.b+tag@sub.domain.io": true,
		"jane@example":          false,
		"jane example@x.com":    false,
		"@example.com":          false,
		"":                      false,
	}
	for input, want := range cases {
		if got := IsEmail(input); got != want {
			t.Fatalf("IsEmail(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestErrorsCollectsFields(t *testing.T) {
	var errs Errors
	if errs.Err() != nil {
		t.Fatalf("expected nil error when empty")
	}
	errs.Required("customer.email", " ")
	errs.Required("customer.phone", "+44 20 7946 0958")
	errs.Add("paymentMethod", "unsupported", "unsupported payment method")

	err := errs.Err()
	var vErr *Errors
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *Errors, got %T", err)
	}
	if len(vErr.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(vErr.Fields))
	}
	if !vErr.Has("customer.email") || vErr.Has("customer.phone") {
		t.Fatalf("unexpected fields %+v", vErr.Fields)
	}
}
