package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProviderNotFound     = errors.New("payment_provider_not_found")
	ErrGatewayNotConfigured = errors.New("payment_gateway_not_configured")
	ErrGatewayFailure       = errors.New("payment_gateway_failure")
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidEvent         = errors.New("invalid_event")
	ErrEventIgnored         = errors.New("event_ignored")
)

// GatewayError describes a failed call to a payment backend. Its message is for
// logs only and is never shown to customers.
type GatewayError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s gateway error", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayFailure
}
