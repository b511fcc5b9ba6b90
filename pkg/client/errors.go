package client

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/exchangerate-client/pkg/rates"
)

// Common errors returned by the client.
var (
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrInvalidAuthMethod is returned for an auth method other than bearer or url.
	ErrInvalidAuthMethod = errors.New("invalid auth method")

	// ErrInvalidCurrency is returned for a currency code that is not three letters.
	ErrInvalidCurrency = rates.ErrInvalidCode

	// ErrUnsupportedCode is returned when the API (or a rate table) does not know a currency.
	ErrUnsupportedCode = errors.New("unsupported currency code")

	// ErrMalformedRequest is returned when the API rejects the request structure.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrInvalidKey is returned when the API key is not valid.
	ErrInvalidKey = errors.New("invalid api key")

	// ErrInactiveAccount is returned when the account's email address is not confirmed.
	ErrInactiveAccount = errors.New("inactive account")

	// ErrQuotaReached is returned when the account has used up its request quota.
	ErrQuotaReached = errors.New("request quota reached")
)

// errorTypes maps the API's "error-type" values to sentinels.
var errorTypes = map[string]error{
	"unsupported-code":  ErrUnsupportedCode,
	"malformed-request": ErrMalformedRequest,
	"invalid-key":       ErrInvalidKey,
	"inactive-account":  ErrInactiveAccount,
	"quota-reached":     ErrQuotaReached,
}

// APIError represents a failed upstream request.
type APIError struct {
	Endpoint   string
	StatusCode int
	ErrorType  string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("exchange rate API %s error (status %d): %s",
			e.Endpoint, e.StatusCode, e.ErrorType)
	}
	return fmt.Sprintf("exchange rate API %s error (status %d): %s",
		e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap maps the upstream error-type to its sentinel for errors.Is.
func (e *APIError) Unwrap() error {
	return errorTypes[e.ErrorType]
}
