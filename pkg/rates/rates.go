// Package rates defines the upstream exchange rate API response models and
// the pure conversion helpers built on them.
package rates

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidCode indicates a currency code that is not three uppercase ASCII letters.
var ErrInvalidCode = errors.New("invalid currency code")

// LatestResponse is the rate table returned by the "latest" endpoint.
type LatestResponse struct {
	Result             string             `json:"result"`
	Documentation      string             `json:"documentation"`
	TermsOfUse         string             `json:"terms_of_use"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	TimeLastUpdateUTC  string             `json:"time_last_update_utc"`
	TimeNextUpdateUnix int64              `json:"time_next_update_unix"`
	TimeNextUpdateUTC  string             `json:"time_next_update_utc"`
	BaseCode           string             `json:"base_code"`
	ConversionRates    map[string]float64 `json:"conversion_rates"`
}

// Rate returns the rate of code relative to the base currency.
func (r *LatestResponse) Rate(code string) (float64, bool) {
	rate, ok := r.ConversionRates[code]
	return rate, ok
}

// ConvertFromBase converts amount from the base currency into to.
func (r *LatestResponse) ConvertFromBase(amount float64, to string) (float64, bool) {
	rate, ok := r.Rate(to)
	if !ok {
		return 0, false
	}
	return amount * rate, true
}

// Convert converts amount between two currencies of the table, going through
// the base currency when from is not the base.
func (r *LatestResponse) Convert(amount float64, from, to string) (float64, bool) {
	if from == r.BaseCode {
		return r.ConvertFromBase(amount, to)
	}

	fromRate, ok := r.Rate(from)
	if !ok || fromRate == 0 {
		return 0, false
	}
	toRate, ok := r.Rate(to)
	if !ok {
		return 0, false
	}
	return amount / fromRate * toRate, true
}

// Codes returns the currency codes of the table in sorted order.
func (r *LatestResponse) Codes() []string {
	codes := make([]string, 0, len(r.ConversionRates))
	for code := range r.ConversionRates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// PairResponse is returned by the "pair" endpoint.
type PairResponse struct {
	Result             string  `json:"result,omitempty"`
	BaseCode           string  `json:"base_code,omitempty"`
	TargetCode         string  `json:"target_code,omitempty"`
	ConversionRate     float64 `json:"conversion_rate"`
	TimeLastUpdateUnix int64   `json:"time_last_update_unix,omitempty"`
	TimeNextUpdateUnix int64   `json:"time_next_update_unix,omitempty"`
}

// CodesResponse is returned by the "codes" endpoint. Each element of
// SupportedCodes is a [code, name] pair.
type CodesResponse struct {
	Result         string     `json:"result,omitempty"`
	SupportedCodes [][]string `json:"supported_codes"`
}

// Currency is a supported currency code with its display name.
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Currencies flattens SupportedCodes, skipping malformed entries.
func (r *CodesResponse) Currencies() []Currency {
	out := make([]Currency, 0, len(r.SupportedCodes))
	for _, pair := range r.SupportedCodes {
		if len(pair) < 2 {
			continue
		}
		out = append(out, Currency{Code: pair[0], Name: pair[1]})
	}
	return out
}

// ErrorResponse is the body the API sends when a request fails.
type ErrorResponse struct {
	Result    string `json:"result"`
	ErrorType string `json:"error-type"`
}

// IsError reports whether the body describes a failed request.
func (r *ErrorResponse) IsError() bool {
	return r.Result == "error"
}

// NormalizeCode trims and upper-cases a user supplied currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks that code is exactly three uppercase ASCII letters.
func ValidateCode(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCode, code)
		}
	}
	return nil
}
