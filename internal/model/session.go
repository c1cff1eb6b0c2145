// Package model defines the request and response shapes exchanged with the
// browser client and the Adyen Checkout API.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Defaults applied when the browser omits a field.
const (
	DefaultCurrency    = "AED"
	DefaultCountryCode = "AE"
)

var (
	// ErrMissingAmount is returned when the amount is absent or falsy.
	ErrMissingAmount = errors.New("amount is required")
	// ErrInvalidAmount is returned when the amount cannot be read as an integer.
	ErrInvalidAmount = errors.New("amount must be a number")
	// ErrMalformedBody is returned when the request body cannot be decoded.
	ErrMalformedBody = errors.New("malformed request body")
)

// SessionRequest is the validated, defaulted browser request.
// ReturnURL stays empty when omitted; the service fills in the configured fallback.
type SessionRequest struct {
	Amount      int64
	Currency    string
	CountryCode string
	ReturnURL   string
}

// sessionRequestPayload is the wire form of SessionRequest. Fields stay raw
// so an omitted key can be told apart from an explicit null or "".
type sessionRequestPayload struct {
	Amount      json.RawMessage `json:"amount"`
	Currency    json.RawMessage `json:"currency"`
	CountryCode json.RawMessage `json:"countryCode"`
	ReturnURL   json.RawMessage `json:"returnUrl"`
}

// DecodeSessionRequest parses and validates a session creation body.
// An empty body or a top-level array carries no fields and is treated as an
// empty object. Any other non-object body is malformed.
func DecodeSessionRequest(data []byte) (SessionRequest, error) {
	var p sessionRequestPayload
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
	case data[0] == '[':
		if !json.Valid(data) {
			return SessionRequest{}, fmt.Errorf("%w: invalid JSON array", ErrMalformedBody)
		}
	case data[0] == '{':
		if err := json.Unmarshal(data, &p); err != nil {
			return SessionRequest{}, fmt.Errorf("%w: %w", ErrMalformedBody, err)
		}
	default:
		return SessionRequest{}, fmt.Errorf("%w: body must be a JSON object", ErrMalformedBody)
	}

	amount, err := parseAmount(p.Amount)
	if err != nil {
		return SessionRequest{}, err
	}

	var req SessionRequest
	req.Amount = amount
	if req.Currency, err = optionalString(p.Currency, DefaultCurrency); err != nil {
		return SessionRequest{}, fmt.Errorf("%w: currency: %w", ErrMalformedBody, err)
	}
	if req.CountryCode, err = optionalString(p.CountryCode, DefaultCountryCode); err != nil {
		return SessionRequest{}, fmt.Errorf("%w: countryCode: %w", ErrMalformedBody, err)
	}
	if req.ReturnURL, err = optionalString(p.ReturnURL, ""); err != nil {
		return SessionRequest{}, fmt.Errorf("%w: returnUrl: %w", ErrMalformedBody, err)
	}
	return req, nil
}

// parseAmount coerces a JSON amount into minor units. Numbers are truncated
// toward zero; strings are read by their leading integer ("12.9" is 12).
// null, false, 0 and "" count as missing.
func parseAmount(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, ErrMissingAmount
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}

	switch a := v.(type) {
	case nil:
		return 0, ErrMissingAmount
	case bool:
		if !a {
			return 0, ErrMissingAmount
		}
		return 0, ErrInvalidAmount
	case json.Number:
		f, err := a.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
		}
		if f == 0 {
			return 0, ErrMissingAmount
		}
		f = math.Trunc(f)
		if f >= math.MaxInt64 || f <= math.MinInt64 {
			return 0, ErrInvalidAmount
		}
		return int64(f), nil
	case string:
		if a == "" {
			return 0, ErrMissingAmount
		}
		return leadingInt(a)
	default:
		return 0, ErrInvalidAmount
	}
}

// leadingInt reads an optionally signed run of digits after leading whitespace.
func leadingInt(s string) (int64, error) {
	s = strings.TrimLeft(s, " \t\n\r\f\v")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, ErrInvalidAmount
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	return n, nil
}

// optionalString returns def only when the key was omitted. An explicit
// null or "" is kept as the empty string.
func optionalString(raw json.RawMessage, def string) (string, error) {
	if len(raw) == 0 {
		return def, nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

// Amount is an Adyen amount in minor units.
type Amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

// UpstreamSessionRequest is the body posted to Adyen's /sessions endpoint.
type UpstreamSessionRequest struct {
	MerchantAccount string `json:"merchantAccount"`
	Amount          Amount `json:"amount"`
	ReturnURL       string `json:"returnUrl"`
	Reference       string `json:"reference"`
	CountryCode     string `json:"countryCode"`
}
