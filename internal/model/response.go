package model

import (
	"encoding/json"
	"net/http"
)

// Error codes returned to the browser.
const (
	CodeMissingAmount  = "MISSING_AMOUNT"
	CodeInvalidAmount  = "INVALID_AMOUNT"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeAPIError       = "API_ERROR"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeNotFound       = "NOT_FOUND"
)

// SuccessResponse wraps the upstream session payload.
type SuccessResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// ErrorResponse is the normalized error body for every failure.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details,omitempty"`
}

// UpstreamResponse is a fully read response from Adyen.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RawJSON returns body unchanged when it is valid JSON, as a JSON string
// otherwise, and null when empty.
func RawJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
