package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError represents an error response from the API. The server answers
// with RFC 7807 problems, except for health probes which use the regular
// envelope with an error string.
type APIError struct {
	StatusCode int    `json:"status"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return e.Title
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound returns true if this is a not found error.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func parseError(status int, body []byte) error {
	apiErr := &APIError{}
	if json.Unmarshal(body, apiErr) == nil && apiErr.Title != "" {
		apiErr.StatusCode = status
		return apiErr
	}

	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != "" {
		return &APIError{StatusCode: status, Title: http.StatusText(status), Detail: env.Error}
	}

	return &APIError{
		StatusCode: status,
		Title:      http.StatusText(status),
		Detail:     strings.TrimSpace(string(body)),
	}
}
