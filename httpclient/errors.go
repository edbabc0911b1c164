package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   []byte
	Detail string // "detail" member of a JSON error body, when present
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, Status: status, Body: body}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Detail = payload.Detail
	}
	return e
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return clienterrors.ErrUnauthorized
	}
	return nil
}

// RecoveryError is returned when a 401 could not be recovered because the refresh
// failed. It reads and matches as the original failure. When the refresh was
// rejected for good (see EndsSession) errors.Is(err, ErrSessionEnded) also holds;
// otherwise the refresh failure itself is matchable, e.g. context.DeadlineExceeded.
type RecoveryError struct {
	Original error
	Refresh  error
}

func (e *RecoveryError) Error() string {
	return e.Original.Error()
}

func (e *RecoveryError) Unwrap() []error {
	if EndsSession(e.Refresh) {
		return []error{e.Original, clienterrors.ErrSessionEnded}
	}
	return []error{e.Original, e.Refresh}
}

// EndsSession reports whether a refresh failure means the refresh credential is
// missing or was rejected. Cancellation, transport failures and 5xx answers leave the
// session alone.
func EndsSession(refreshErr error) bool {
	if refreshErr == nil {
		return false
	}
	if clienterrors.Is(refreshErr, clienterrors.ErrNoRefreshCredential) {
		return true
	}
	switch StatusCode(refreshErr) {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return true
	default:
		return false
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if clienterrors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
