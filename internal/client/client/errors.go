package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable         = errors.New("server unavailable")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrEndpointUnavailable = errors.New("endpoint unavailable")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
)

// HTTPError is a non-2xx response. It matches the sentinel errors for its
// status class via errors.Is.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrEndpointUnavailable:
		return e.Status == http.StatusNotFound ||
			e.Status == http.StatusMethodNotAllowed ||
			e.Status == http.StatusNotImplemented
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrUnavailable:
		return e.Status >= 500 && e.Status != http.StatusNotImplemented
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0 for transport errors.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// BulkUnavailable reports whether a bulk endpoint failed in a way that
// warrants the per-record fallback: it answered, but not usefully.
// Transport failures are excluded since the fallback would fail the same way.
func BulkUnavailable(err error) bool {
	return errors.Is(err, ErrEndpointUnavailable) || StatusOf(err) >= 500
}

const maxErrorBody = 512

func mapStatus(status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &HTTPError{Status: status, Body: string(body)}
}
