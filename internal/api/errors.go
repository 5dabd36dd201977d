package api

import (
	"errors"
	"fmt"
	nethttp "net/http"
)

// ErrEmptyBaseURL is returned by NewClient when no platform URL is configured.
var ErrEmptyBaseURL = errors.New("API base URL is empty")

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return statusCode(err) == nethttp.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 or 403 from the API.
func IsUnauthorized(err error) bool {
	code := statusCode(err)
	return code == nethttp.StatusUnauthorized || code == nethttp.StatusForbidden
}

// IsThrottled reports whether err is a 429 from the API.
func IsThrottled(err error) bool {
	return statusCode(err) == nethttp.StatusTooManyRequests
}
