package scraper

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBlocked means the page loaded but contained no listing containers,
	// usually a bot wall or a markup change.
	ErrBlocked = errors.New("no listing containers found, page blocked or layout changed")

	ErrDomainNotAllowed = errors.New("domain not in allowlist")
)

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: status code %d", e.URL, e.StatusCode)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
