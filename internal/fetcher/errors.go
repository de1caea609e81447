package fetcher

import (
	"fmt"
	"net/http"
	"strings"
)

// ProviderError is a non-2xx response from the market-data API.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("provider error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("provider error (%d): %s", e.StatusCode, body)
}

// Retryable reports whether the status is worth another attempt.
// Rate limiting and server faults are transient; other 4xx are not.
func (e *ProviderError) Retryable() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= 500
}
