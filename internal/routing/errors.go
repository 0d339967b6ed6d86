// ABOUTME: Error type for non-2xx responses from the routing backend.
// ABOUTME: Carries status, body, and headers so 402s can be normalized.

package routing

import (
	"fmt"
	"net/http"
)

// BackendError is returned by backends for any non-2xx response.
type BackendError struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("routing backend returned status %d: %s", e.StatusCode, truncate(string(e.Body), 256))
}

// PaymentRequired reports whether the backend asked for payment.
func (e *BackendError) PaymentRequired() bool {
	return e.StatusCode == http.StatusPaymentRequired
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
