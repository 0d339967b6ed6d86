// ABOUTME: Context propagation of the Authorization header for backend calls.
// ABOUTME: The gateway sets it; backend clients copy it onto outbound requests.

package routing

import "context"

type contextKey string

const contextKeyAuthorization contextKey = "authorization"

// WithAuthorization returns a context carrying an Authorization header value.
func WithAuthorization(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, value)
}

// AuthorizationFrom returns the Authorization header value carried by ctx.
func AuthorizationFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(contextKeyAuthorization).(string)
	return v, ok && v != ""
}
