// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// ClientContext describes the authenticated API client (a form layer, a service or an operator CLI).
type ClientContext struct {
	ClientID  string
	Scopes    []string
	SessionID string
}

type clientContextKey struct{}

// WithClient adds ClientContext to context.
func WithClient(ctx context.Context, client *ClientContext) context.Context {
	return context.WithValue(ctx, clientContextKey{}, client)
}

// GetClient returns ClientContext from context.
func GetClient(ctx context.Context) *ClientContext {
	if v, ok := ctx.Value(clientContextKey{}).(*ClientContext); ok {
		return v
	}
	return nil
}

// GetClientID returns client ID from context or empty string.
func GetClientID(ctx context.Context) string {
	if c := GetClient(ctx); c != nil {
		return c.ClientID
	}
	return ""
}

// HasScope checks if the client was granted scope.
func HasScope(ctx context.Context, scope string) bool {
	c := GetClient(ctx)
	if c == nil {
		return false
	}
	return slices.Contains(c.Scopes, scope) || slices.Contains(c.Scopes, "*")
}
