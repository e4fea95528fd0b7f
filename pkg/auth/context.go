package auth

import (
	"context"
)

type contextKey string

// ContextKeyClaims is the context key for the authenticated caller's claims
const ContextKeyClaims contextKey = "claims"

// WithClaims adds the caller's claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// ClaimsFromContext retrieves the caller's claims from the context
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ContextKeyClaims).(*Claims)
	return c, ok && c != nil
}

// SubjectFromContext returns the authenticated subject, empty when unauthenticated.
func SubjectFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Subject
	}
	return ""
}
