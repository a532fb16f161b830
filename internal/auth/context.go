package auth

import (
	"context"
	"strings"
)

type addressContextKey struct{}
type tokenContextKey struct{}

// ContextWithAddress attaches the authenticated caller address to the context.
func ContextWithAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, addressContextKey{}, strings.ToLower(strings.TrimSpace(address)))
}

// AddressFromContext extracts the authenticated caller address.
func AddressFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(addressContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
