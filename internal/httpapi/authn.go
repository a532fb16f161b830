package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"mintgate.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Reads stay open; every mutating call below must carry a bearer token
// whose subject is the caller's address.
var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/openapi.yaml",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || !auth.SupportsTokens() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodGet || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		address, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := auth.ContextWithAddress(r.Context(), address)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerAddress returns the authenticated address or writes a 401.
func (a *API) callerAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	address, ok := auth.AddressFromContext(r.Context())
	if !ok || address == "" {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return address, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
