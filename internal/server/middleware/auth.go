// Package middleware provides HTTP middleware for token-protected routes.
package middleware

import (
	"net/http"
	"strings"
)

// TokenVerifier checks a presented bearer token.
// config.TokenConfig satisfies it.
type TokenVerifier interface {
	Enabled() bool
	VerifyToken(token string) bool
}

// BearerToken extracts the token from an Authorization header of the form
// "Bearer <token>". The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireToken rejects requests that do not carry a valid bearer token.
// When the verifier has no token configured the route answers 403 for every request.
func RequireToken(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil || !verifier.Enabled() {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			token, ok := BearerToken(r)
			if !ok || !verifier.VerifyToken(token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="jobchange"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
