// Package middleware provides HTTP middleware for the dittosmb status API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/marmos91/dittosmb/pkg/api/auth"
	"github.com/marmos91/dittosmb/pkg/api/handlers"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// GetClaimsFromContext returns the claims stored by JWTAuth, or nil.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// extractBearerToken extracts the token from a Bearer Authorization header.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// JWTAuth validates Bearer tokens in the Authorization header and stores
// the claims in the request context. Missing or invalid tokens get 401.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractBearerToken(r)
			if !ok {
				handlers.Unauthorized(w, "Authorization header required")
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				handlers.Unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
