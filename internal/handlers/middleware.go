package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/adivish/quickmeet/internal/services"
)

type contextKey string

const claimsKey contextKey = "claims"

// Authenticate validates the session token and stashes its claims in the
// request context. WebSocket clients cannot set headers, so the token is
// also accepted as a query parameter.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			respondError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.auth.VerifyToken(tokenString)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(r *http.Request) *services.TokenClaims {
	claims, _ := r.Context().Value(claimsKey).(*services.TokenClaims)
	return claims
}

func extractToken(r *http.Request) string {
	bearerToken := r.Header.Get("Authorization")
	if strings.HasPrefix(bearerToken, "Bearer ") {
		return strings.TrimPrefix(bearerToken, "Bearer ")
	}

	// For WebSocket connections, check query parameter
	return r.URL.Query().Get("token")
}
