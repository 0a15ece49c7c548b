package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/courierchat/courier/internal/token"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// AuthMiddleware verifies the session-token cookie on read-path requests.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(secret []byte) *AuthMiddleware {
	return &AuthMiddleware{secret: secret}
}

// RequireAuth verifies the token cookie and attaches the caller's claims
// to the request context. The same verification gates the WebSocket
// handshake; this is the HTTP half of that boundary.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := token.FromCookieHeader(r.Header.Get("Cookie"), m.secret)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetClaimsFromContext retrieves the authenticated caller from the
// request context.
func GetClaimsFromContext(ctx context.Context) *token.Claims {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	if !ok {
		return nil
	}
	return claims
}
