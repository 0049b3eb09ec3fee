package middleware

import (
	"context"
	"net/http"
	"strings"

	"naskah/internal/auth"
	"naskah/pkg/logger"
)

// RevocationChecker reports whether a token id was logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthMiddleware verifies the Supabase JWT and puts its claims on the
// request context. revoked may be nil.
func AuthMiddleware(secret []byte, revoked RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(secret, tokenString)
			if err != nil {
				logger.Sugar.Infof("Invalid token: %v", err)
				http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(r.Context(), claims.TokenID())
				if err != nil {
					// Fail closed: a token we cannot check is not trusted.
					logger.Sugar.Errorf("Failed to check token revocation: %v", err)
					http.Error(w, "Unauthorized: Could not verify session", http.StatusUnauthorized)
					return
				}
				if isRevoked {
					http.Error(w, "Unauthorized: Session has ended", http.StatusUnauthorized)
					return
				}
			}

			ctx := auth.WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest reads the token from the query string first, since the
// browser's WebSocket API doesn't support custom headers, then from the
// Authorization header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}
