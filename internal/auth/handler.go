package auth

import (
	"context"
	"net/http"
	"time"

	"naskah/pkg/logger"
)

// Revoker records a logged-out token. *RevocationStore implements it.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

type LogoutHandler struct {
	// Revocations may be nil, in which case logout only ends live sessions.
	Revocations Revoker
	Sessions    *Registry
}

// Logout revokes the caller's token and ends every session opened with it,
// which flushes their pending edits.
func (h *LogoutHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tokenID := claims.TokenID()
	if h.Revocations != nil {
		if err := h.Revocations.Revoke(r.Context(), tokenID, claims.ExpiresAt()); err != nil {
			logger.Sugar.Errorf("Failed to revoke token of user %s: %v", claims.Subject, err)
			http.Error(w, "Failed to log out", http.StatusInternalServerError)
			return
		}
	}
	ended := 0
	if h.Sessions != nil {
		ended = h.Sessions.EndAll(tokenID)
	}
	logger.Sugar.Infof("User %s logged out, ended %d session(s)", claims.Subject, ended)
	w.WriteHeader(http.StatusNoContent)
}
