package auth

import (
	"context"
	"sync"

	"naskah/internal/document/model"
)

// TokenSession is the session of one verified token. It ends when the
// connection that carried it goes away or the token is revoked.
type TokenSession struct {
	claims Claims

	mu    sync.Mutex
	hooks []func()
	ended bool
}

func NewTokenSession(claims Claims) *TokenSession {
	return &TokenSession{claims: claims}
}

func (s *TokenSession) Claims() Claims { return s.claims }

func (s *TokenSession) CurrentUser() (model.SessionUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended || s.claims.Subject == "" {
		return model.SessionUser{}, false
	}
	return s.claims.User(), true
}

// OnSessionEnd registers fn to run when the session ends. On an ended
// session fn runs immediately.
func (s *TokenSession) OnSessionEnd(fn func()) {
	s.mu.Lock()
	if !s.ended {
		s.hooks = append(s.hooks, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// End runs the registered hooks once, in registration order.
func (s *TokenSession) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

type contextKey string

const claimsKey contextKey = "claims"

func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}

// UserFromContext returns the user the auth middleware put on ctx.
func UserFromContext(ctx context.Context) (model.SessionUser, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.Subject == "" {
		return model.SessionUser{}, false
	}
	return claims.User(), true
}

// Registry tracks live sessions by token so a logout can end them.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]map[*TokenSession]struct{}
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]map[*TokenSession]struct{})}
}

// Track adds s until it ends.
func (r *Registry) Track(s *TokenSession) {
	id := s.claims.TokenID()
	r.mu.Lock()
	if r.sessions[id] == nil {
		r.sessions[id] = make(map[*TokenSession]struct{})
	}
	r.sessions[id][s] = struct{}{}
	r.mu.Unlock()

	s.OnSessionEnd(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.sessions[id], s)
		if len(r.sessions[id]) == 0 {
			delete(r.sessions, id)
		}
	})
}

// EndAll ends every live session of tokenID and reports how many there were.
func (r *Registry) EndAll(tokenID string) int {
	r.mu.Lock()
	ended := make([]*TokenSession, 0, len(r.sessions[tokenID]))
	for s := range r.sessions[tokenID] {
		ended = append(ended, s)
	}
	r.mu.Unlock()

	for _, s := range ended {
		s.End()
	}
	return len(ended)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, set := range r.sessions {
		n += len(set)
	}
	return n
}
