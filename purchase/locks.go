package purchase

import (
	"sync"

	"golang.org/x/exp/maps"
)

// sessionGuard admits at most one session per account.
type sessionGuard struct {
	sessions map[string]*session
	mu       sync.RWMutex
}

// newSessionGuard creates a new session guard.
func newSessionGuard() *sessionGuard {
	return &sessionGuard{
		sessions: make(map[string]*session),
	}
}

// acquire registers s for its account.
func (g *sessionGuard) acquire(s *session) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.sessions[s.req.Account]; exists {
		return ErrSessionAlreadyActive
	}

	g.sessions[s.req.Account] = s

	return nil
}

// release drops s. A newer session for the same account is left alone.
func (g *sessionGuard) release(s *session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, exists := g.sessions[s.req.Account]; exists && cur == s {
		delete(g.sessions, s.req.Account)
	}
}

// get returns the active session of an account.
func (g *sessionGuard) get(account string) (*session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s, ok := g.sessions[account]
	return s, ok
}

// all returns every active session.
func (g *sessionGuard) all() []*session {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return maps.Values(g.sessions)
}
