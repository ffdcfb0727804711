// Package cancel implements the process-wide, keyed cancellation signal
// used to ask a running research session to stop. It is deliberately a
// flag with a TTL rather than a direct context.CancelFunc: the
// orchestrator polls it on its own schedule; the signal itself does not
// drive cancellation.
package cancel

import (
	"sync"
	"time"
)

const defaultTTL = 5 * time.Minute

// Signal is a thread-safe, TTL-expiring set of cancelled session ids.
type Signal struct {
	mu      sync.Mutex
	flags   map[string]time.Time // session_id -> expiry
	ttl     time.Duration
}

// New creates a cancellation signal registry with the default ~5 minute TTL.
func New() *Signal {
	return &Signal{
		flags: make(map[string]time.Time),
		ttl:   defaultTTL,
	}
}

// NewWithTTL creates a registry with a custom TTL, for tests.
func NewWithTTL(ttl time.Duration) *Signal {
	return &Signal{
		flags: make(map[string]time.Time),
		ttl:   ttl,
	}
}

// RequestCancel sets the cancellation flag for a session. Idempotent:
// calling it twice has the same effect as calling it once.
func (s *Signal) RequestCancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[sessionID] = time.Now().Add(s.ttl)
}

// IsCancelled reports whether the flag is set and not expired. Expired
// entries are swept lazily on read.
func (s *Signal) IsCancelled(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.flags[sessionID]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.flags, sessionID)
		return false
	}
	return true
}

// Clear removes the flag for a session; idempotent if already clear.
func (s *Signal) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flags, sessionID)
}
