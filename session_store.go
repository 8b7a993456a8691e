package honeypot

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ──────────────────────────────────────────────
// Session Store — durable/ephemeral keyed session storage
// ──────────────────────────────────────────────

// ErrSessionNotFound means the key does not exist. It is a normal result,
// distinct from the store being unreachable.
var ErrSessionNotFound = errors.New("session not found")

// ErrStoreUnavailable means every backend failed. It is the only fatal
// error a turn can surface: without session continuity no engagement may
// silently happen.
var ErrStoreUnavailable = errors.New("session store unavailable")

// DefaultSessionTTL is the stock key lifetime, refreshed on every write.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore is the pluggable storage backend for conversation state.
//
// Get returns ErrSessionNotFound for missing keys and a different error
// when the backend is unreachable. Put sets or refreshes the key's TTL.
// Both must be atomic with respect to concurrent callers on the same id:
// no caller may observe a partially written session. The store does NOT
// serialize read-modify-write cycles; the Orchestrator holds a per-id
// lock for that.
type SessionStore interface {
	Get(ctx context.Context, id string) (*ConversationSession, error)
	Put(ctx context.Context, id string, session *ConversationSession, ttl time.Duration) error
}

type memEntry struct {
	session   *ConversationSession
	expiresAt time.Time
}

// InMemorySessionStore is a process-scoped SessionStore with per-key TTL.
// It is the fallback tier when the durable backend is unreachable; data is
// lost on restart. Expiry is enforced lazily on read plus via an explicit
// sweep, since in-process maps do not expire themselves.
type InMemorySessionStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	clock   func() time.Time
}

// NewInMemorySessionStore creates an empty in-memory store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		entries: make(map[string]memEntry),
		clock:   time.Now,
	}
}

// Get returns a deep copy of the stored session, or ErrSessionNotFound.
// Expired entries are removed on read.
func (s *InMemorySessionStore) Get(ctx context.Context, id string) (*ConversationSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.clock().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; a Put may have refreshed it.
		if cur, ok := s.entries[id]; ok && s.clock().After(cur.expiresAt) {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

// Put stores a deep copy of the session and resets its TTL.
func (s *InMemorySessionStore) Put(ctx context.Context, id string, session *ConversationSession, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s.mu.Lock()
	s.entries[id] = memEntry{
		session:   session.Clone(),
		expiresAt: s.clock().Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

// Len returns the number of live entries (including not-yet-swept expired ones).
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SweepExpired removes all expired entries and returns how many were dropped.
func (s *InMemorySessionStore) SweepExpired() int {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs SweepExpired every interval until ctx is cancelled.
func (s *InMemorySessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.SweepExpired(); n > 0 {
					log.Printf("[SessionStore] swept %d expired sessions", n)
				}
			}
		}
	}()
}

var _ SessionStore = (*InMemorySessionStore)(nil)
