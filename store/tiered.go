package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.uber.org/atomic"

	honeypot "github.com/decoynet/honeypot-agent-go"
)

// StoreMode tags which tier served the last call.
type StoreMode string

const (
	ModePrimary  StoreMode = "primary"
	ModeFallback StoreMode = "fallback"
)

// TieredSessionStore is a durable primary with an in-process fallback.
//
// Fallback activation is per-call: every Get/Put tries the primary first
// and drops to the fallback only when the primary is unreachable for that
// call. There is no retry loop — the primary's own bounded timeouts are
// the only wait.
//
// The tiers are deliberately NOT synchronized. Sessions written to the
// fallback during a primary outage are invisible once the primary
// recovers, until the next write overwrites them there. That is an
// accepted availability-over-consistency tradeoff: a honeypot that keeps
// talking with slightly stale state beats one that stops talking.
type TieredSessionStore struct {
	primary  honeypot.SessionStore
	fallback honeypot.SessionStore

	mode      atomic.String
	degradedN atomic.Int64
}

// NewTieredSessionStore composes the two tiers. fallback is typically an
// *honeypot.InMemorySessionStore.
func NewTieredSessionStore(primary, fallback honeypot.SessionStore) *TieredSessionStore {
	t := &TieredSessionStore{primary: primary, fallback: fallback}
	t.mode.Store(string(ModePrimary))
	return t
}

// Mode reports which tier served the most recent call.
func (t *TieredSessionStore) Mode() StoreMode {
	return StoreMode(t.mode.Load())
}

// Degradations counts how many calls fell back to the in-process tier.
func (t *TieredSessionStore) Degradations() int64 {
	return t.degradedN.Load()
}

// Get tries the primary, then the fallback. A primary "not found" is a
// real answer and does not activate the fallback.
func (t *TieredSessionStore) Get(ctx context.Context, id string) (*honeypot.ConversationSession, error) {
	sess, err := t.primary.Get(ctx, id)
	if err == nil || errors.Is(err, honeypot.ErrSessionNotFound) {
		t.mode.Store(string(ModePrimary))
		return sess, err
	}
	// A dead caller context fails both tiers identically; that is not a
	// primary outage.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	t.degrade("get", id, err)
	sess, fbErr := t.fallback.Get(ctx, id)
	if fbErr == nil || errors.Is(fbErr, honeypot.ErrSessionNotFound) {
		return sess, fbErr
	}
	return nil, fmt.Errorf("both stores failed: primary: %v; fallback: %w", err, fbErr)
}

// Put tries the primary, then the fallback, refreshing the TTL in
// whichever tier takes the write.
func (t *TieredSessionStore) Put(ctx context.Context, id string, session *honeypot.ConversationSession, ttl time.Duration) error {
	err := t.primary.Put(ctx, id, session, ttl)
	if err == nil {
		t.mode.Store(string(ModePrimary))
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	t.degrade("put", id, err)
	if fbErr := t.fallback.Put(ctx, id, session, ttl); fbErr != nil {
		return fmt.Errorf("both stores failed: primary: %v; fallback: %w", err, fbErr)
	}
	return nil
}

func (t *TieredSessionStore) degrade(op, id string, err error) {
	t.mode.Store(string(ModeFallback))
	t.degradedN.Inc()
	log.Printf("[TieredStore] primary %s failed for %q, using in-process fallback: %v", op, id, err)
}

var _ honeypot.SessionStore = (*TieredSessionStore)(nil)
