package honeypot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ══════════════════════════════════════════════
// Orchestrator
// ══════════════════════════════════════════════

func newTestOrchestrator(store SessionStore) *Orchestrator {
	detector := NewDetector(nil)
	agent := NewPersonaAgent(nil, DefaultPersonaConfig())
	return NewOrchestrator(store, detector, agent)
}

type failingStore struct {
	getErr error
	putErr error
	inner  SessionStore
}

func (s *failingStore) Get(ctx context.Context, id string) (*ConversationSession, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.inner.Get(ctx, id)
}

func (s *failingStore) Put(ctx context.Context, id string, session *ConversationSession, ttl time.Duration) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.inner.Put(ctx, id, session, ttl)
}

func TestProcessTurn_BenignMessage(t *testing.T) {
	store := NewInMemorySessionStore()
	o := newTestOrchestrator(store)

	result, err := o.ProcessTurn(context.Background(), "conv-1", "hello, are we still meeting for lunch tomorrow?")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if result.ScamDetected {
		t.Fatal("benign message must not be flagged")
	}
	if result.Reply != DefaultPersonaAgentConfig().NeutralReply {
		t.Fatalf("expected neutral reply, got %q", result.Reply)
	}
	if result.Strategy != StrategyNone {
		t.Fatalf("no strategy should engage for non-scam, got %s", result.Strategy)
	}
	if result.EngagementMetrics.Turns != 1 {
		t.Fatalf("expected 1 turn, got %d", result.EngagementMetrics.Turns)
	}

	sess, err := store.Get(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if sess.ScamState != ScamNegative {
		t.Fatalf("expected negative state recorded, got %s", sess.ScamState)
	}
}

func TestProcessTurn_ScamEngagesProbe(t *testing.T) {
	store := NewInMemorySessionStore()
	o := newTestOrchestrator(store)

	result, err := o.ProcessTurn(context.Background(), "conv-2", scamMessage)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !result.ScamDetected {
		t.Fatal("expected scam flagged")
	}
	if result.Strategy != StrategyProbe {
		t.Fatalf("first scam turn should probe, got %s", result.Strategy)
	}
	if result.Reply != fallbackReplies[StrategyProbe] {
		t.Fatalf("nil generator should use the static probe reply, got %q", result.Reply)
	}
	if result.GenerationPath != GenFallback {
		t.Fatalf("expected fallback generation, got %s", result.GenerationPath)
	}
}

func TestProcessTurn_DetectionIsMonotonic(t *testing.T) {
	store := NewInMemorySessionStore()
	o := newTestOrchestrator(store)
	ctx := context.Background()

	if _, err := o.ProcessTurn(ctx, "conv-3", scamMessage); err != nil {
		t.Fatal(err)
	}
	// A harmless follow-up must not clear the flag.
	result, err := o.ProcessTurn(ctx, "conv-3", "thank you sir, have a nice day")
	if err != nil {
		t.Fatal(err)
	}
	if !result.ScamDetected {
		t.Fatal("scam flag must never revert")
	}
	if result.DetectionPath != DetectSkipped {
		t.Fatalf("settled sessions skip classification, got %s", result.DetectionPath)
	}
	if result.Strategy == StrategyNone {
		t.Fatal("engagement must continue on settled sessions")
	}
}

func TestProcessTurn_ConcurrentSameConversation(t *testing.T) {
	store := NewInMemorySessionStore()
	o := newTestOrchestrator(store)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := fmt.Sprintf("URGENT: account suspended, share OTP now (%d)", i)
			if _, err := o.ProcessTurn(context.Background(), "conv-race", msg); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("ProcessTurn: %v", err)
	}

	sess, err := store.Get(context.Background(), "conv-race")
	if err != nil {
		t.Fatal(err)
	}
	if sess.TurnCount != 2 {
		t.Fatalf("expected both turns recorded, got turn_count=%d", sess.TurnCount)
	}
	if len(sess.Turns) != 2 {
		t.Fatalf("expected 2 turns in history, got %d", len(sess.Turns))
	}
}

func TestProcessTurn_IntelligenceAccumulates(t *testing.T) {
	store := NewInMemorySessionStore()
	o := newTestOrchestrator(store)
	ctx := context.Background()

	first, err := o.ProcessTurn(ctx, "conv-4", "URGENT: account suspended, verify KYC and pay to scammer@upi via http://fake.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Intelligence.UPIIDs) != 1 || len(first.Intelligence.URLs) != 1 {
		t.Fatalf("first turn intel: %+v", first.Intelligence)
	}

	second, err := o.ProcessTurn(ctx, "conv-4", "or transfer directly to account 123456789012, share OTP after")
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Intelligence.UPIIDs) != 1 {
		t.Fatal("earlier intel must survive later turns")
	}
	if len(second.Intelligence.BankAccounts) != 1 {
		t.Fatalf("bank account not captured: %+v", second.Intelligence)
	}

	// Repeating the same details must not duplicate anything.
	third, err := o.ProcessTurn(ctx, "conv-4", "pay scammer@upi to account 123456789012 now")
	if err != nil {
		t.Fatal(err)
	}
	if third.Intelligence.Total() != second.Intelligence.Total() {
		t.Fatalf("repeated intel duplicated: %+v", third.Intelligence)
	}
}

func TestProcessTurn_StoreUnavailableOnLoad(t *testing.T) {
	store := &failingStore{getErr: errors.New("connection refused")}
	o := newTestOrchestrator(store)

	_, err := o.ProcessTurn(context.Background(), "conv-5", scamMessage)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if o.Metrics().Snapshot().StoreFailures != 1 {
		t.Fatal("store failure not counted")
	}
}

func TestProcessTurn_StoreUnavailableOnPersist(t *testing.T) {
	store := &failingStore{putErr: errors.New("write timeout"), inner: NewInMemorySessionStore()}
	o := newTestOrchestrator(store)

	_, err := o.ProcessTurn(context.Background(), "conv-6", scamMessage)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestProcessTurn_NotFoundCreatesSession(t *testing.T) {
	store := NewInMemorySessionStore()
	o := newTestOrchestrator(store)

	result, err := o.ProcessTurn(context.Background(), "conv-new", "hello there")
	if err != nil {
		t.Fatalf("missing session must not be an error: %v", err)
	}
	if result.EngagementMetrics.Turns != 1 {
		t.Fatalf("fresh session should record its first turn, got %d", result.EngagementMetrics.Turns)
	}
}

func TestProcessTurn_CancelledBeforePersist(t *testing.T) {
	store := NewInMemorySessionStore()
	ctx, cancel := context.WithCancel(context.Background())

	// Classifier cancels the caller mid-turn, after the session load.
	classifier := func(ctx context.Context, message string, history []Turn) (*Classification, error) {
		cancel()
		return &Classification{IsScam: true, Confidence: 0.9}, nil
	}
	detector := NewDetector(classifier)
	agent := NewPersonaAgent(nil, DefaultPersonaConfig())
	o := NewOrchestrator(store, detector, agent)

	_, err := o.ProcessTurn(ctx, "conv-7", scamMessage)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("a cancelled turn must not persist anything")
	}
}

func TestProcessTurn_CancelledIsNotAStoreFailure(t *testing.T) {
	store := NewInMemorySessionStore()
	o := newTestOrchestrator(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.ProcessTurn(ctx, "conv-12", scamMessage)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Fatal("a dead caller must not read as a store outage")
	}
	if o.Metrics().Snapshot().StoreFailures != 0 {
		t.Fatal("a dead caller must not count as a store failure")
	}
}

func TestProcessTurn_Validation(t *testing.T) {
	o := newTestOrchestrator(NewInMemorySessionStore())

	if _, err := o.ProcessTurn(context.Background(), "", "hi"); err == nil {
		t.Fatal("empty conversation id must be rejected")
	}
	if _, err := o.ProcessTurn(context.Background(), "conv-8", ""); err == nil {
		t.Fatal("empty message must be rejected")
	}
}

func TestProcessTurn_DisengagesAtTurnLimit(t *testing.T) {
	store := NewInMemorySessionStore()
	o := newTestOrchestrator(store)
	ctx := context.Background()

	var last *TurnResult
	for i := 1; i <= 12; i++ {
		result, err := o.ProcessTurn(ctx, "conv-9", fmt.Sprintf("URGENT: share OTP to verify account, message %d", i))
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if i < DefaultStrategyPolicy().MaxTurns && result.Strategy == StrategyDisengage {
			t.Fatalf("disengaged too early at turn %d", i)
		}
		last = result
	}
	if last.Strategy != StrategyDisengage {
		t.Fatalf("expected disengage after the turn bound, got %s", last.Strategy)
	}
}

func TestProcessTurn_MetricsCount(t *testing.T) {
	store := NewInMemorySessionStore()
	o := newTestOrchestrator(store)
	ctx := context.Background()

	o.ProcessTurn(ctx, "conv-10", scamMessage)
	o.ProcessTurn(ctx, "conv-10", "ok tell me more")
	o.ProcessTurn(ctx, "conv-11", "lunch at noon?")

	snap := o.Metrics().Snapshot()
	if snap.TurnsProcessed != 3 {
		t.Fatalf("expected 3 turns processed, got %d", snap.TurnsProcessed)
	}
	if snap.ScamsFlagged != 1 {
		t.Fatalf("expected 1 scam flagged, got %d", snap.ScamsFlagged)
	}
	if snap.GeneratorFallbacks == 0 {
		t.Fatal("nil generator should count generator fallbacks")
	}
}
