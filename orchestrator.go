package honeypot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ──────────────────────────────────────────────
// Orchestrator — per-turn conversation engine
// ──────────────────────────────────────────────
//
// One inbound message drives: session load → detection → strategy →
// reply generation → intelligence extraction → persist. Per-conversation
// mutual exclusion is enforced here with a keyed lock table; the stores
// themselves only guarantee atomic reads and writes.

// lockTable hands out one mutex per live conversation id. Entries are
// reference-counted so the table does not grow with every id ever seen.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

func (t *lockTable) acquire(id string) *lockEntry {
	t.mu.Lock()
	entry, ok := t.locks[id]
	if !ok {
		entry = &lockEntry{}
		t.locks[id] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()
	return entry
}

func (t *lockTable) release(id string, entry *lockEntry) {
	entry.mu.Unlock()

	t.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(t.locks, id)
	}
	t.mu.Unlock()
}

// Orchestrator composes the detector, strategy selector, persona agent and
// extractor around a session store.
type Orchestrator struct {
	store     SessionStore
	detector  *Detector
	agent     *PersonaAgent
	extractor *Extractor
	config    EngagementConfig
	metrics   *EngineMetrics
	locks     *lockTable
	clock     func() time.Time
}

// NewOrchestrator wires an engine together. Config is optional; the stock
// settings apply when omitted.
func NewOrchestrator(store SessionStore, detector *Detector, agent *PersonaAgent, config ...EngagementConfig) *Orchestrator {
	cfg := DefaultEngagementConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	return &Orchestrator{
		store:     store,
		detector:  detector,
		agent:     agent,
		extractor: NewExtractor(cfg.CountryCode),
		config:    cfg,
		metrics:   &EngineMetrics{},
		locks:     newLockTable(),
		clock:     time.Now,
	}
}

// Metrics exposes the process-wide counters.
func (o *Orchestrator) Metrics() *EngineMetrics {
	return o.metrics
}

// ProcessTurn handles one inbound message for a conversation.
//
// The session is mutated only on a local copy and persisted in a single
// Put, so a cancelled or failed call never leaves a half-updated session
// behind. ErrStoreUnavailable is the only fatal condition; detection and
// generation degrade internally.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conversationID, message string) (*TurnResult, error) {
	if conversationID == "" {
		return nil, errors.New("conversation_id is required")
	}
	if message == "" {
		return nil, errors.New("message is required")
	}

	entry := o.locks.acquire(conversationID)
	defer o.locks.release(conversationID, entry)

	now := o.clock()

	// 1. Load or create the session.
	sess, err := o.store.Get(ctx, conversationID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		sess = NewConversationSession(conversationID, now)
	case err != nil:
		// A dead caller context is the caller's condition, not an outage.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		o.metrics.StoreFailures.Inc()
		return nil, fmt.Errorf("%w: load %q: %v", ErrStoreUnavailable, conversationID, err)
	}

	// 2. Detection. Once a session is scam-positive it stays positive:
	// the counterpart cannot talk their way out of the flag.
	var detection DetectionResult
	if sess.ScamState == ScamPositive {
		detection = DetectionResult{IsScam: true, Confidence: 1, Path: DetectSkipped}
		detection.Signals = o.signalScan(message)
	} else {
		detection = o.detector.Detect(ctx, message, sess.Turns)
		if detection.Path == DetectFallback || detection.Path == DetectFailed {
			o.metrics.DetectorFallbacks.Inc()
		}
		if detection.IsScam {
			if sess.ScamState != ScamPositive {
				o.metrics.ScamsFlagged.Inc()
			}
			sess.ScamState = ScamPositive
		} else if sess.ScamState == ScamUnknown {
			sess.ScamState = ScamNegative
		}
	}

	// 3. Strategy + reply.
	var reply string
	genPath := GenNeutral
	if sess.ScamState == ScamPositive {
		next := NextStrategy(StrategyInput{
			State:        sess.Strategy,
			TurnCount:    sess.TurnCount + 1,
			TurnsInState: sess.StrategyTurns,
			NewIntel:     sess.LastTurnIntel,
			Intel:        sess.Intelligence,
			Signals:      detection.Signals,
		}, o.config.Strategy)
		if next == sess.Strategy {
			sess.StrategyTurns++
		} else {
			sess.Strategy = next
			sess.StrategyTurns = 0
		}
		reply, genPath = o.agent.Reply(ctx, sess.Strategy, sess.Turns, message)
		if genPath == GenFallback {
			o.metrics.GeneratorFallbacks.Inc()
		}
	} else {
		reply = o.agent.NeutralReply()
	}

	// 4. Extraction runs on every turn: scam signals can show up before
	// the classification is confident.
	found := o.extractor.Extract(message)
	if o.config.ScanReplies && reply != "" {
		found.Merge(o.extractor.Extract(reply))
	}
	added := sess.Intelligence.Merge(found)
	sess.LastTurnIntel = added
	if added > 0 {
		o.metrics.IntelItemsCaptured.Add(int64(added))
	}

	// 5. Append the turn and persist with a refreshed TTL. Bail out before
	// the write if the caller is already gone: persistence is all-or-nothing.
	sess.AppendTurn(message, reply, now)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.store.Put(ctx, conversationID, sess, o.config.SessionTTL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		o.metrics.StoreFailures.Inc()
		return nil, fmt.Errorf("%w: persist %q: %v", ErrStoreUnavailable, conversationID, err)
	}

	o.metrics.TurnsProcessed.Inc()
	log.Printf("[Orchestrator] conversation=%s turn=%d scam=%s strategy=%s detect=%s gen=%s new_intel=%d signals=%s",
		conversationID, sess.TurnCount, sess.ScamState, sess.Strategy,
		detection.Path, genPath, added, describeSignals(detection.Signals))

	// 6. Compose the result.
	return &TurnResult{
		ScamDetected:      sess.ScamState == ScamPositive,
		EngagementMetrics: sess.Metrics(),
		Intelligence:      sess.Intelligence.Canonical(),
		Reply:             reply,
		Strategy:          sess.Strategy,
		DetectionPath:     detection.Path,
		GenerationPath:    genPath,
	}, nil
}

// signalScan reruns only the indicator scan, for turns where the detector
// verdict is already settled but the strategy still needs fresh signals.
func (o *Orchestrator) signalScan(message string) []string {
	signals, _ := o.detector.scanIndicators(message)
	return signals
}
