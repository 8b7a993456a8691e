package honeypot

import (
	"time"
)

// ──────────────────────────────────────────────
// Schemas — conversation state and wire payloads
// ──────────────────────────────────────────────

// ScamState is the tri-state classification of a conversation.
// Once Positive it never reverts (enforced by the Orchestrator).
type ScamState string

const (
	ScamUnknown  ScamState = "unknown"
	ScamNegative ScamState = "negative"
	ScamPositive ScamState = "positive"
)

// Turn is a single inbound-message/outbound-reply cycle.
type Turn struct {
	Index     int       `json:"index"`
	Inbound   string    `json:"inbound_message"`
	Outbound  string    `json:"outbound_reply,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSession is the full accumulated state for one conversation_id.
//
// StrategyTurns counts how many consecutive turns the current strategy has
// been held; LastTurnIntel records how many intelligence items the previous
// turn contributed. Both feed the strategy transition function.
type ConversationSession struct {
	ID            string       `json:"id"`
	Turns         []Turn       `json:"turns"`
	ScamState     ScamState    `json:"scam_detected"`
	Strategy      Strategy     `json:"strategy_state,omitempty"`
	StrategyTurns int          `json:"strategy_turns"`
	LastTurnIntel int          `json:"last_turn_intel"`
	Intelligence  Intelligence `json:"intelligence"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	TurnCount     int          `json:"turn_count"`
}

// NewConversationSession creates an empty session for a previously
// unseen conversation_id.
func NewConversationSession(id string, now time.Time) *ConversationSession {
	return &ConversationSession{
		ID:        id,
		ScamState: ScamUnknown,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendTurn appends a turn, keeping TurnCount and UpdatedAt consistent.
// UpdatedAt never moves backwards even if the clock does.
func (s *ConversationSession) AppendTurn(inbound, outbound string, now time.Time) {
	s.Turns = append(s.Turns, Turn{
		Index:     len(s.Turns),
		Inbound:   inbound,
		Outbound:  outbound,
		Timestamp: now,
	})
	s.TurnCount = len(s.Turns)
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}

// Clone returns a deep copy. Stores hand out clones so that no caller can
// observe a session another goroutine is still mutating.
func (s *ConversationSession) Clone() *ConversationSession {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Turns = make([]Turn, len(s.Turns))
	copy(dup.Turns, s.Turns)
	dup.Intelligence = s.Intelligence.Clone()
	return &dup
}

// EngagementMetrics summarizes how long a conversation has been held.
type EngagementMetrics struct {
	Turns           int `json:"turns"`
	DurationSeconds int `json:"duration_seconds"`
}

// Metrics computes the engagement metrics for the session.
func (s *ConversationSession) Metrics() EngagementMetrics {
	return EngagementMetrics{
		Turns:           s.TurnCount,
		DurationSeconds: int(s.UpdatedAt.Sub(s.CreatedAt).Seconds()),
	}
}

// MessageRequest is the inbound transport payload.
type MessageRequest struct {
	ConversationID string `json:"conversation_id" binding:"required,min=1"`
	Message        string `json:"message" binding:"required,min=1"`
}

// MessageResponse is the outbound transport payload.
type MessageResponse struct {
	ScamDetected      bool              `json:"scam_detected"`
	EngagementMetrics EngagementMetrics `json:"engagement_metrics"`
	Intelligence      Intelligence      `json:"intelligence"`
	Reply             string            `json:"reply,omitempty"`
}

// TurnResult is what ProcessTurn returns for one inbound message.
type TurnResult struct {
	ScamDetected      bool
	EngagementMetrics EngagementMetrics
	Intelligence      Intelligence
	Reply             string
	Strategy          Strategy
	DetectionPath     DetectionPath
	GenerationPath    GenerationPath
}

// Response converts a TurnResult into the wire payload.
func (r *TurnResult) Response() MessageResponse {
	return MessageResponse{
		ScamDetected:      r.ScamDetected,
		EngagementMetrics: r.EngagementMetrics,
		Intelligence:      r.Intelligence,
		Reply:             r.Reply,
	}
}
