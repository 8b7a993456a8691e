package honeypot

// ──────────────────────────────────────────────
// Strategy Selector — engagement tactic state machine
// ──────────────────────────────────────────────
//
// NextStrategy is a pure function: same input, same output, no I/O.
// The Orchestrator owns the session bookkeeping (turns-in-state, new
// intelligence from the previous turn) that feeds it.

// Strategy is the current engagement tactic.
type Strategy string

const (
	StrategyNone            Strategy = ""
	StrategyProbe           Strategy = "probe"
	StrategyStall           Strategy = "stall"
	StrategyFeignCompliance Strategy = "feign-compliance"
	StrategyExtractDetails  Strategy = "extract-details"
	StrategyDisengage       Strategy = "disengage"
)

// StrategyPolicy holds the tunable transition thresholds.
type StrategyPolicy struct {
	MaxTurns int // disengage at this turn count, default 10
}

// DefaultStrategyPolicy returns the stock thresholds.
func DefaultStrategyPolicy() StrategyPolicy {
	return StrategyPolicy{MaxTurns: 10}
}

// StrategyInput is everything a transition decision may look at.
type StrategyInput struct {
	State        Strategy
	TurnCount    int // 1-based count including the turn being processed
	TurnsInState int // completed turns the current state has been held
	NewIntel     int // intelligence items captured on the previous turn
	Intel        Intelligence
	Signals      []string
}

// pressureSignals indicate urgency compliance demands without (yet) a
// request for sensitive data.
var pressureSignals = map[string]bool{
	SignalUrgency:       true,
	SignalAccountThreat: true,
}

// sensitiveRequestSignals indicate an explicit payment or credential action.
var sensitiveRequestSignals = map[string]bool{
	SignalOTPRequest:        true,
	SignalPaymentRequest:    true,
	SignalCredentialRequest: true,
}

func hasAny(signals []string, set map[string]bool) bool {
	for _, s := range signals {
		if set[s] {
			return true
		}
	}
	return false
}

// NextStrategy advances the engagement state machine by one step.
//
// Transition order matters: disengagement bounds always win, then the
// feign-compliance escalation, then signal-driven advances, then hold.
func NextStrategy(in StrategyInput, policy StrategyPolicy) Strategy {
	if policy.MaxTurns <= 0 {
		policy.MaxTurns = DefaultStrategyPolicy().MaxTurns
	}

	if in.State == StrategyDisengage {
		return StrategyDisengage
	}
	if in.TurnCount >= policy.MaxTurns || in.Intel.Complete() {
		return StrategyDisengage
	}
	if in.State == StrategyNone {
		return StrategyProbe
	}
	if in.State == StrategyFeignCompliance && in.TurnsInState >= 1 && in.NewIntel == 0 {
		return StrategyExtractDetails
	}
	if (in.State == StrategyProbe || in.State == StrategyStall) &&
		hasAny(in.Signals, sensitiveRequestSignals) {
		return StrategyFeignCompliance
	}
	if in.State == StrategyProbe &&
		hasAny(in.Signals, pressureSignals) &&
		!hasAny(in.Signals, sensitiveRequestSignals) {
		return StrategyStall
	}
	return in.State
}
