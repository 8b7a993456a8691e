package honeypot

import "time"

// ──────────────────────────────────────────────
// Engagement configuration — policy knobs, not invariants
// ──────────────────────────────────────────────

// EngagementConfig bundles the tunable policy parameters of the engine.
// The numeric defaults mirror the stock deployment; none of them is a
// structural requirement.
type EngagementConfig struct {
	// SessionTTL is the stored session lifetime, refreshed on every write.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// Strategy holds the state-machine thresholds.
	Strategy StrategyPolicy `yaml:"strategy"`
	// Detector holds classification thresholds and timeouts.
	Detector DetectorConfig `yaml:"detector"`
	// Agent holds generation timeouts and the neutral reply.
	Agent PersonaAgentConfig `yaml:"agent"`
	// CountryCode is prefixed to bare national phone numbers.
	CountryCode string `yaml:"country_code"`
	// ScanReplies also runs extraction over generated replies.
	ScanReplies bool `yaml:"scan_replies"`
}

// DefaultEngagementConfig returns the stock settings: 24h TTL, 10-turn
// engagement bound, 0.6 heuristic confidence.
func DefaultEngagementConfig() EngagementConfig {
	return EngagementConfig{
		SessionTTL:  DefaultSessionTTL,
		Strategy:    DefaultStrategyPolicy(),
		Detector:    DefaultDetectorConfig(),
		Agent:       DefaultPersonaAgentConfig(),
		CountryCode: "+91",
		ScanReplies: false,
	}
}
