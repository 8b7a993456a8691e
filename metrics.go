package honeypot

import (
	"go.uber.org/atomic"
)

// ──────────────────────────────────────────────
// Engine metrics — process-wide counters
// ──────────────────────────────────────────────

// EngineMetrics counts what happened across all conversations since start.
// All counters are safe for concurrent use.
type EngineMetrics struct {
	TurnsProcessed     atomic.Int64
	ScamsFlagged       atomic.Int64
	DetectorFallbacks  atomic.Int64
	GeneratorFallbacks atomic.Int64
	IntelItemsCaptured atomic.Int64
	StoreFailures      atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	TurnsProcessed     int64 `json:"turns_processed"`
	ScamsFlagged       int64 `json:"scams_flagged"`
	DetectorFallbacks  int64 `json:"detector_fallbacks"`
	GeneratorFallbacks int64 `json:"generator_fallbacks"`
	IntelItemsCaptured int64 `json:"intel_items_captured"`
	StoreFailures      int64 `json:"store_failures"`
}

// Snapshot returns a consistent-enough copy for reporting.
func (m *EngineMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TurnsProcessed:     m.TurnsProcessed.Load(),
		ScamsFlagged:       m.ScamsFlagged.Load(),
		DetectorFallbacks:  m.DetectorFallbacks.Load(),
		GeneratorFallbacks: m.GeneratorFallbacks.Load(),
		IntelItemsCaptured: m.IntelItemsCaptured.Load(),
		StoreFailures:      m.StoreFailures.Load(),
	}
}
