package honeypot

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ──────────────────────────────────────────────
// Detector — scam intent classification with heuristic fallback
// ──────────────────────────────────────────────
//
// The primary path is an opaque text-classification capability (an LLM in
// production). When it times out, errors, or returns garbage, a
// deterministic indicator scan takes over with a fixed fallback confidence.
// The indicator scan also runs on the primary path, because its matched
// indicator names are the signals the strategy selector keys on.

// Signal names emitted by the indicator scan.
const (
	SignalOTPRequest        = "otp_request"
	SignalKYCAlert          = "kyc_alert"
	SignalUrgency           = "urgency_pressure"
	SignalAccountThreat     = "account_threat"
	SignalLotteryOffer      = "lottery_offer"
	SignalVerification      = "verification_request"
	SignalPaymentRequest    = "payment_request"
	SignalCredentialRequest = "credential_request"
	SignalPaymentApp        = "payment_app"
	SignalLinkLure          = "link_lure"
	SignalShortLink         = "short_link"
	SignalSupportImperson   = "support_impersonation"

	// SignalDetectorDegraded marks that the primary classifier failed and
	// the heuristic decided. SignalDetectorFailure marks that no detection
	// path produced a result at all.
	SignalDetectorDegraded = "detector_degraded"
	SignalDetectorFailure  = "detector_failure"
)

// DetectionPath tags which path produced the verdict.
type DetectionPath string

const (
	DetectPrimary  DetectionPath = "primary"
	DetectFallback DetectionPath = "fallback"
	DetectFailed   DetectionPath = "failed"
	DetectSkipped  DetectionPath = "skipped" // session already scam-positive
)

// Classification is what the primary classifier returns.
type Classification struct {
	IsScam     bool
	Confidence float64
}

// ClassifierFunc is the opaque text-classification capability.
// Implementations must honor ctx cancellation.
type ClassifierFunc func(ctx context.Context, message string, history []Turn) (*Classification, error)

// DetectionResult is the detector's verdict for one message.
type DetectionResult struct {
	IsScam     bool
	Confidence float64
	Signals    []string
	Path       DetectionPath
}

type indicator struct {
	name    string
	pattern *regexp.Regexp
}

var defaultIndicators = []indicator{
	{SignalOTPRequest, regexp.MustCompile(`(?i)\b(otp|one.?time.?password|pin|cvv)\b`)},
	{SignalKYCAlert, regexp.MustCompile(`(?i)\b(kyc|know.?your.?customer)\b`)},
	{SignalUrgency, regexp.MustCompile(`(?i)\b(urgent(ly)?|immediately|right now|act now|expires?|within \d+ (hours?|minutes?))\b`)},
	{SignalAccountThreat, regexp.MustCompile(`(?i)\b(blocked|deactivated|suspended|locked|frozen)\b`)},
	{SignalLotteryOffer, regexp.MustCompile(`(?i)\b(refund|cashback|bonus|prize|lottery|winner|won|reward)\b`)},
	{SignalVerification, regexp.MustCompile(`(?i)\b(verify|verification|validate|confirm your)\b`)},
	{SignalPaymentRequest, regexp.MustCompile(`(?i)\b(transfer|send.?money|pay(ment)?|deposit|processing fee)\b`)},
	{SignalCredentialRequest, regexp.MustCompile(`(?i)\b(password|credentials|card.?number|account.?details|bank.?account|net.?banking)\b`)},
	{SignalPaymentApp, regexp.MustCompile(`(?i)\b(upi|gpay|google pay|paytm|phonepe|bhim)\b`)},
	{SignalLinkLure, regexp.MustCompile(`(?i)\b(click.?(here|link)|tap.?(here|link)|open.?(the.?)?link)\b`)},
	{SignalShortLink, regexp.MustCompile(`(?i)\b(bit\.ly|tinyurl|goo\.gl|t\.co|rebrand\.ly|is\.gd|v\.gd)\b`)},
	{SignalSupportImperson, regexp.MustCompile(`(?i)\b(customer.?care|support.?team|helpline|service desk)\b`)},
}

// DetectorConfig controls detection behavior.
type DetectorConfig struct {
	// PrimaryTimeout bounds one classifier call.
	PrimaryTimeout time.Duration
	// FallbackConfidence is the fixed confidence the heuristic reports
	// when it flags a message.
	FallbackConfidence float64
	// MinIndicators is how many distinct indicators the heuristic needs
	// before flagging. Short-link lures count double.
	MinIndicators int
	// HistoryWindow limits how much history is handed to the classifier.
	HistoryWindow int
}

// DefaultDetectorConfig returns the stock thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		PrimaryTimeout:     5 * time.Second,
		FallbackConfidence: 0.6,
		MinIndicators:      2,
		HistoryWindow:      5,
	}
}

// Detector classifies inbound messages.
type Detector struct {
	classifier ClassifierFunc // nil = heuristic-only mode
	indicators []indicator
	config     DetectorConfig
}

// NewDetector creates a detector. A nil classifier means the heuristic
// path decides every message.
func NewDetector(classifier ClassifierFunc, config ...DetectorConfig) *Detector {
	cfg := DefaultDetectorConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.FallbackConfidence <= 0 {
		cfg.FallbackConfidence = DefaultDetectorConfig().FallbackConfidence
	}
	if cfg.MinIndicators <= 0 {
		cfg.MinIndicators = DefaultDetectorConfig().MinIndicators
	}
	return &Detector{
		classifier: classifier,
		indicators: defaultIndicators,
		config:     cfg,
	}
}

// Detect classifies one message in the context of its history.
// It never returns an error: every failure degrades to a weaker verdict.
func (d *Detector) Detect(ctx context.Context, message string, history []Turn) DetectionResult {
	signals, score := d.scanIndicators(message)

	if d.classifier != nil {
		callCtx := ctx
		if d.config.PrimaryTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, d.config.PrimaryTimeout)
			defer cancel()
		}
		cls, err := d.classifier(callCtx, message, tailTurns(history, d.config.HistoryWindow))
		if err == nil && cls != nil && cls.Confidence >= 0 && cls.Confidence <= 1 {
			return DetectionResult{
				IsScam:     cls.IsScam,
				Confidence: cls.Confidence,
				Signals:    signals,
				Path:       DetectPrimary,
			}
		}
		log.Printf("[Detector] primary classifier failed, falling back to heuristics: %v", err)
		signals = append(signals, SignalDetectorDegraded)
	}

	if len(d.indicators) == 0 {
		// No heuristic catalogue either: fail safe, do not engage.
		return DetectionResult{
			IsScam:     false,
			Confidence: 0,
			Signals:    append(signals, SignalDetectorFailure),
			Path:       DetectFailed,
		}
	}

	if score >= d.config.MinIndicators {
		return DetectionResult{
			IsScam:     true,
			Confidence: d.config.FallbackConfidence,
			Signals:    signals,
			Path:       DetectFallback,
		}
	}
	return DetectionResult{
		IsScam:     false,
		Confidence: 0,
		Signals:    signals,
		Path:       DetectFallback,
	}
}

// scanIndicators returns matched indicator names (sorted, deduplicated)
// and the weighted match score.
func (d *Detector) scanIndicators(message string) ([]string, int) {
	var names []string
	score := 0
	for _, ind := range d.indicators {
		if ind.pattern.MatchString(message) {
			names = append(names, ind.name)
			if ind.name == SignalShortLink {
				score += 2
			} else {
				score++
			}
		}
	}
	sort.Strings(names)
	return names, score
}

func tailTurns(history []Turn, n int) []Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// HasSignal reports whether a result carries the named signal.
func (r DetectionResult) HasSignal(name string) bool {
	for _, s := range r.Signals {
		if s == name {
			return true
		}
	}
	return false
}

// describeSignals joins signals for logging.
func describeSignals(signals []string) string {
	if len(signals) == 0 {
		return "none"
	}
	return strings.Join(signals, ",")
}
