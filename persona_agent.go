package honeypot

import (
	"context"
	"log"
	"strings"
	"time"
)

// ──────────────────────────────────────────────
// Persona Agent — believable reply generation
// ──────────────────────────────────────────────
//
// Generation is best-effort: one retry with a trimmed history and a shorter
// timeout, then a static per-strategy reply. A turn never fails because the
// generator did.

// PersonaConfig describes the decoy identity fed to the generator.
type PersonaConfig struct {
	Name       string `json:"name" yaml:"name"`
	Age        int    `json:"age" yaml:"age"`
	Background string `json:"background" yaml:"background"`
	Style      string `json:"style" yaml:"style"`
}

// DefaultPersonaConfig returns the stock decoy identity.
func DefaultPersonaConfig() PersonaConfig {
	return PersonaConfig{
		Name:       "Ramesh",
		Age:        58,
		Background: "retired school teacher, not comfortable with smartphones",
		Style:      "polite, slightly confused, asks things to be repeated",
	}
}

// GenerateFunc is the opaque text-generation capability.
// Implementations must honor ctx cancellation.
type GenerateFunc func(ctx context.Context, strategy Strategy, history []Turn, persona PersonaConfig, message string) (string, error)

// GenerationPath tags which path produced the reply.
type GenerationPath string

const (
	GenPrimary  GenerationPath = "primary"
	GenRetry    GenerationPath = "retry"
	GenFallback GenerationPath = "fallback"
	GenNeutral  GenerationPath = "neutral" // non-scam acknowledgement
)

// fallbackReplies are the static replies used when generation fails.
var fallbackReplies = map[Strategy]string{
	StrategyProbe:           "I see. Can you tell me more about this?",
	StrategyStall:           "Let me check with my family first. Can we continue later?",
	StrategyFeignCompliance: "Okay, I want to do this. I'm a bit confused about the payment, can you explain again?",
	StrategyExtractDetails:  "Sorry, I couldn't note it down. Can you send the account number and link once more?",
	StrategyDisengage:       "I have to go now, someone is at the door. I will message you later.",
}

// PersonaAgentConfig controls generation behavior.
type PersonaAgentConfig struct {
	Timeout      time.Duration // bound for the first generation attempt
	RetryTimeout time.Duration // tighter bound for the single retry
	HistoryLimit int           // turns of history on the first attempt
	RetryHistory int           // turns of history on the retry
	NeutralReply string        // acknowledgement for non-scam messages
}

// DefaultPersonaAgentConfig returns the stock settings.
func DefaultPersonaAgentConfig() PersonaAgentConfig {
	return PersonaAgentConfig{
		Timeout:      10 * time.Second,
		RetryTimeout: 4 * time.Second,
		HistoryLimit: 12,
		RetryHistory: 2,
		NeutralReply: "Thank you for your message. How can I help you today?",
	}
}

// PersonaAgent produces outbound replies consistent with a persona and the
// selected strategy.
type PersonaAgent struct {
	generate GenerateFunc // nil = fallback replies only
	persona  PersonaConfig
	config   PersonaAgentConfig
}

// NewPersonaAgent creates an agent. A nil generate func means every reply
// comes from the static fallback table.
func NewPersonaAgent(generate GenerateFunc, persona PersonaConfig, config ...PersonaAgentConfig) *PersonaAgent {
	cfg := DefaultPersonaAgentConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.NeutralReply == "" {
		cfg.NeutralReply = DefaultPersonaAgentConfig().NeutralReply
	}
	return &PersonaAgent{generate: generate, persona: persona, config: cfg}
}

// Reply generates the next outbound message for the selected strategy.
func (a *PersonaAgent) Reply(ctx context.Context, strategy Strategy, history []Turn, message string) (string, GenerationPath) {
	if a.generate == nil {
		return a.fallbackReply(strategy), GenFallback
	}

	if reply, ok := a.attempt(ctx, strategy, tailTurns(history, a.config.HistoryLimit), message, a.config.Timeout); ok {
		return reply, GenPrimary
	}

	// Single retry: shorter history, tighter timeout.
	if reply, ok := a.attempt(ctx, strategy, tailTurns(history, a.config.RetryHistory), message, a.config.RetryTimeout); ok {
		log.Printf("[PersonaAgent] primary generation failed, retry succeeded (strategy=%s)", strategy)
		return reply, GenRetry
	}

	log.Printf("[PersonaAgent] generation failed after retry, using static reply (strategy=%s)", strategy)
	return a.fallbackReply(strategy), GenFallback
}

// NeutralReply returns the acknowledgement used when no scam was detected.
func (a *PersonaAgent) NeutralReply() string {
	return a.config.NeutralReply
}

func (a *PersonaAgent) attempt(ctx context.Context, strategy Strategy, history []Turn, message string, timeout time.Duration) (string, bool) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	reply, err := a.generate(callCtx, strategy, history, a.persona, message)
	if err != nil {
		return "", false
	}
	reply = strings.TrimSpace(strings.Trim(strings.TrimSpace(reply), `"'`))
	if reply == "" {
		return "", false
	}
	return reply, true
}

func (a *PersonaAgent) fallbackReply(strategy Strategy) string {
	if reply, ok := fallbackReplies[strategy]; ok {
		return reply
	}
	return fallbackReplies[StrategyProbe]
}
