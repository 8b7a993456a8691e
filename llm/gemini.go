package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	honeypot "github.com/decoynet/honeypot-agent-go"
)

// GeminiClient adapts the Gemini API to the engine's classifier and
// generator capabilities. The engine itself never imports this package;
// it only sees the two function values.
type GeminiClient struct {
	client     *genai.Client
	classifier *genai.GenerativeModel
	generator  *genai.GenerativeModel
	logger     *zap.Logger
}

// GeminiConfig configures the adapter.
type GeminiConfig struct {
	APIKey    string
	ModelName string // default "gemini-2.0-flash-exp"
}

const detectionInstruction = `You classify messages for scam intent (phishing,
payment fraud, OTP theft, fake offers, impersonation). Given a conversation and
the latest message, respond with JSON only:
{"is_scam": true|false, "confidence": 0.0-1.0}`

// NewGeminiClient creates the adapter.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash-exp"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	classifier := client.GenerativeModel(cfg.ModelName)
	classifier.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(detectionInstruction)},
	}
	// ResponseMIMEType lives inside GenerationConfig; setting it outside the
	// literal would be overwritten by this assignment.
	classifier.GenerationConfig = genai.GenerationConfig{
		Temperature:      genai.Ptr[float32](0.1), // low, for consistent classification
		MaxOutputTokens:  genai.Ptr[int32](100),
		ResponseMIMEType: "application/json",
	}

	generator := client.GenerativeModel(cfg.ModelName)
	generator.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.8),
		MaxOutputTokens: genai.Ptr[int32](300),
	}

	logger.Info("Gemini adapter initialized", zap.String("model", cfg.ModelName))

	return &GeminiClient{
		client:     client,
		classifier: classifier,
		generator:  generator,
		logger:     logger,
	}, nil
}

// Close releases the underlying client.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// Classifier returns the engine's primary detection capability.
func (g *GeminiClient) Classifier() honeypot.ClassifierFunc {
	return func(ctx context.Context, message string, history []honeypot.Turn) (*honeypot.Classification, error) {
		prompt := fmt.Sprintf("Conversation so far:\n%s\nLatest message:\n%s\n\nClassify for scam intent.",
			transcript(history), message)

		resp, err := g.classifier.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, fmt.Errorf("gemini classify: %w", err)
		}
		text := responseText(resp)
		var out struct {
			IsScam     bool    `json:"is_scam"`
			Confidence float64 `json:"confidence"`
		}
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return nil, fmt.Errorf("gemini classify: malformed response %q: %w", text, err)
		}
		return &honeypot.Classification{IsScam: out.IsScam, Confidence: out.Confidence}, nil
	}
}

// strategyDirectives translate the state machine's node into a generation
// instruction. The persona must never reveal real data or break character.
var strategyDirectives = map[honeypot.Strategy]string{
	honeypot.StrategyProbe:           "Ask mild clarifying questions about what they want. Sound interested but unsure.",
	honeypot.StrategyStall:           "Stall for time. Mention needing to find glasses, ask family, or poor network. Do not refuse.",
	honeypot.StrategyFeignCompliance: "Agree to comply. Ask exactly where to send the money or which link/app to use, as if ready to act.",
	honeypot.StrategyExtractDetails:  "Say you could not note the details. Ask them to repeat the account number, UPI id, link or phone number.",
	honeypot.StrategyDisengage:       "Politely wind down the conversation with a believable interruption.",
}

// Generator returns the engine's persona reply capability.
func (g *GeminiClient) Generator() honeypot.GenerateFunc {
	return func(ctx context.Context, strategy honeypot.Strategy, history []honeypot.Turn, persona honeypot.PersonaConfig, message string) (string, error) {
		var b strings.Builder
		fmt.Fprintf(&b, "You are %s, %d years old: %s. Speaking style: %s.\n", persona.Name, persona.Age, persona.Background, persona.Style)
		b.WriteString("You are chatting with a suspected scammer. Stay fully in character, never reveal real personal or payment data, never admit suspicion.\n")
		b.WriteString("Tactic for this reply: " + strategyDirectives[strategy] + "\n\n")
		b.WriteString("Conversation so far:\n")
		b.WriteString(transcript(history))
		fmt.Fprintf(&b, "Their latest message:\n%s\n\nReply with the message text only.", message)

		resp, err := g.generator.GenerateContent(ctx, genai.Text(b.String()))
		if err != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		return responseText(resp), nil
	}
}

func transcript(history []honeypot.Turn) string {
	if len(history) == 0 {
		return "(no prior messages)\n"
	}
	var b strings.Builder
	for _, t := range history {
		fmt.Fprintf(&b, "them: %s\n", t.Inbound)
		if t.Outbound != "" {
			fmt.Fprintf(&b, "you: %s\n", t.Outbound)
		}
	}
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}
