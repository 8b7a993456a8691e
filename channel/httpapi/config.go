package httpapi

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	honeypot "github.com/decoynet/honeypot-agent-go"
)

// Config holds the server configuration loaded from YAML.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Auth struct {
		// APIKeys accepted in the x-api-key header. Empty disables auth
		// (local development only).
		APIKeys []string `yaml:"api_keys"`
	} `yaml:"auth"`
	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`
	Engagement struct {
		SessionTTLHours     int     `yaml:"session_ttl_hours"`
		MaxTurns            int     `yaml:"max_turns"`
		HeuristicConfidence float64 `yaml:"heuristic_confidence"`
		ScanReplies         bool    `yaml:"scan_replies"`
	} `yaml:"engagement"`
	Persona honeypot.PersonaConfig `yaml:"persona"`
}

// LoadConfig reads configuration from the specified YAML file.
// Secrets can be overridden through REDIS_PASSWORD, GEMINI_API_KEY and
// API_KEYS (comma-separated) so they never need to live in the file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("API_KEYS"); v != "" {
		config.Auth.APIKeys = config.Auth.APIKeys[:0]
		for _, key := range strings.Split(v, ",") {
			if key = strings.TrimSpace(key); key != "" {
				config.Auth.APIKeys = append(config.Auth.APIKeys, key)
			}
		}
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	return config, nil
}

// EngagementConfig translates the file settings into engine policy,
// keeping the engine defaults for anything unset.
func (c *Config) EngagementConfig() honeypot.EngagementConfig {
	cfg := honeypot.DefaultEngagementConfig()
	if c.Engagement.SessionTTLHours > 0 {
		cfg.SessionTTL = time.Duration(c.Engagement.SessionTTLHours) * time.Hour
	}
	if c.Engagement.MaxTurns > 0 {
		cfg.Strategy.MaxTurns = c.Engagement.MaxTurns
	}
	if c.Engagement.HeuristicConfidence > 0 {
		cfg.Detector.FallbackConfidence = c.Engagement.HeuristicConfidence
	}
	cfg.ScanReplies = c.Engagement.ScanReplies
	return cfg
}
