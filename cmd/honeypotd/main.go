package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	honeypot "github.com/decoynet/honeypot-agent-go"
	"github.com/decoynet/honeypot-agent-go/channel/httpapi"
	"github.com/decoynet/honeypot-agent-go/llm"
	"github.com/decoynet/honeypot-agent-go/store"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := httpapi.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session store: Redis primary, in-process fallback, per-call degradation.
	redisStore := store.NewRedisSessionStore(store.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisStore.Close()

	memStore := honeypot.NewInMemorySessionStore()
	memStore.StartSweeper(ctx, time.Hour)
	sessions := store.NewTieredSessionStore(redisStore, memStore)

	if err := redisStore.Ping(ctx); err != nil {
		logger.Warn("Redis unreachable at startup, running on in-process fallback", zap.Error(err))
	} else {
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// LLM capabilities: optional. Without an API key the detector runs
	// heuristic-only and replies come from the static strategy table.
	var classifier honeypot.ClassifierFunc
	var generator honeypot.GenerateFunc
	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:    cfg.Gemini.APIKey,
			ModelName: cfg.Gemini.Model,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini adapter", zap.Error(err))
		}
		defer gemini.Close()
		classifier = gemini.Classifier()
		generator = gemini.Generator()
	} else {
		logger.Warn("No Gemini API key configured, running in heuristic-only mode")
	}

	engCfg := cfg.EngagementConfig()
	persona := cfg.Persona
	if persona.Name == "" {
		persona = honeypot.DefaultPersonaConfig()
	}

	orc := honeypot.NewOrchestrator(
		sessions,
		honeypot.NewDetector(classifier, engCfg.Detector),
		honeypot.NewPersonaAgent(generator, persona, engCfg.Agent),
		engCfg,
	)

	health := func(ctx context.Context) (string, string) {
		if err := redisStore.Ping(ctx); err != nil {
			return "degraded", string(store.ModeFallback)
		}
		return "healthy", string(sessions.Mode())
	}

	handler := httpapi.NewHandler(orc, health, logger)
	router := httpapi.NewRouter(handler, cfg.Auth.APIKeys, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Honeypot server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
