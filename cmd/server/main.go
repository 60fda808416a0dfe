package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/toefl-tutor-core/server/internal/agent/graph"
	"github.com/toefl-tutor-core/server/internal/agent/graph/conversations"
	"github.com/toefl-tutor-core/server/internal/agent/model"
	"github.com/toefl-tutor-core/server/internal/core"
	"github.com/toefl-tutor-core/server/internal/knowledge"
	"github.com/toefl-tutor-core/server/internal/llm"
	"github.com/toefl-tutor-core/server/internal/repo"
	"github.com/toefl-tutor-core/server/internal/server"
	logx "github.com/toefl-tutor-core/server/pkg/logger"
	pkgredis "github.com/toefl-tutor-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the tutor service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis  pkgredis.Config
	Server model.ServerConfig

	// Agent configs
	Engine    model.EngineConfig
	Retrieval model.RetrievalConfig
	Session   model.SessionConfig
	Embedder  model.EmbedderConfig
	Prompt    model.TutorPromptConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	ttl, err := time.ParseDuration(envCfg.Session.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", envCfg.Session.TTL).Msg("Invalid SESSION_TTL")
	}

	embedder, err := llm.NewEmbedder(ctx, envCfg.Embedder)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise embedder client")
	}

	// The store may legitimately be empty here; /healthz reports readiness
	// and the graph falls back until the ingestion CLI has run.
	store, err := knowledge.Open(envCfg.Retrieval.StorePath, embedder)
	if err != nil {
		logx.Fatal().Err(err).Str("path", envCfg.Retrieval.StorePath).Msg("Failed to open embedding store")
	}

	sessions := conversations.NewMessagesManager(
		repo.NewRedisConversationRepository(rdb, ttl),
		envCfg.Session,
	)

	runner, err := graph.BuildTutorGraph(graph.Config{
		Store:     store,
		Sessions:  sessions,
		Engine:    envCfg.Engine,
		Retrieval: envCfg.Retrieval,
		Prompt:    envCfg.Prompt,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build tutor graph")
	}

	srv := &http.Server{
		Addr:    envCfg.Server.Addr,
		Handler: server.New(runner, sessions, store).Router(),
	}

	go func() {
		logx.Info().Str("addr", envCfg.Server.Addr).Msg("Tutor service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logx.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
