// Command server runs the Vantage HTTP API: ingestion, retrieval, chat,
// cards, telemetry, and the voice relay (spec.md §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vantageplatform/vantage-core/internal/application/service/chatpath"
	"github.com/vantageplatform/vantage-core/internal/application/service/fact"
	"github.com/vantageplatform/vantage-core/internal/application/service/gravity"
	"github.com/vantageplatform/vantage-core/internal/application/service/identity"
	"github.com/vantageplatform/vantage-core/internal/application/service/persona"
	"github.com/vantageplatform/vantage-core/internal/application/service/policy"
	"github.com/vantageplatform/vantage-core/internal/application/service/retrieval"
	"github.com/vantageplatform/vantage-core/internal/application/service/telemetry"
	"github.com/vantageplatform/vantage-core/internal/config"
	"github.com/vantageplatform/vantage-core/internal/db"
	"github.com/vantageplatform/vantage-core/internal/handler"
	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/models/chat"
	"github.com/vantageplatform/vantage-core/internal/models/embedding"
	"github.com/vantageplatform/vantage-core/internal/repository"
	"github.com/vantageplatform/vantage-core/internal/repository/retriever/qdrant"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", os.Getenv("VANTAGE_CONFIG"), "path to config.yaml")
	migrationsPath := flag.String("migrations", "migrations", "path to migrations directory")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf(ctx, "load config: %v", err)
		os.Exit(1)
	}

	if err := db.Migrate(cfg.Postgres.DSN, *migrationsPath); err != nil {
		logger.Errorf(ctx, "apply migrations: %v", err)
		os.Exit(1)
	}
	gdb, err := db.Open(cfg.Postgres.DSN)
	if err != nil {
		logger.Errorf(ctx, "open database: %v", err)
		os.Exit(1)
	}

	vectors, err := qdrant.New(cfg.Qdrant.URL)
	if err != nil {
		logger.Errorf(ctx, "connect qdrant: %v", err)
		os.Exit(1)
	}

	var embedder = embedding.NewHashEmbedder(768)
	if cfg.Provider.EmbedModel != "" {
		if e, err := embedding.New(cfg.Provider.EmbedModel, cfg.Provider.APIKeys, 768); err != nil {
			logger.Warnf(ctx, "embedding provider %q unavailable, falling back to hash embedder: %v", cfg.Provider.EmbedModel, err)
		} else {
			embedder = e
		}
	}

	chatProvider, err := chat.New(cfg.Vantage.Model, cfg.Provider.APIKeys)
	if err != nil {
		logger.Errorf(ctx, "init chat provider: %v", err)
		os.Exit(1)
	}

	threads := repository.NewThreadRepository(gdb)
	cards := repository.NewCardRepository(gdb)
	facts := repository.NewFactRepository(gdb)
	traces := repository.NewAnswerTraceRepository(gdb)
	identityRepo := repository.NewIdentityRepository(gdb)
	policyRepo := repository.NewPolicyRepository(gdb)
	telemetryRepo := repository.NewTelemetryRepository(gdb)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Warnf(ctx, "redis unavailable at %s, rag_policy cache falls back to in-process: %v", cfg.Redis.Addr, err)
		redisClient = nil
	}

	gravitySvc := gravity.New(vectors, embedder)
	retrievalSvc := retrieval.New(vectors, embedder, gravitySvc, policyRepo, redisClient, cfg.Vantage)
	personaSvc := persona.New(vectors, gravitySvc, "")
	identitySvc := identity.New(identityRepo)
	policySvc := policy.New(policyRepo, retrievalSvc)
	telemetrySvc := telemetry.New(telemetryRepo)
	factSvc := fact.New(facts, threads)

	ragQuery := &chatpath.Service{
		Retrieval:           retrievalSvc,
		Persona:             personaSvc,
		Gravity:             gravitySvc,
		Chat:                chatProvider,
		Threads:             threads,
		Traces:              traces,
		Model:               cfg.Vantage.Model,
		PersonalMemory:      cfg.Vantage.PersonalMemory,
		RitualBypass:        cfg.Vantage.RitualBypass,
		GreetingBypass:      cfg.Vantage.GreetingBypass,
		EnforceClarifyShape: cfg.Vantage.EnforceClarifyShape,
		ReentryPrefix:       cfg.Vantage.ReentryPrefix,
	}

	srv := handler.NewServer(gdb, threads, cards, facts, traces, vectors, retrievalSvc, gravitySvc, identitySvc, policySvc, telemetrySvc, factSvc, ragQuery, cfg.Vantage, cfg.Provider)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Infof(ctx, "vantage server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf(ctx, "http server: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(ctx, "graceful shutdown: %v", err)
	}
	fmt.Fprintln(os.Stderr, "vantage server stopped")
}
