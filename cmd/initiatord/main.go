// Command initiatord runs the initiator engine loop for one vantage:
// drive computation, job dispatch, and consolidation ticks (spec.md §2).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vantageplatform/vantage-core/internal/application/service/card"
	"github.com/vantageplatform/vantage-core/internal/application/service/fact"
	"github.com/vantageplatform/vantage-core/internal/application/service/gravity"
	"github.com/vantageplatform/vantage-core/internal/application/service/initiator"
	"github.com/vantageplatform/vantage-core/internal/config"
	"github.com/vantageplatform/vantage-core/internal/db"
	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/models/embedding"
	"github.com/vantageplatform/vantage-core/internal/repository"
	"github.com/vantageplatform/vantage-core/internal/repository/retriever/qdrant"
)

const asyncQueueName = "initiator"

func main() {
	configPath := flag.String("config", os.Getenv("VANTAGE_CONFIG"), "path to config.yaml")
	vantageID := flag.String("vantage", os.Getenv("VANTAGE_ID"), "vantage id this worker services")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf(ctx, "load config: %v", err)
		os.Exit(1)
	}
	if *vantageID == "" {
		*vantageID = cfg.Vantage.ID
	}
	if *vantageID == "" {
		logger.Error(ctx, "initiatord: no vantage id given (set -vantage or VANTAGE_ID)")
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
		if e, err := embedding.New(cfg.Provider.EmbedModel, cfg.Provider.APIKeys, 768); err == nil {
			embedder = e
		}
	}

	jobs := repository.NewJobRepository(gdb)
	cards := repository.NewCardRepository(gdb)
	facts := repository.NewFactRepository(gdb)
	threads := repository.NewThreadRepository(gdb)

	gravitySvc := gravity.New(vectors, embedder)
	factSvc := fact.New(facts, threads)
	cardSvc := card.New(cards, facts)

	workerID := "initiatord-" + uuid.NewString()
	engine := initiator.New(jobs, facts, factSvc, cardSvc, gravitySvc, workerID)

	maxRunning := cfg.Initiator.MaxRunningJobs
	if maxRunning <= 0 {
		maxRunning = 4
	}
	pool, err := ants.NewPool(maxRunning)
	if err != nil {
		logger.Errorf(ctx, "create job pool: %v", err)
		os.Exit(1)
	}
	defer pool.Release()
	engine.Pool = pool

	var asyncServer *asynq.Server
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr}
	if client := asynq.NewClient(redisOpt); pingRedis(ctx, cfg.Redis.Addr) {
		engine.AsyncClient = client
		engine.Queue = asyncQueueName
		defer client.Close()

		asyncServer = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: maxRunning,
			Queues:      map[string]int{asyncQueueName: 1},
		})
		mux := asynq.NewServeMux()
		mux.HandleFunc(initiator.RunJobTaskType, engine.HandleRunJobTask)
		go func() {
			if err := asyncServer.Run(mux); err != nil {
				logger.Errorf(ctx, "asynq server: %v", err)
			}
		}()
		defer asyncServer.Shutdown()
	} else {
		logger.Warnf(ctx, "redis unavailable at %s, running job bodies inline", cfg.Redis.Addr)
	}

	tick := time.Duration(cfg.Initiator.TickSeconds) * time.Second
	if tick <= 0 {
		tick = 10 * time.Second
	}

	logger.Infof(ctx, "initiatord starting for vantage=%s worker=%s tick=%s", *vantageID, workerID, tick)
	engine.Run(ctx, *vantageID, tick)
	logger.Info(ctx, "initiatord stopped")
}

// pingRedis performs a cheap liveness check before committing to the
// asynq-backed dispatch path.
func pingRedis(ctx context.Context, addr string) bool {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	return client.Ping(ctx).Err() == nil
}
