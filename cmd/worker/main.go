package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storygraph/internal/config"
	"storygraph/internal/graph"
	"storygraph/internal/ingest"
	"storygraph/internal/logging"
	"storygraph/internal/redis"
	"storygraph/internal/worker"
)

// Standalone queue drainer: runs one batch per tick until stopped.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single batch and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Logging.Level)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := redis.New(cfg.Redis.Addr, cfg.Redis.EventQueue, cfg.Redis.OutputQueue)
	if err != nil {
		logger.Fatalw("failed to connect to redis", "err", err)
	}
	defer rdb.Close()

	store, err := graph.NewStore(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, logger)
	if err != nil {
		logger.Fatalw("failed to connect to neo4j", "err", err)
	}
	defer store.Close(ctx)

	pipeline := ingest.NewPipeline(store, logger)
	w := worker.New(rdb, rdb, pipeline, cfg.Worker, logger)

	if *once {
		summary := w.Run(ctx)
		logger.Infow("worker run finished", "status", summary.Status, "message", summary.Message)
		return
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Worker.Interval)
	defer ticker.Stop()

	logger.Infow("worker started", "interval", cfg.Worker.Interval)
	for {
		select {
		case <-quit:
			logger.Infow("shutting down")
			return
		case <-ticker.C:
			summary := w.Run(ctx)
			logger.Infow("worker run finished", "status", summary.Status, "message", summary.Message)
		}
	}
}
