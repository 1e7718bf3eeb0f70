package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"storygraph/internal/api"
	"storygraph/internal/config"
	"storygraph/internal/exchange"
	"storygraph/internal/graph"
	"storygraph/internal/ingest"
	"storygraph/internal/logging"
	"storygraph/internal/redis"
	"storygraph/internal/telegram"
	"storygraph/internal/worker"
)

// HTTP surface only: webhooks, read API and the on-demand worker
// trigger. Use cmd/worker for periodic draining.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
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

	tg := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.BaseURL)

	pipeline := ingest.NewPipeline(store, logger)
	w := worker.New(rdb, rdb, pipeline, cfg.Worker, logger)

	states := exchange.NewRedisStateStore(rdb, cfg.Exchange.StateTTL)
	svc := exchange.NewService(store, logger)
	bot := exchange.NewBot(svc, states, tg, logger)

	server := api.NewServer(rdb, w, tg, store, bot, logger)

	go func() {
		logger.Infow("server starting", "addr", cfg.Server.Port)
		if err := server.Start(cfg.Server.Port); err != nil {
			logger.Errorw("server stopped", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infow("shutting down")
	cancel()
	server.Shutdown()
}
