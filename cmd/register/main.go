package main

import (
	"context"
	"flag"
	"log"
	"time"

	"storygraph/internal/config"
	"storygraph/internal/telegram"
)

// Registers (or removes) the Telegram webhook for the bot token in the
// config. Run once per deployment.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	url := flag.String("url", "", "public webhook URL, e.g. https://example.com/api/story/webhook")
	remove := flag.Bool("delete", false, "delete the current webhook instead of setting one")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tg := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.BaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if *remove {
		if err := tg.DeleteWebhook(ctx); err != nil {
			log.Fatalf("failed to delete webhook: %v", err)
		}
		log.Printf("webhook deleted")
		return
	}

	if *url == "" {
		log.Fatalf("-url is required unless -delete is set")
	}
	if err := tg.SetWebhook(ctx, *url); err != nil {
		log.Fatalf("failed to set webhook: %v", err)
	}
	log.Printf("webhook set to %s", *url)
}
