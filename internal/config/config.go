package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Telegram TelegramConfig `koanf:"telegram"`
	Redis    RedisConfig    `koanf:"redis"`
	Neo4j    Neo4jConfig    `koanf:"neo4j"`
	Worker   WorkerConfig   `koanf:"worker"`
	Exchange ExchangeConfig `koanf:"exchange"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

type TelegramConfig struct {
	Token string `koanf:"token"`
	// BaseURL overrides the Bot API endpoint, mainly for tests.
	BaseURL string `koanf:"base_url"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
	// EventQueue holds raw webhook updates awaiting ingestion.
	EventQueue string `koanf:"event_queue"`
	// OutputQueue receives one entry id per successfully ingested event.
	OutputQueue string `koanf:"output_queue"`
}

type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

type WorkerConfig struct {
	BatchSize int           `koanf:"batch_size"`
	Budget    time.Duration `koanf:"budget"`
	Interval  time.Duration `koanf:"interval"`
}

type ExchangeConfig struct {
	StateTTL time.Duration `koanf:"state_ttl"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Env-only deployments run without a config file.
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Env vars override the file: STORYGRAPH_REDIS_ADDR -> redis.addr.
	if err := k.Load(env.Provider("STORYGRAPH_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "STORYGRAPH_"))
		return strings.Replace(s, "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:  ServerConfig{Port: ":8080"},
		Logging: LoggingConfig{Level: "info"},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			EventQueue:  "telegram_events",
			OutputQueue: "timeline_entries",
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
		},
		Worker: WorkerConfig{
			BatchSize: 10,
			Budget:    8 * time.Second,
			Interval:  time.Minute,
		},
		Exchange: ExchangeConfig{StateTTL: 24 * time.Hour},
	}
}
