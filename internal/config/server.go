package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9095"`

	// Store backend: "postgres" needs POSTGRES_DSN, "memory" runs self-contained.
	StoreKind   string `env:"STORE_KIND" envDefault:"postgres"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// Seeds the provably-fair draws; rotating it invalidates open commitments.
	ServerSeedSecret string `env:"SERVER_SEED_SECRET,required,notEmpty"`

	InitialBalanceCC int64 `env:"INITIAL_BALANCE_CC" envDefault:"100000"`

	// Optional Redis relay: fan events out to peer instances.
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_EVENT_CHANNEL" envDefault:"round_events"`

	// Optional Kafka outcome feed for externally-sourced tables.
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_OUTCOME_TOPIC" envDefault:"round_outcomes"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID" envDefault:"round-server"`

	TablesJSON string `env:"TABLES_JSON"`

	ResolveTimeout     time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"10s"`
	ResolveBackoff     time.Duration `env:"RESOLVE_BACKOFF" envDefault:"2s"`
	MaxResolveAttempts int           `env:"MAX_RESOLVE_ATTEMPTS" envDefault:"5"`

	ReplayWindow int `env:"HUB_REPLAY_WINDOW" envDefault:"64"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
