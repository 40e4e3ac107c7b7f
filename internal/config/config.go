package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN   string `env:"DATABASE_DSN,required=true"`
	RedisURL      string `env:"REDIS_URL,required=true"`
	RabbitMQURL   string `env:"RABBITMQ_URL,required=true"`
	HederaNetwork string `env:"HEDERA_NETWORK,default=testnet"`
	OperatorID    string `env:"OPERATOR_ID,required=true"`
	OperatorKey   string `env:"OPERATOR_KEY,required=true"`
	MirrorNodeURL string `env:"MIRROR_NODE_URL,default=https://testnet.mirrornode.hedera.com"`

	APIPort                  int    `env:"API_PORT,default=5000"`
	MetricsPort              int    `env:"METRICS_PORT,default=9090"`
	LogLevel                 string `env:"LOG_LEVEL,default=info"`
	LedgerTimeoutSeconds     int    `env:"LEDGER_TIMEOUT_SECONDS,default=30"`
	ReconcileIntervalSeconds int    `env:"RECONCILE_INTERVAL_SECONDS,default=30"`
	MintLockTTLSeconds       int    `env:"MINT_LOCK_TTL_SECONDS,default=60"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutSeconds) * time.Second
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

func (c *Config) MintLockTTL() time.Duration {
	return time.Duration(c.MintLockTTLSeconds) * time.Second
}
