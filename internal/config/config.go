// Package config loads runtime configuration from defaults, an optional
// YAML file, and STOCKLEDGER_-prefixed environment variables, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before mapping them onto
// config keys, e.g. STOCKLEDGER_LEDGER_LOW_STOCK_THRESHOLD.
const EnvPrefix = "STOCKLEDGER_"

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/storeledger/config.yaml",
}

type Config struct {
	HTTP    HTTPConfig    `koanf:"http"`
	MySQL   MySQLConfig   `koanf:"mysql"`
	Redis   RedisConfig   `koanf:"redis"`
	Kafka   KafkaConfig   `koanf:"kafka"`
	Ledger  LedgerConfig  `koanf:"ledger"`
	Bus     BusConfig     `koanf:"bus"`
	Gateway GatewayConfig `koanf:"gateway"`
	Log     LogConfig     `koanf:"log"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type MySQLConfig struct {
	// DSN empty means run on the in-memory record store (dev/test mode).
	DSN          string        `koanf:"dsn"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	ConnLifetime time.Duration `koanf:"conn_lifetime"`
}

type RedisConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Addr     string        `koanf:"addr"`
	PoolSize int           `koanf:"pool_size"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type LedgerConfig struct {
	LowStockThreshold int `koanf:"low_stock_threshold"`
	// WriteRetries bounds internal retries on ConcurrentModification
	// before surfacing a transient failure.
	WriteRetries int `koanf:"write_retries"`
}

type BusConfig struct {
	ObserverBufferSize int `koanf:"observer_buffer_size"`
}

type GatewayConfig struct {
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		MySQL: MySQLConfig{
			DSN:          "",
			MaxOpenConns: 50,
			MaxIdleConns: 25,
			ConnLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 100,
			CacheTTL: 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "inventory.movements",
		},
		Ledger: LedgerConfig{
			LowStockThreshold: 10,
			WriteRetries:      3,
		},
		Bus: BusConfig{
			ObserverBufferSize: 64,
		},
		Gateway: GatewayConfig{
			ReconnectDelay: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Load builds the configuration. path overrides the default search list
// when non-empty; a missing explicit path is an error, missing defaults are
// not.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		for _, candidate := range DefaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envToKey maps STOCKLEDGER_LEDGER_WRITE_RETRIES to ledger.write_retries.
// Only the first underscore separates the section from the key.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func (c *Config) validate() error {
	if c.Ledger.LowStockThreshold < 0 {
		return fmt.Errorf("ledger.low_stock_threshold must not be negative")
	}
	if c.Ledger.WriteRetries < 0 {
		return fmt.Errorf("ledger.write_retries must not be negative")
	}
	if c.Bus.ObserverBufferSize < 1 {
		return fmt.Errorf("bus.observer_buffer_size must be at least 1")
	}
	if c.Gateway.ReconnectDelay <= 0 {
		return fmt.Errorf("gateway.reconnect_delay must be positive")
	}
	return nil
}
