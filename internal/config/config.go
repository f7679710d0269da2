package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// ChainConfig describes one chain: its live subscription endpoint and its
// subgraph query endpoints.
type ChainConfig struct {
	ID               string `mapstructure:"id"`
	ChainID          uint64 `mapstructure:"chain-id"`
	Enabled          bool   `mapstructure:"enabled"`
	WSEndpoint       string `mapstructure:"ws-endpoint"`
	Endpoint         string `mapstructure:"endpoint"`
	EndpointV2       string `mapstructure:"endpoint-v2"`
	EndpointV2Tokens string `mapstructure:"endpoint-v2-tokens"`
	StartBlock       int64  `mapstructure:"start-block"`
}

// QueryEndpoint returns the V2 endpoint, falling back to the V1 endpoint.
func (c ChainConfig) QueryEndpoint() string {
	if c.EndpointV2 != "" {
		return c.EndpointV2
	}
	return c.Endpoint
}

// TokensEndpoint returns the endpoint serving token time series.
func (c ChainConfig) TokensEndpoint() string {
	if c.EndpointV2Tokens != "" {
		return c.EndpointV2Tokens
	}
	return c.QueryEndpoint()
}

type ListenerConfig struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	QueueSize            int
	Workers              int
	DeadLetter           string
}

type DeriveConfig struct {
	Interval  time.Duration
	BatchSize int
}

type SyncConfig struct {
	Interval       time.Duration
	BatchSize      int
	RetryCount     int
	RetryDelay     time.Duration
	MaxConcurrency int
	MaxPages       int
	Entities       []string
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	LogLevel   string
	Store      string
	PGDSN      string
	HTTPAddr   string
	Signatures map[string]string
	Listener   ListenerConfig
	Derive     DeriveConfig
	Sync       SyncConfig
	Chains     []ChainConfig
}

// nested keys that may also be set by a flat command line flag.
var flagKeys = map[string]string{
	"listener.reconnect-delay":        "reconnect-delay",
	"listener.max-reconnect-attempts": "max-reconnect-attempts",
	"listener.queue-size":             "queue-size",
	"listener.workers":                "workers",
	"listener.dead-letter":            "dead-letter",
	"derive.interval":                 "derive-interval",
	"derive.batch-size":               "derive-batch-size",
	"sync.interval":                   "sync-interval",
	"sync.batch-size":                 "batch-size",
	"sync.retry-count":                "retry-count",
	"sync.retry-delay":                "retry-delay",
	"sync.max-concurrency":            "max-concurrency",
	"sync.max-pages":                  "max-pages",
	"sync.entities":                   "entities",
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v)
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("store", StorePostgres)
	v.SetDefault("http-addr", ":8080")
	v.SetDefault("listener.reconnect-delay", 5*time.Second)
	v.SetDefault("listener.max-reconnect-attempts", 0)
	v.SetDefault("listener.queue-size", 256)
	v.SetDefault("listener.workers", 2)
	v.SetDefault("listener.dead-letter", "./data/dead_letter.jsonl")
	v.SetDefault("derive.interval", 5*time.Second)
	v.SetDefault("derive.batch-size", 1000)
	v.SetDefault("sync.interval", 2*time.Minute)
	v.SetDefault("sync.batch-size", 500)
	v.SetDefault("sync.retry-count", 3)
	v.SetDefault("sync.retry-delay", time.Second)
	v.SetDefault("sync.max-concurrency", 8)
	v.SetDefault("sync.max-pages", 0)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
		for key, name := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		LogLevel:   v.GetString("log-level"),
		Store:      strings.ToLower(v.GetString("store")),
		PGDSN:      v.GetString("pg-dsn"),
		HTTPAddr:   v.GetString("http-addr"),
		Signatures: signatureMap(v, "signatures"),
		Listener: ListenerConfig{
			ReconnectDelay:       v.GetDuration("listener.reconnect-delay"),
			MaxReconnectAttempts: v.GetInt("listener.max-reconnect-attempts"),
			QueueSize:            v.GetInt("listener.queue-size"),
			Workers:              v.GetInt("listener.workers"),
			DeadLetter:           v.GetString("listener.dead-letter"),
		},
		Derive: DeriveConfig{
			Interval:  v.GetDuration("derive.interval"),
			BatchSize: v.GetInt("derive.batch-size"),
		},
		Sync: SyncConfig{
			Interval:       v.GetDuration("sync.interval"),
			BatchSize:      v.GetInt("sync.batch-size"),
			RetryCount:     v.GetInt("sync.retry-count"),
			RetryDelay:     v.GetDuration("sync.retry-delay"),
			MaxConcurrency: v.GetInt("sync.max-concurrency"),
			MaxPages:       v.GetInt("sync.max-pages"),
			Entities:       entityList(v, "sync.entities"),
		},
	}

	if err := v.UnmarshalKey("chains", &cfg.Chains); err != nil {
		return Config{}, fmt.Errorf("decode chains: %w", err)
	}
	for i := range cfg.Chains {
		cfg.Chains[i].ID = strings.TrimSpace(cfg.Chains[i].ID)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for store %q", c.Store)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unsupported store: %s", c.Store)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync batch size must be positive")
	}
	if c.Derive.BatchSize <= 0 {
		return fmt.Errorf("derive batch size must be positive")
	}
	if c.Listener.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts must not be negative")
	}
	if err := validateSignatures(c.Signatures); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Chains))
	for _, chain := range c.Chains {
		if chain.ID == "" {
			return fmt.Errorf("chain id is required")
		}
		if _, ok := seen[chain.ID]; ok {
			return fmt.Errorf("duplicate chain id: %s", chain.ID)
		}
		seen[chain.ID] = struct{}{}
	}
	return nil
}
