package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

// Sequencer is the Continuum gRPC side
type Sequencer struct {
	Endpoint       string        // http(s)://host[:port]
	ConnectTimeout time.Duration // how long Connect waits for a ready channel
}

// Node is the rollup node's REST side
type Node struct {
	Endpoint string
	Timeout  time.Duration
}

type MarketCache struct {
	// Dir holds the pebble market cache. Empty keeps metadata in memory only.
	Dir string
	// TTL is how long a fetched market list is reused before refetching.
	// Zero refetches on every order, which is what a fresh process does anyway.
	TTL time.Duration
}

type Gateway struct {
	Addr           string
	AllowedOrigins []string
	JournalFile    string // accepted submissions, one JSON line each; empty disables
}

type Log struct {
	File    string // empty logs to stdout only
	Verbose bool
}

type Config struct {
	Sequencer   Sequencer
	Node        Node
	MarketCache MarketCache
	Gateway     Gateway
	Log         Log
	KeypairPath string
}

func Default() Config {
	return Config{
		Sequencer: Sequencer{
			Endpoint:       "http://localhost:9090",
			ConnectTimeout: 10 * time.Second,
		},
		Node: Node{
			Endpoint: "http://localhost:8080",
			Timeout:  10 * time.Second,
		},
		MarketCache: MarketCache{
			TTL: 300 * time.Second,
		},
		Gateway: Gateway{
			Addr:           "127.0.0.1:8090",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Sequencer.Endpoint = getEnv("FERMI_CONTINUUM_ENDPOINT", cfg.Sequencer.Endpoint)
	cfg.Node.Endpoint = getEnv("FERMI_RPC_ENDPOINT", cfg.Node.Endpoint)
	cfg.KeypairPath = getEnv("FERMI_KEYPAIR_PATH", cfg.KeypairPath)
	cfg.MarketCache.Dir = getEnv("FERMI_MARKET_CACHE_DIR", cfg.MarketCache.Dir)
	cfg.Gateway.Addr = getEnv("GATEWAY_ADDR", cfg.Gateway.Addr)
	cfg.Gateway.JournalFile = getEnv("GATEWAY_JOURNAL_FILE", cfg.Gateway.JournalFile)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	var err error
	if cfg.MarketCache.TTL, err = getDuration("FERMI_MARKET_CACHE_TTL_S", time.Second, cfg.MarketCache.TTL); err != nil {
		return cfg, err
	}
	if cfg.Node.Timeout, err = getDuration("FERMI_RPC_TIMEOUT_MS", time.Millisecond, cfg.Node.Timeout); err != nil {
		return cfg, err
	}
	if cfg.Sequencer.ConnectTimeout, err = getDuration("FERMI_CONNECT_TIMEOUT_MS", time.Millisecond, cfg.Sequencer.ConnectTimeout); err != nil {
		return cfg, err
	}

	// Origins from comma-separated list
	// Example: "http://localhost:3000,https://app.fermi.trade"
	if origins := os.Getenv("GATEWAY_ALLOWED_ORIGINS"); origins != "" {
		cfg.Gateway.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Gateway.AllowedOrigins = append(cfg.Gateway.AllowedOrigins, o)
			}
		}
	}

	if verbose := os.Getenv("VERBOSE"); verbose != "" {
		cfg.Log.Verbose = verbose == "true" || verbose == "1"
	}

	return cfg, cfg.Validate()
}

// Validate checks the fields every binary relies on
func (c Config) Validate() error {
	if c.Sequencer.Endpoint == "" {
		return fmt.Errorf("%w: sequencer endpoint is empty", types.ErrConfig)
	}
	if c.Node.Endpoint == "" {
		return fmt.Errorf("%w: rpc endpoint is empty", types.ErrConfig)
	}
	if c.Node.Timeout <= 0 {
		return fmt.Errorf("%w: rpc timeout must be positive", types.ErrConfig)
	}
	if c.Sequencer.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive", types.ErrConfig)
	}
	if c.MarketCache.TTL < 0 {
		return fmt.Errorf("%w: market cache ttl must not be negative", types.ErrConfig)
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration reads an integer count of unit from key
func getDuration(key string, unit, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", types.ErrConfig, key, value)
	}
	return time.Duration(n) * unit, nil
}
