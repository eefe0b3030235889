// Package config reads service settings from flags, falling back to the
// environment (and a .env file loaded by the caller).
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tckz/go-visitor-counter/internal/counter"
)

const (
	BackendDatastore = "datastore"
	BackendRedis     = "redis"
	BackendMemory    = "memory"

	SecretSourceSecretManager = "secretmanager"
	SecretSourceEnv           = "env"
)

var (
	backends      = []string{BackendDatastore, BackendRedis, BackendMemory}
	secretSources = []string{SecretSourceSecretManager, SecretSourceEnv}
)

type Config struct {
	Addr     string
	LogLevel string

	ProjectID    string
	Backend      string
	SecretName   string
	SecretSource string

	Kind      string
	Namespace string

	RedisAddr string
	KeyPrefix string

	Timeout     time.Duration
	MaxAttempts int
	Topic       string

	// AllowOrigin is a comma separated list of origins allowed to call the
	// counter from a browser. Empty disables CORS.
	AllowOrigin string
}

// Register binds flags on fs with defaults taken from the environment.
func Register(fs *flag.FlagSet) *Config {
	c := &Config{ProjectID: os.Getenv("PROJECT_ID")}

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	fs.StringVar(&c.Addr, "addr", addr, "listen address")
	fs.StringVar(&c.LogLevel, "log-level", env("LOG_LEVEL", "info"), "info|warn|error")
	fs.StringVar(&c.Backend, "backend", env("COUNTER_BACKEND", BackendDatastore), "datastore|redis|memory")
	fs.StringVar(&c.SecretName, "secret", env("COUNTER_SECRET_NAME", ""), "name of the secret holding store credentials")
	fs.StringVar(&c.SecretSource, "secret-source", env("COUNTER_SECRET_SOURCE", SecretSourceSecretManager), "secretmanager|env")
	fs.StringVar(&c.Kind, "kind", env("COUNTER_KIND", counter.DefaultKind), "datastore kind")
	fs.StringVar(&c.Namespace, "ns", env("COUNTER_NAMESPACE", ""), "datastore namespace")
	fs.StringVar(&c.RedisAddr, "redis", env("REDIS_ADDR", "localhost:6379"), "addr:port of redis")
	fs.StringVar(&c.KeyPrefix, "key-prefix", env("COUNTER_KEY_PREFIX", counter.DefaultKeyPrefix), "key prefix of redis")
	fs.DurationVar(&c.Timeout, "timeout", envDuration("COUNTER_TIMEOUT", counter.DefaultTimeout), "timeout of each store call")
	fs.IntVar(&c.MaxAttempts, "max-attempts", envInt("COUNTER_MAX_ATTEMPTS", counter.DefaultMaxAttempts), "attempts before giving up on write conflicts")
	fs.StringVar(&c.Topic, "topic", env("COUNTER_TOPIC", ""), "pubsub topic for increment events")
	fs.StringVar(&c.AllowOrigin, "allow-origin", env("COUNTER_ALLOW_ORIGIN", ""), "comma separated origins allowed by CORS, '*' for any")
	return c
}

// Load registers flags on a new FlagSet and parses args.
func Load(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := Register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if !lo.Contains(backends, c.Backend) {
		return fmt.Errorf("unknown backend %q, want one of %v", c.Backend, backends)
	}
	if !lo.Contains(secretSources, c.SecretSource) {
		return fmt.Errorf("unknown secret source %q, want one of %v", c.SecretSource, secretSources)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max-attempts must be positive: %d", c.MaxAttempts)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Timeout)
	}
	return nil
}

func (c *Config) AllowedOrigins() []string {
	return lo.Compact(lo.Map(strings.Split(c.AllowOrigin, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

func env(key, def string) string {
	v := os.Getenv(key)
	return lo.Ternary(v != "", v, def)
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return d
}
