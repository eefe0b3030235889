// Package bootstrap builds the counter service once per process.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/redis/go-redis/v9"
	"github.com/tckz/go-visitor-counter/internal/config"
	"github.com/tckz/go-visitor-counter/internal/counter"
	"github.com/tckz/go-visitor-counter/internal/secret"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const secretTTL = 10 * time.Minute

// SecretProvider returns the provider selected by cfg and a func releasing it.
func SecretProvider(ctx context.Context, cfg *config.Config) (secret.Provider, func(), error) {
	switch cfg.SecretSource {
	case config.SecretSourceEnv:
		return secret.NewCachedProvider(secret.EnvProvider{}, secretTTL), func() {}, nil
	default:
		pjID, err := projectID(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		p, err := secret.NewSecretManagerProvider(ctx, pjID)
		if err != nil {
			return nil, nil, err
		}
		return secret.NewCachedProvider(p, secretTTL), func() { p.Close() }, nil
	}
}

// projectID falls back to the project of Application Default Credentials.
func projectID(ctx context.Context, pjID string) (string, error) {
	if pjID != "" {
		return pjID, nil
	}
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("google.FindDefaultCredentials: %w", err)
	}
	if creds.ProjectID == "" {
		return "", fmt.Errorf("PROJECT_ID is not set and credentials carry no project")
	}
	return creds.ProjectID, nil
}

// OpenStore connects the configured backend and probes it. The secret, when
// configured, holds credentials JSON for datastore or a redis:// URL for redis.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (counter.Store, error) {
	if cfg.Backend == config.BackendMemory {
		return counter.NewMemoryStore(), nil
	}

	var sec string
	if cfg.SecretName != "" {
		p, release, err := SecretProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("secret provider: %w", err)
		}
		sec, err = fetchSecret(ctx, p, cfg.SecretName, cfg.Timeout)
		release()
		if err != nil {
			return nil, fmt.Errorf("GetSecret: name=%s, %w", cfg.SecretName, err)
		}
		logger.Infof("secret %s loaded from %s", cfg.SecretName, cfg.SecretSource)
	}

	var store counter.Store
	switch cfg.Backend {
	case config.BackendRedis:
		opts, err := redisOptions(cfg, sec)
		if err != nil {
			return nil, err
		}
		store = counter.NewRedisStore(redis.NewUniversalClient(opts), cfg.KeyPrefix)
	default:
		s, err := openDatastore(ctx, cfg, sec)
		if err != nil {
			return nil, err
		}
		store = s
	}

	if err := probe(ctx, store, cfg.Timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s unreachable: %w", cfg.Backend, err)
	}
	return store, nil
}

// withTimeout applies d unless it is zero, which means no deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func fetchSecret(ctx context.Context, p secret.Provider, name string, timeout time.Duration) (string, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	return p.GetSecret(ctx, name)
}

func probe(ctx context.Context, store counter.Store, timeout time.Duration) error {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	return store.Check(ctx)
}

func openDatastore(ctx context.Context, cfg *config.Config, credsJSON string) (*counter.DatastoreStore, error) {
	pjID := cfg.ProjectID
	var opts []option.ClientOption
	if credsJSON != "" {
		creds, err := google.CredentialsFromJSON(ctx, []byte(credsJSON), datastore.ScopeDatastore)
		if err != nil {
			return nil, fmt.Errorf("google.CredentialsFromJSON: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
		if pjID == "" {
			pjID = creds.ProjectID
		}
	}
	if pjID == "" {
		pjID = datastore.DetectProjectID
	}
	return counter.NewDatastoreStore(ctx, counter.DatastoreConfig{
		ProjectID: pjID,
		Kind:      cfg.Kind,
		Namespace: cfg.Namespace,
	}, opts...)
}

func redisOptions(cfg *config.Config, url string) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{
		Addrs:        []string{cfg.RedisAddr},
		DialTimeout:  time.Second * 2,
		ReadTimeout:  time.Second * 2,
		WriteTimeout: time.Second * 2,
		PoolSize:     200,
		PoolTimeout:  time.Second * 5,
	}
	if url == "" {
		return opts, nil
	}
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	opts.Addrs = []string{o.Addr}
	opts.Username = o.Username
	opts.Password = o.Password
	opts.DB = o.DB
	opts.TLSConfig = o.TLSConfig
	return opts, nil
}

// NewService never fails: if the store cannot be opened the returned service
// answers every call with counter.ErrStoreUnavailable. The returned func closes
// what was opened.
func NewService(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, opts ...counter.Option) (*counter.Service, func()) {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("*** failed to initialize %s store: %v", cfg.Backend, err)
		return counter.Unavailable(err), func() {}
	}
	logger.Infof("%s store ready", cfg.Backend)

	opts = append([]counter.Option{
		counter.WithTimeout(cfg.Timeout),
		counter.WithMaxAttempts(cfg.MaxAttempts),
		counter.WithLogger(logger),
	}, opts...)
	return counter.NewService(store, opts...), func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Close: %v", err)
		}
	}
}
