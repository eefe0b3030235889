// Package secret fetches store credentials at startup.
package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
)

var ErrNotFound = errors.New("secret not found")

type Provider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

var _ Provider = (*EnvProvider)(nil)

// EnvProvider reads secrets from environment variables named after the secret.
type EnvProvider struct{}

func (EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, name)
	}
	return v, nil
}

var _ Provider = (*CachedProvider)(nil)

// CachedProvider remembers values from an inner provider for a TTL.
type CachedProvider struct {
	inner Provider
	cache *cache.Cache
}

func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache.New(ttl, ttl)}
}

func (c *CachedProvider) GetSecret(ctx context.Context, name string) (string, error) {
	if v, ok := c.cache.Get(name); ok {
		return v.(string), nil
	}
	v, err := c.inner.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(name, v)
	return v, nil
}
