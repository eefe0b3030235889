package secret

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	value string
	err   error
}

func (c *countingProvider) GetSecret(ctx context.Context, name string) (string, error) {
	c.calls++
	return c.value, c.err
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("COUNTER_TEST_SECRET", "redis://:pw@localhost:6379/0")

	v, err := EnvProvider{}.GetSecret(context.Background(), "COUNTER_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "redis://:pw@localhost:6379/0", v)

	_, err = EnvProvider{}.GetSecret(context.Background(), "COUNTER_TEST_SECRET_MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{value: "s3cret"}
	p := NewCachedProvider(inner, time.Minute)

	for i := 0; i < 3; i++ {
		v, err := p.GetSecret(context.Background(), "CosmosDbConnectionString")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", v)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("denied")}
	p := NewCachedProvider(inner, time.Minute)

	_, err := p.GetSecret(context.Background(), "x")
	require.Error(t, err)
	_, err = p.GetSecret(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/secrets/db/versions/latest", ResourceName("p1", "db"))
	assert.Equal(t, "projects/p2/secrets/db/versions/latest", ResourceName("p1", "projects/p2/secrets/db"))
	assert.Equal(t, "projects/p2/secrets/db/versions/3", ResourceName("p1", "projects/p2/secrets/db/versions/3"))
}
