package counter

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	cl := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       []string{addr},
		DialTimeout: time.Second * 2,
	})
	prefix := "counter-test:" + uuid.New().String() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := cl.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			cl.Del(ctx, keys...)
		}
		cl.Close()
	})
	return NewRedisStore(cl, prefix)
}

func TestRedisStore(t *testing.T) {
	storeContract(t, newTestRedisStore(t), DocumentID)
}

func TestRedisStoreIncrement(t *testing.T) {
	store := newTestRedisStore(t)
	svc := NewService(store)
	ctx := context.Background()

	const k = 50
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.IncrementAndGetCount(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	lk, err := store.Get(ctx, DocumentID)
	require.NoError(t, err)
	assert.EqualValues(t, k, lk.Doc.Count)
}

func TestRedisIncrementCreatedOnlyForNewKey(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	// written by another tool, no version field
	require.NoError(t, store.client.HSet(ctx, store.key("legacy"), "count", 41).Err())
	r, err := store.Increment(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, Result{Count: 42}, r)

	r, err = store.Increment(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, Result{Count: 1, Created: true}, r)

	r, err = store.Increment(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, Result{Count: 2}, r)
}

func TestLookupFromHashMissingCount(t *testing.T) {
	lk, err := lookupFromHash("1", map[string]string{"id": "1", "version": "3"})
	require.NoError(t, err)
	assert.True(t, lk.Found)
	assert.EqualValues(t, 0, lk.Doc.Count)
	assert.EqualValues(t, 3, lk.Version)

	_, err = lookupFromHash("1", map[string]string{"count": "x"})
	assert.Error(t, err)

	lk, err = lookupFromHash("1", nil)
	require.NoError(t, err)
	assert.False(t, lk.Found)
}
