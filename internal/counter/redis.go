package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var (
	_ Store       = (*RedisStore)(nil)
	_ Incrementer = (*RedisStore)(nil)
)

const DefaultKeyPrefix = "counter:"

// RedisStore keeps each document in a hash with fields id, count and version.
type RedisStore struct {
	prefix string
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{prefix: prefix, client: client}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (Lookup, error) {
	m, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return Lookup{}, fmt.Errorf("HGetAll: %w", err)
	}
	return lookupFromHash(id, m)
}

func lookupFromHash(id string, m map[string]string) (Lookup, error) {
	if len(m) == 0 {
		return Lookup{}, nil
	}
	lk := Lookup{Found: true, Doc: Document{ID: id}}
	if v, ok := m["count"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Lookup{}, fmt.Errorf("parse count of %s: %w", id, err)
		}
		lk.Doc.Count = n
	}
	if v, ok := m["version"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Lookup{}, fmt.Errorf("parse version of %s: %w", id, err)
		}
		lk.Version = n
	}
	return lk, nil
}

func (r *RedisStore) Create(ctx context.Context, doc Document) error {
	key := r.key(doc.ID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "id", doc.ID, "count", doc.Count, "version", 1)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrAlreadyExists
	}
	return err
}

func (r *RedisStore) Upsert(ctx context.Context, doc Document) error {
	key := r.key(doc.ID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "id", doc.ID, "count", doc.Count)
		pipe.HIncrBy(ctx, key, "version", 1)
		return nil
	})
	return err
}

func (r *RedisStore) Swap(ctx context.Context, prev Lookup, next Document) error {
	key := r.key(next.ID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		m, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		cur, err := lookupFromHash(next.ID, m)
		if err != nil {
			return err
		}
		if !cur.Found || cur.Version != prev.Version {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "id", next.ID, "count", next.Count, "version", cur.Version+1)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// Increment bumps count and version in one MULTI block.
func (r *RedisStore) Increment(ctx context.Context, id string) (Result, error) {
	key := r.key(id)
	var existed, count *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		existed = pipe.Exists(ctx, key)
		pipe.HSet(ctx, key, "id", id)
		count = pipe.HIncrBy(ctx, key, "count", 1)
		pipe.HIncrBy(ctx, key, "version", 1)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("TxPipelined: %w", err)
	}
	return Result{Count: count.Val(), Created: existed.Val() == 0}, nil
}

func (r *RedisStore) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
