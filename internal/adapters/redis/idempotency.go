package redis

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const (
	idempRecordPrefix = "idemp:"
	idempLockPrefix   = "idemp:lock:"
)

// Idempotency stores checkout responses by Idempotency-Key, next to a
// short-lived lock that marks a key whose request is still running.
type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// Get returns the stored response record, or ok=false when none exists.
func (i *Idempotency) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, err := i.client.Get(ctx, idempRecordPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get idempotency record %s", key)
	}
	return val, true, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return errors.Wrapf(i.client.Set(ctx, idempRecordPrefix+key, data, ttl).Err(), "redis set idempotency record %s", key)
}

// Reserve reports false when another request holds the lock. The lock
// expires on its own if its holder dies.
func (i *Idempotency) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := i.client.SetNX(ctx, idempLockPrefix+key, 1, ttl).Result()
	return ok, errors.Wrapf(err, "redis lock idempotency key %s", key)
}

func (i *Idempotency) Release(ctx context.Context, key string) error {
	return errors.Wrapf(i.client.Del(ctx, idempLockPrefix+key).Err(), "redis unlock idempotency key %s", key)
}
