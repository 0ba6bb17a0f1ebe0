package redis

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
)

// KV keeps cart snapshots in Redis so every API replica shares them.
// Snapshots have no expiry: an abandoned cart waits for the next session.
type KV struct {
	client *redis.Client
}

func NewKV(client *redis.Client) *KV {
	return &KV{client: client}
}

func (c *KV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return val, nil
}

func (c *KV) Set(ctx context.Context, key string, value []byte) error {
	return errors.Wrapf(c.client.Set(ctx, key, value, 0).Err(), "redis set %s", key)
}

func (c *KV) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	res := c.client.SetNX(ctx, key, value, 0)
	if err := res.Err(); err != nil {
		return false, errors.Wrapf(err, "redis setnx %s", key)
	}
	return res.Val(), nil
}
