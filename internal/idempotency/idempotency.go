package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// Backend stores raw response records and in-flight reservations.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

var ErrInFlight = errors.New("request with this idempotency key is in progress")

type Idempotency struct {
	backend Backend
	ttl     time.Duration
	lockTTL time.Duration
}

func NewIdempotency(backend Backend, ttl time.Duration) *Idempotency {
	return &Idempotency{backend: backend, ttl: ttl, lockTTL: 30 * time.Second}
}

type Response struct {
	Status int
	Result []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	data, ok, err := i.backend.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, "decode idempotent response")
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.backend.Set(ctx, key, data, i.ttl)
}

// Begin reserves key for one request. The returned release must be called
// once the response has been stored or abandoned.
func (i *Idempotency) Begin(ctx context.Context, key string) (release func(), err error) {
	ok, err := i.backend.Reserve(ctx, key, i.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInFlight
	}
	return func() { _ = i.backend.Release(context.WithoutCancel(ctx), key) }, nil
}
