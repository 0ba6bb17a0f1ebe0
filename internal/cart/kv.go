// Package cart keeps each user's pending bookings as a single snapshot in a
// key-value backend and replays every change to live subscribers.
package cart

import "context"

// KV is the persistent substrate for cart snapshots. Get returns an error
// matching domain.ErrNotFound when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
}

// ChangeFeed announces that a user's snapshot was rewritten, so other
// processes sharing the backend can re-read it.
type ChangeFeed interface {
	Publish(ctx context.Context, userID string) error
}

// Auditor records successful mutations. Failures are logged, never returned.
type Auditor interface {
	Record(ctx context.Context, action, userID string, data map[string]interface{}) error
}
