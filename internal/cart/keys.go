package cart

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
)

const (
	LegacyKey     = "cart"
	GuestKey      = "cart:guest"
	userKeyPrefix = "cart:user:"
)

// Keys maps user identifiers to snapshot keys. The first derivation for a
// signed-in user copies the pre-namespacing snapshot into that user's key.
type Keys struct {
	kv     KV
	logger observability.Logger
	legacy string

	mu       sync.Mutex
	migrated bool
}

func NewKeys(kv KV, logger observability.Logger) *Keys {
	return &Keys{kv: kv, logger: logger, legacy: LegacyKey}
}

func (k *Keys) KeyFor(ctx context.Context, userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return GuestKey
	}
	key := userKeyPrefix + userID
	k.migrate(ctx, key)
	return key
}

func (k *Keys) migrate(ctx context.Context, key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.migrated {
		return
	}

	logger := k.logger.WithField("legacy_key", k.legacy).WithField("key", key)
	legacy, err := k.kv.Get(ctx, k.legacy)
	if errors.Is(err, domain.ErrNotFound) {
		k.migrated = true
		return
	}
	if err != nil {
		// left pending so a later derivation retries once the backend is back
		logger.WithError(err).Warn("legacy cart snapshot unreadable")
		return
	}

	copied, err := k.kv.SetIfAbsent(ctx, key, legacy)
	if err != nil {
		logger.WithError(err).Warn("legacy cart snapshot migration failed")
		return
	}
	k.migrated = true
	if copied {
		logger.Info("migrated legacy cart snapshot")
	}
}
