package cart

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
)

// Store reads and writes whole cart snapshots. It never keeps a copy.
type Store struct {
	kv     KV
	keys   *Keys
	logger observability.Logger
}

func NewStore(kv KV, keys *Keys, logger observability.Logger) *Store {
	return &Store{kv: kv, keys: keys, logger: logger}
}

// Load never fails: an absent, unreadable or malformed snapshot is an
// empty cart.
func (s *Store) Load(ctx context.Context, userID string) []domain.CartItem {
	items, err := s.read(ctx, userID)
	if err != nil {
		s.logger.WithField("user_id", userID).WithError(err).Warn("cart snapshot unavailable, serving empty cart")
		return []domain.CartItem{}
	}
	return items
}

// read is Load for the mutation path. A malformed snapshot still reads as
// empty, but a backend failure is returned so the caller does not overwrite
// a cart it could not see.
func (s *Store) read(ctx context.Context, userID string) ([]domain.CartItem, error) {
	key := s.keys.KeyFor(ctx, userID)
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.CartItem{}, nil
	}
	if err != nil {
		observability.SnapshotLoadFailures.WithLabelValues("unavailable").Inc()
		return nil, errors.WithSecondaryError(errors.Wrapf(domain.ErrStorageUnavailable, "read %s", key), err)
	}

	items, err := decodeSnapshot(raw)
	if err != nil {
		observability.SnapshotLoadFailures.WithLabelValues("malformed").Inc()
		s.logger.WithField("key", key).WithError(err).Warn("discarding malformed cart snapshot")
		return []domain.CartItem{}, nil
	}
	return items, nil
}

func (s *Store) Save(ctx context.Context, userID string, items []domain.CartItem) error {
	key := s.keys.KeyFor(ctx, userID)
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return errors.WithSecondaryError(errors.Wrapf(domain.ErrStorageUnavailable, "write %s", key), err)
	}
	return nil
}

func decodeSnapshot(raw []byte) ([]domain.CartItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []domain.CartItem{}, nil
	}
	var items []domain.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "decode cart snapshot")
	}
	for i, item := range items {
		if item.ID == "" || item.Service.ID == 0 {
			return nil, errors.Newf("cart snapshot item %d has no id or service id", i)
		}
	}
	return items, nil
}
