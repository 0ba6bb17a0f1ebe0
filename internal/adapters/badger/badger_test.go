package badger_test

import (
	"testing"

	badgeradapter "github.com/robertarktes/studio-booking-cart/internal/adapters/badger"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	db, err := badgeradapter.Open(badgeradapter.Config{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := badgeradapter.NewStore(db)
	ctx := t.Context()

	_, err = store.Get(ctx, "cart:user:1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Set(ctx, "cart:user:1", []byte(`[]`)))
	got, err := store.Get(ctx, "cart:user:1")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	written, err := store.SetIfAbsent(ctx, "cart:user:1", []byte(`[1]`))
	require.NoError(t, err)
	assert.False(t, written)

	written, err = store.SetIfAbsent(ctx, "cart:user:2", []byte(`[2]`))
	require.NoError(t, err)
	assert.True(t, written)

	got, err = store.Get(ctx, "cart:user:1")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got), "set-if-absent never overwrites")
}

func TestOpen_PersistentRequiresPath(t *testing.T) {
	_, err := badgeradapter.Open(badgeradapter.Config{}, nil)
	assert.Error(t, err)
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	db, err := badgeradapter.Open(badgeradapter.Config{Path: dir, SyncWrites: true}, nil)
	require.NoError(t, err)
	store := badgeradapter.NewStore(db)
	require.NoError(t, store.Set(t.Context(), "cart:user:9", []byte(`[]`)))
	require.NoError(t, db.Close())

	db, err = badgeradapter.Open(badgeradapter.Config{Path: dir}, nil)
	require.NoError(t, err)
	defer db.Close()
	got, err := badgeradapter.NewStore(db).Get(t.Context(), "cart:user:9")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}
