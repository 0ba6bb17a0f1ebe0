// Package carttest builds cart engines over an in-memory BadgerDB for tests.
package carttest

import (
	"sync"
	"testing"
	"time"

	badgeradapter "github.com/robertarktes/studio-booking-cart/internal/adapters/badger"
	"github.com/robertarktes/studio-booking-cart/internal/cart"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
)

// Clock is a manually advanced cart.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type Fixture struct {
	KV       *badgeradapter.Store
	Registry *cart.Registry
	Engine   *cart.Engine
	Clock    *Clock
}

// New opens an in-memory store that is closed with the test.
func New(t testing.TB, regOpts []cart.RegistryOption, opts ...cart.Option) *Fixture {
	t.Helper()
	db, err := badgeradapter.Open(badgeradapter.Config{InMemory: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := observability.NewDiscardLogger()
	kv := badgeradapter.NewStore(db)
	store := cart.NewStore(kv, cart.NewKeys(kv, logger), logger)
	registry := cart.NewRegistry(logger, regOpts...)
	clock := NewClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))

	opts = append([]cart.Option{cart.WithClock(clock)}, opts...)
	return &Fixture{
		KV:       kv,
		Registry: registry,
		Engine:   cart.NewEngine(store, registry, logger, opts...),
		Clock:    clock,
	}
}

func Service(id domain.ServiceID, title, category, price string) domain.Service {
	return domain.Service{
		ID:       id,
		Title:    title,
		Category: category,
		Price:    domain.StringPrice(price),
	}
}
