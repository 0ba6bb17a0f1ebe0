package cart

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Clock provides current time (for testability).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithStrictUpdates makes Update and Remove report domain.ErrNotFound when
// no item matches, instead of succeeding without a change.
func WithStrictUpdates() Option {
	return func(e *Engine) { e.strict = true }
}

func WithChangeFeed(f ChangeFeed) Option {
	return func(e *Engine) { e.feed = f }
}

func WithAuditor(a Auditor) Option {
	return func(e *Engine) { e.audit = a }
}

func WithIDGenerator(fn func() domain.ItemID) Option {
	return func(e *Engine) { e.newID = fn }
}

// Engine runs every cart operation as read, mutate, write, notify against
// the Store. Nothing is cached between calls.
type Engine struct {
	store    *Store
	registry *Registry
	logger   observability.Logger
	locks    *userLocks
	clock    Clock
	strict   bool
	feed     ChangeFeed
	audit    Auditor
	newID    func() domain.ItemID
}

func NewEngine(store *Store, registry *Registry, logger observability.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		registry: registry,
		logger:   logger,
		locks:    newUserLocks(),
		clock:    systemClock{},
		newID:    newItemID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newItemID() domain.ItemID {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.ItemID(uuid.NewString())
	}
	return domain.ItemID(id.String())
}

func (e *Engine) Items(ctx context.Context, userID string) []domain.CartItem {
	return e.store.Load(ctx, strings.TrimSpace(userID))
}

func (e *Engine) Count(ctx context.Context, userID string) int {
	return len(e.Items(ctx, userID))
}

func (e *Engine) Contains(ctx context.Context, userID string, serviceID domain.ServiceID) bool {
	return indexOf(e.Items(ctx, userID), serviceID) >= 0
}

// Add puts svc in the cart. A service already in the cart keeps its item
// and only has its scheduling fields overwritten.
func (e *Engine) Add(ctx context.Context, userID string, svc domain.Service, details *domain.EventDetails) ([]domain.CartItem, error) {
	var d domain.EventDetails
	if details != nil {
		d = *details
	}
	return e.mutate(ctx, "add", userID, func(items []domain.CartItem, now time.Time) ([]domain.CartItem, error) {
		if i := indexOf(items, svc.ID); i >= 0 {
			items[i].Schedule(d, now)
			return items, nil
		}
		return append(items, domain.NewCartItem(e.newID(), svc, d, now)), nil
	}, map[string]interface{}{"service_id": svc.ID})
}

func (e *Engine) Update(ctx context.Context, userID string, serviceID domain.ServiceID, patch domain.Patch) ([]domain.CartItem, error) {
	return e.mutate(ctx, "update", userID, func(items []domain.CartItem, now time.Time) ([]domain.CartItem, error) {
		i := indexOf(items, serviceID)
		if i < 0 {
			if e.strict {
				return nil, errors.Wrapf(domain.ErrNotFound, "service %d not in cart", serviceID)
			}
			return items, nil
		}
		items[i].Apply(patch, now)
		return items, nil
	}, map[string]interface{}{"service_id": serviceID})
}

func (e *Engine) Remove(ctx context.Context, userID string, serviceID domain.ServiceID) ([]domain.CartItem, error) {
	return e.mutate(ctx, "remove", userID, func(items []domain.CartItem, _ time.Time) ([]domain.CartItem, error) {
		kept := items[:0]
		for _, item := range items {
			if item.Service.ID != serviceID {
				kept = append(kept, item)
			}
		}
		if e.strict && len(kept) == len(items) {
			return nil, errors.Wrapf(domain.ErrNotFound, "service %d not in cart", serviceID)
		}
		return kept, nil
	}, map[string]interface{}{"service_id": serviceID})
}

// RemoveServices drops every item whose service is in ids in one mutation.
// Items added concurrently for other services survive.
func (e *Engine) RemoveServices(ctx context.Context, userID string, ids []domain.ServiceID) ([]domain.CartItem, error) {
	drop := make(map[domain.ServiceID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return e.mutate(ctx, "remove_services", userID, func(items []domain.CartItem, _ time.Time) ([]domain.CartItem, error) {
		kept := items[:0]
		for _, item := range items {
			if _, ok := drop[item.Service.ID]; !ok {
				kept = append(kept, item)
			}
		}
		return kept, nil
	}, map[string]interface{}{"services": len(ids)})
}

func (e *Engine) Clear(ctx context.Context, userID string) ([]domain.CartItem, error) {
	return e.mutate(ctx, "clear", userID, func([]domain.CartItem, time.Time) ([]domain.CartItem, error) {
		return []domain.CartItem{}, nil
	}, nil)
}

// Subscribe registers cb for userID and immediately replays the current
// collection to it. Callbacks run on the mutating goroutine while the
// user's cart is locked, so they must not call back into the Engine for the
// same user.
func (e *Engine) Subscribe(ctx context.Context, userID string, cb Callback) *Subscription {
	userID = strings.TrimSpace(userID)
	unlock := e.locks.lock(userID)
	defer unlock()

	items := e.store.Load(ctx, userID)
	sub := e.registry.add(userID, cb)
	e.registry.deliver(sub, items)
	return sub
}

func (e *Engine) Unsubscribe(userID string) {
	e.registry.Unsubscribe(strings.TrimSpace(userID))
}

// Refresh re-reads userID's snapshot and replays it to local subscribers.
// It is how writes made by another process become visible here.
func (e *Engine) Refresh(ctx context.Context, userID string) {
	userID = strings.TrimSpace(userID)
	if e.registry.Subscribers(userID) == 0 {
		return
	}
	unlock := e.locks.lock(userID)
	defer unlock()
	e.registry.notify(userID, e.store.Load(ctx, userID))
}

type mutation func(items []domain.CartItem, now time.Time) ([]domain.CartItem, error)

func (e *Engine) mutate(ctx context.Context, op, userID string, fn mutation, auditData map[string]interface{}) ([]domain.CartItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		observability.CartMutations.WithLabelValues(op, "missing_user").Inc()
		return nil, errors.Wrapf(domain.ErrMissingUser, "cart %s", op)
	}

	ctx, span := otel.Tracer("cart").Start(ctx, "cart."+op)
	defer span.End()
	span.SetAttributes(attribute.String("cart.user_id", userID))

	items, err := e.apply(ctx, userID, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.CartMutations.WithLabelValues(op, outcome(err)).Inc()
		return nil, err
	}
	observability.CartMutations.WithLabelValues(op, "ok").Inc()
	span.SetAttributes(attribute.Int("cart.items", len(items)))

	logger := e.logger.WithField("user_id", userID).WithField("op", op)
	if e.feed != nil {
		if err := e.feed.Publish(ctx, userID); err != nil {
			logger.WithError(err).Warn("cart change notice not published")
		}
	}
	if e.audit != nil {
		data := map[string]interface{}{"items": len(items)}
		for k, v := range auditData {
			data[k] = v
		}
		if err := e.audit.Record(ctx, "cart."+op, userID, data); err != nil {
			logger.WithError(err).Warn("cart audit record failed")
		}
	}
	return cloneItems(items), nil
}

func (e *Engine) apply(ctx context.Context, userID string, fn mutation) ([]domain.CartItem, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	items, err := e.store.read(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err = fn(items, e.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, userID, items); err != nil {
		return nil, err
	}
	e.registry.notify(userID, items)
	return items, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func indexOf(items []domain.CartItem, serviceID domain.ServiceID) int {
	for i, item := range items {
		if item.Service.ID == serviceID {
			return i
		}
	}
	return -1
}
