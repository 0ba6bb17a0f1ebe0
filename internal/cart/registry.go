package cart

import (
	"sync"

	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
)

// Callback receives a private copy of the user's collection.
type Callback func(items []domain.CartItem)

type RegistryOption func(*Registry)

// SingleSubscriber keeps at most one callback per user; a new subscription
// replaces the previous one instead of joining it.
func SingleSubscriber() RegistryOption {
	return func(r *Registry) { r.single = true }
}

// Registry holds the live callbacks of each user. By default every
// subscriber of a user receives every change, in subscription order.
type Registry struct {
	logger observability.Logger
	single bool

	mu   sync.Mutex
	next uint64
	subs map[string][]*Subscription
}

type Subscription struct {
	id       uint64
	userID   string
	cb       Callback
	registry *Registry
}

func NewRegistry(logger observability.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{logger: logger, subs: make(map[string][]*Subscription)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) add(userID string, cb Callback) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	sub := &Subscription{id: r.next, userID: userID, cb: cb, registry: r}
	if r.single {
		observability.ActiveSubscribers.Sub(float64(len(r.subs[userID])))
		r.subs[userID] = []*Subscription{sub}
	} else {
		r.subs[userID] = append(r.subs[userID], sub)
	}
	observability.ActiveSubscribers.Inc()
	return sub
}

// Unsubscribe drops every callback registered for userID.
func (r *Registry) Unsubscribe(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	observability.ActiveSubscribers.Sub(float64(len(r.subs[userID])))
	delete(r.subs, userID)
}

// Close removes this subscription only. Closing twice is harmless.
func (s *Subscription) Close() {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subs[s.userID]
	for i, other := range subs {
		if other.id != s.id {
			continue
		}
		subs = append(subs[:i:i], subs[i+1:]...)
		observability.ActiveSubscribers.Dec()
		if len(subs) == 0 {
			delete(r.subs, s.userID)
		} else {
			r.subs[s.userID] = subs
		}
		return
	}
}

// Subscribers reports how many callbacks are registered for userID.
func (r *Registry) Subscribers(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[userID])
}

// notify calls every callback of userID synchronously. A user with no
// subscribers is not an error.
func (r *Registry) notify(userID string, items []domain.CartItem) {
	r.mu.Lock()
	subs := append([]*Subscription(nil), r.subs[userID]...)
	r.mu.Unlock()

	for _, sub := range subs {
		r.deliver(sub, items)
	}
}

func (r *Registry) deliver(sub *Subscription, items []domain.CartItem) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithField("user_id", sub.userID).WithField("panic", rec).Error("cart subscriber panicked")
		}
	}()
	sub.cb(cloneItems(items))
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	for i, item := range items {
		item.EventDate = cloneString(item.EventDate)
		item.EventTime = cloneString(item.EventTime)
		item.EventLocation = cloneString(item.EventLocation)
		out[i] = item
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
