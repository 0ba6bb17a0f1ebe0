// Package checkout turns a user's cart into confirmed booking requests.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/studio-booking-cart/internal/cart"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// BookingStore persists all bookings of one checkout atomically.
type BookingStore interface {
	CreateBookings(ctx context.Context, bookings []domain.Booking) error
}

type CheckoutAuditor interface {
	RecordCheckout(ctx context.Context, userID string, bookings []domain.Booking) error
}

type Service struct {
	cart     *cart.Engine
	bookings BookingStore
	audit    CheckoutAuditor
	currency currency.Unit
	logger   observability.Logger
	now      func() time.Time
}

func NewService(engine *cart.Engine, bookings BookingStore, cur string, logger observability.Logger) (*Service, error) {
	unit, err := currency.ParseISO(cur)
	if err != nil {
		return nil, errors.Wrapf(err, "currency %q", cur)
	}
	return &Service{cart: engine, bookings: bookings, currency: unit, logger: logger, now: time.Now}, nil
}

func (s *Service) WithAuditor(a CheckoutAuditor) *Service {
	s.audit = a
	return s
}

type Receipt struct {
	BookingIDs []uuid.UUID     `json:"booking_ids"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
}

// Summary is what the cart page shows: the items plus a total in which any
// price that is not a number counts as zero.
type Summary struct {
	Items    []domain.CartItem `json:"items"`
	Count    int               `json:"count"`
	Total    decimal.Decimal   `json:"total"`
	Currency string            `json:"currency"`
}

func (s *Service) Summarize(items []domain.CartItem) Summary {
	return Summary{Items: items, Count: len(items), Total: domain.Total(items), Currency: s.currency.String()}
}

// Checkout books every item in the cart and then removes the booked services.
// Nothing is removed until every booking has been written, and items added
// while the bookings were being written stay in the cart.
func (s *Service) Checkout(ctx context.Context, userID string, customer domain.Customer) (Receipt, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Receipt{}, errors.Wrap(domain.ErrMissingUser, "checkout")
	}
	if err := customer.Validate(); err != nil {
		s.count("invalid")
		return Receipt{}, err
	}

	items := s.cart.Items(ctx, userID)
	if len(items) == 0 {
		s.count("empty")
		return Receipt{}, domain.ErrEmptyCart
	}

	now := s.now().UTC()
	bookings := make([]domain.Booking, 0, len(items))
	for _, item := range items {
		b, err := domain.NewBooking(userID, item, customer, now)
		if err != nil {
			s.count("invalid")
			return Receipt{}, err
		}
		bookings = append(bookings, b)
	}

	if err := s.bookings.CreateBookings(ctx, bookings); err != nil {
		s.count("error")
		return Receipt{}, errors.Wrap(err, "create bookings")
	}

	logger := s.logger.WithField("user_id", userID).WithField("bookings", len(bookings))
	booked := make([]domain.ServiceID, len(bookings))
	for i, b := range bookings {
		booked[i] = b.ServiceID
	}
	if _, err := s.cart.RemoveServices(ctx, userID, booked); err != nil {
		// the bookings stand; the stale cart is the lesser problem
		logger.WithError(err).Error("bookings created but booked items not removed from cart")
	}
	if s.audit != nil {
		if err := s.audit.RecordCheckout(ctx, userID, bookings); err != nil {
			logger.WithError(err).Warn("checkout audit record failed")
		}
	}
	s.count("ok")
	logger.Info("checkout completed")

	ids := make([]uuid.UUID, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	return Receipt{BookingIDs: ids, Total: domain.Total(items), Currency: s.currency.String()}, nil
}

func (s *Service) count(outcome string) {
	observability.CheckoutsTotal.WithLabelValues(outcome).Inc()
}
