package domain

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const BookingStatusPending = "PENDING"

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.Wrap(ErrInvalidInput, "customer name is required")
	}
	if !strings.Contains(c.Email, "@") {
		return errors.Wrapf(ErrInvalidInput, "customer email %q", c.Email)
	}
	return nil
}

// NewBooking converts a scheduled cart item into a pending booking.
func NewBooking(userID string, item CartItem, customer Customer, now time.Time) (Booking, error) {
	if !item.HasEventDetails || item.EventDate == nil || item.EventTime == nil {
		return Booking{}, errors.Wrapf(ErrMissingEventDetails, "service %q", item.Service.Title)
	}
	return Booking{
		ID:            uuid.New(),
		UserID:        userID,
		ServiceID:     item.Service.ID,
		ServiceTitle:  item.Service.Title,
		EventDate:     *item.EventDate,
		EventTime:     *item.EventTime,
		EventLocation: item.EventLocation,
		Customer:      customer,
		Price:         item.Service.Price.Amount(),
		Status:        BookingStatusPending,
		CreatedAt:     now,
	}, nil
}
