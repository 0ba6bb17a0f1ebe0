package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryAudio is the studio category whose bookings have no location.
const CategoryAudio = "audio"

// Service is the catalog snapshot embedded in a cart item at add-time.
type Service struct {
	ID            ServiceID `json:"id"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	AudioCategory string    `json:"audio_category,omitempty"`
	Price         Price     `json:"price"`
	Image         string    `json:"image"`
	Description   string    `json:"description"`
}

type CartItem struct {
	ID              ItemID    `json:"id"`
	Service         Service   `json:"service"`
	EventDate       *string   `json:"event_date"`
	EventTime       *string   `json:"event_time"`
	EventLocation   *string   `json:"event_location"`
	HasEventDetails bool      `json:"has_event_details"`
	AddedAt         time.Time `json:"added_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type EventDetails struct {
	Date     *string `json:"event_date"`
	Time     *string `json:"event_time"`
	Location *string `json:"event_location"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type Booking struct {
	ID            uuid.UUID
	UserID        string
	ServiceID     ServiceID
	ServiceTitle  string
	EventDate     string
	EventTime     string
	EventLocation *string
	Customer      Customer
	Price         decimal.Decimal
	Status        string
	CreatedAt     time.Time
}
