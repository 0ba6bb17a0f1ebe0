package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	EventBookingCreated = "booking.created"

	outboxNew       = "NEW"
	outboxPublished = "PUBLISHED"
)

// OutboxRecord is an event waiting in the same database as the booking it
// describes until the relay hands it to the broker.
type OutboxRecord struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Status        string
	DedupeKey     string
}

// BookingCreated is the payload of a booking.created event.
type BookingCreated struct {
	BookingID     uuid.UUID        `json:"booking_id"`
	UserID        string           `json:"user_id"`
	ServiceID     domain.ServiceID `json:"service_id"`
	ServiceTitle  string           `json:"service_title"`
	EventDate     string           `json:"event_date"`
	EventTime     string           `json:"event_time"`
	EventLocation *string          `json:"event_location"`
	Price         decimal.Decimal  `json:"price"`
}

func bookingCreatedRecord(b domain.Booking) (OutboxRecord, error) {
	payload, err := json.Marshal(BookingCreated{
		BookingID:     b.ID,
		UserID:        b.UserID,
		ServiceID:     b.ServiceID,
		ServiceTitle:  b.ServiceTitle,
		EventDate:     b.EventDate,
		EventTime:     b.EventTime,
		EventLocation: b.EventLocation,
		Price:         b.Price,
	})
	if err != nil {
		return OutboxRecord{}, errors.Wrapf(err, "encode %s for %s", EventBookingCreated, b.ID)
	}
	return OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     EventBookingCreated,
		Payload:       payload,
		DedupeKey:     EventBookingCreated + ":" + b.ID.String(),
	}, nil
}

// InsertOutbox is a no-op for a dedupe key that is already queued.
func (r *Repository) InsertOutbox(ctx context.Context, tx pgx.Tx, record OutboxRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload_json, status, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (dedupe_key) DO NOTHING
	`, record.ID, record.AggregateType, record.AggregateID, record.EventType, record.Payload, outboxNew, record.DedupeKey)
	return errors.Wrapf(err, "insert outbox %s", record.DedupeKey)
}

// PendingEvents returns the oldest unpublished events first.
func (r *Repository) PendingEvents(ctx context.Context, limit int) ([]OutboxRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload_json, created_at, published_at, status, dedupe_key
		FROM outbox WHERE status = $1 ORDER BY created_at ASC LIMIT $2
	`, outboxNew, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query pending outbox")
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutboxRecord, error) {
		var rec OutboxRecord
		err := row.Scan(&rec.ID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &rec.Payload,
			&rec.CreatedAt, &rec.PublishedAt, &rec.Status, &rec.DedupeKey)
		return rec, err
	})
	return records, errors.Wrap(err, "scan pending outbox")
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox SET status = $3, published_at = $2 WHERE id = $1
	`, id, publishedAt, outboxPublished)
	return errors.Wrapf(err, "mark outbox %s published", id)
}
