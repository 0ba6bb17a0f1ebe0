package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
)

const (
	SerializationFailureCode = "40001"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() { observability.DBTxDuration.Observe(time.Since(start).Seconds()) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		return mapTxError(err)
	}

	return mapTxError(tx.Commit(ctx))
}

func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
		return errors.WithSecondaryError(domain.ErrSerializationFailure, err)
	}
	return err
}

// CreateBookings writes every booking and one booking.created outbox row
// per booking in a single transaction: either the whole cart is booked or
// nothing is.
func (r *Repository) CreateBookings(ctx context.Context, bookings []domain.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, b := range bookings {
			if err := r.CreateBooking(ctx, tx, b); err != nil {
				return err
			}
			rec, err := bookingCreatedRecord(b)
			if err != nil {
				return err
			}
			if err := r.InsertOutbox(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (id, user_id, service_id, service_title, event_date, event_time, event_location,
			customer_name, customer_email, customer_phone, notes, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, b.ID, b.UserID, int64(b.ServiceID), b.ServiceTitle, b.EventDate, b.EventTime, b.EventLocation,
		b.Customer.Name, b.Customer.Email, b.Customer.Phone, b.Customer.Notes, b.Price, b.Status, b.CreatedAt)
	return err
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var (
		b         domain.Booking
		serviceID int64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, service_id, service_title, event_date, event_time, event_location,
			customer_name, customer_email, customer_phone, notes, price, status, created_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.UserID, &serviceID, &b.ServiceTitle, &b.EventDate, &b.EventTime, &b.EventLocation,
		&b.Customer.Name, &b.Customer.Email, &b.Customer.Phone, &b.Customer.Notes, &b.Price, &b.Status, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "booking %s", id)
	}
	if err != nil {
		return nil, err
	}
	b.ServiceID = domain.ServiceID(serviceID)
	return &b, nil
}
