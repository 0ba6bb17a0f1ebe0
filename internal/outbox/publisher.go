package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/studio-booking-cart/internal/adapters/crdb"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
)

// Source is the outbox table.
type Source interface {
	PendingEvents(ctx context.Context, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}

type Sink interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Publisher relays booking events written at checkout to the broker.
// Delivery is at least once; consumers dedupe on MessageId.
type Publisher struct {
	repo      Source
	rabbitPub Sink
	logger    observability.Logger
	interval  time.Duration
	batch     int
}

func NewPublisher(repo Source, rabbitPub Sink, logger observability.Logger, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger, interval: interval, batch: 50}
}

func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("Outbox publisher started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush publishes one batch and returns how many records were relayed.
func (p *Publisher) Flush(ctx context.Context) int {
	records, err := p.repo.PendingEvents(ctx, p.batch)
	if err != nil {
		p.logger.WithError(err).Error("failed to read outbox")
		return 0
	}

	published := 0
	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Timestamp:   rec.CreatedAt,
			Body:        rec.Payload,
		}
		logger := p.logger.WithField("outbox_id", rec.ID).WithField("event_type", rec.EventType)
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			observability.OutboxPublished.WithLabelValues("error").Inc()
			logger.WithError(err).Warn("outbox publish failed, will retry")
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			logger.WithError(err).Error("failed to mark outbox record published")
			continue
		}
		observability.OutboxPublished.WithLabelValues("ok").Inc()
		published++
	}
	return published
}
