package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    string    `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) Record(ctx context.Context, action, userID string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) RecordCheckout(ctx context.Context, userID string, bookings []domain.Booking) error {
	ids := make([]string, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID.String()
	}
	return a.Record(ctx, "checkout.completed", userID, map[string]interface{}{
		"booking_ids": ids,
		"count":       len(bookings),
	})
}

func (a *AuditLogger) Actions(ctx context.Context, userID string) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	var logs []AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
