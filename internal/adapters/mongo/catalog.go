package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("services"),
		logger: logger,
	}
}

// ServiceDoc is a catalog entry as the back office writes it. Price has been
// stored both as a string and as a number, so it is decoded loosely.
type ServiceDoc struct {
	ID            int64       `bson:"_id"`
	Title         string      `bson:"title"`
	Category      string      `bson:"category"`
	AudioCategory string      `bson:"audio_category,omitempty"`
	Price         interface{} `bson:"price"`
	Image         string      `bson:"image"`
	Description   string      `bson:"description"`
	Active        bool        `bson:"active"`
	CreatedAt     time.Time   `bson:"created_at"`
	UpdatedAt     time.Time   `bson:"updated_at"`
}

// Snapshot is the copy embedded into a cart item.
func (d ServiceDoc) Snapshot() domain.Service {
	return domain.Service{
		ID:            domain.ServiceID(d.ID),
		Title:         d.Title,
		Category:      d.Category,
		AudioCategory: d.AudioCategory,
		Price:         domain.RawPrice(d.Price),
		Image:         d.Image,
		Description:   d.Description,
	}
}

func (c *CatalogRepository) GetService(ctx context.Context, id domain.ServiceID) (domain.Service, error) {
	var doc ServiceDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": int64(id), "active": true}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Service{}, errors.Wrapf(domain.ErrNotFound, "service %d", id)
	}
	if err != nil {
		c.logger.WithField("service_id", id).WithError(err).Error("failed to get service")
		return domain.Service{}, err
	}
	return doc.Snapshot(), nil
}

func (c *CatalogRepository) CreateService(ctx context.Context, doc ServiceDoc) error {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	_, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		c.logger.WithError(err).Error("failed to create service")
		return err
	}
	return nil
}

func (c *CatalogRepository) SetServiceActive(ctx context.Context, id domain.ServiceID, active bool) error {
	res, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": int64(id)},
		bson.M{"$set": bson.M{"active": active, "updated_at": time.Now()}},
	)
	if err != nil {
		c.logger.WithError(err).Error("failed to update service availability")
		return err
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(domain.ErrNotFound, "service %d", id)
	}
	return nil
}
