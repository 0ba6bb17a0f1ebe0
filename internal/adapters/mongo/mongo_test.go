package mongo_test

import (
	"context"
	"testing"

	mongoadapter "github.com/robertarktes/studio-booking-cart/internal/adapters/mongo"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func startMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+host+":"+port.Port()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Disconnect(ctx) })
	return client.Database("studio_test")
}

func TestCatalogAndAudit(t *testing.T) {
	db := startMongo(t)
	logger := observability.NewDiscardLogger()
	ctx := t.Context()

	catalog := mongoadapter.NewCatalogRepository(db, logger)
	require.NoError(t, catalog.CreateService(ctx, mongoadapter.ServiceDoc{ID: 1, Title: "Shoot", Category: "video", Price: "120.00", Active: true}))
	require.NoError(t, catalog.CreateService(ctx, mongoadapter.ServiceDoc{ID: 2, Title: "Mix", Category: "audio", Price: 80, Active: true}))
	require.NoError(t, catalog.CreateService(ctx, mongoadapter.ServiceDoc{ID: 3, Title: "Retired", Category: "video", Active: false}))

	svc, err := catalog.GetService(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Shoot", svc.Title)
	assert.Equal(t, "120", svc.Price.Amount().String())

	svc, err = catalog.GetService(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "80", svc.Price.Amount().String())

	_, err = catalog.GetService(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, catalog.SetServiceActive(ctx, 3, true))
	_, err = catalog.GetService(ctx, 3)
	require.NoError(t, err)
	assert.ErrorIs(t, catalog.SetServiceActive(ctx, 99, true), domain.ErrNotFound)

	audit := mongoadapter.NewAuditLogger(db, logger)
	require.NoError(t, audit.Record(ctx, "cart.add", "U", map[string]interface{}{"service_id": 1}))
	require.NoError(t, audit.RecordCheckout(ctx, "U", []domain.Booking{{}}))

	actions, err := audit.Actions(ctx, "U")
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "cart.add", actions[0].Action)
	assert.Equal(t, "checkout.completed", actions[1].Action)
}
