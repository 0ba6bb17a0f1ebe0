package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/studio-booking-cart/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/studio-booking-cart/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/studio-booking-cart/internal/adapters/redis"
	"github.com/robertarktes/studio-booking-cart/internal/cart"
	"github.com/robertarktes/studio-booking-cart/internal/checkout"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	httphandler "github.com/robertarktes/studio-booking-cart/internal/http"
	"github.com/robertarktes/studio-booking-cart/internal/idempotency"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
	"github.com/robertarktes/studio-booking-cart/internal/rateLimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host + ":" + mapped.Port()
}

type process struct {
	engine *cart.Engine
	feed   *redisadapter.ChangeFeed
}

func newProcess(redisClient *redisclient.Client, audit cart.Auditor, logger observability.Logger) process {
	kv := redisadapter.NewKV(redisClient)
	feed := redisadapter.NewChangeFeed(redisClient, uuid.NewString(), logger)
	store := cart.NewStore(kv, cart.NewKeys(kv, logger), logger)
	engine := cart.NewEngine(store, cart.NewRegistry(logger), logger, cart.WithChangeFeed(feed), cart.WithAuditor(audit))
	return process{engine: engine, feed: feed}
}

func TestIntegration_CartToCheckout(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	crdbAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "cockroachdb/cockroach:v24.1.1",
		Cmd:          []string{"start-single-node", "--insecure"},
		ExposedPorts: []string{"26257/tcp", "8080/tcp"},
		WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
	}, "26257")
	mongoAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
	}, "27017")
	redisAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
	}, "6379")

	logger := observability.NewLogger("debug")

	pool, err := pgxpool.New(ctx, "postgresql://root@"+crdbAddr+"/defaultdb?sslmode=disable")
	require.NoError(t, err)
	defer pool.Close()
	schema, err := os.ReadFile("../../internal/adapters/crdb/migrations/001_bookings.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+mongoAddr))
	require.NoError(t, err)
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("studio")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)
	require.NoError(t, catalog.CreateService(ctx, mongoadapter.ServiceDoc{
		ID: 7, Title: "Beat Making", Category: "audio", Price: "2500", Active: true,
	}))
	require.NoError(t, catalog.CreateService(ctx, mongoadapter.ServiceDoc{
		ID: 12, Title: "Event Coverage", Category: "video", Price: 1800.5, Active: true,
	}))

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: redisAddr})
	defer redisClient.Close()

	// two API processes sharing one redis backend
	a := newProcess(redisClient, audit, logger)
	b := newProcess(redisClient, audit, logger)
	go a.feed.Watch(ctx, a.engine.Refresh)
	go b.feed.Watch(ctx, b.engine.Refresh)

	seen := make(chan []domain.CartItem, 16)
	defer b.engine.Subscribe(ctx, "amina", func(items []domain.CartItem) { seen <- items }).Close()
	<-seen

	co, err := checkout.NewService(a.engine, repo, "KES", logger)
	require.NoError(t, err)
	co.WithAuditor(audit)
	userMW, err := httphandler.UserMiddleware("")
	require.NoError(t, err)
	h := httphandler.NewHandlers(catalog, a.engine, co, logger)
	router := httphandler.SetupRouter(h, logger, userMW,
		rateLimit.NewRateLimiter(redisClient, logger),
		idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour))
	srv := httptest.NewServer(router)
	defer srv.Close()

	call := func(method, path string, body interface{}, header map[string]string) *http.Response {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req, err := http.NewRequest(method, srv.URL+path, &buf)
		require.NoError(t, err)
		req.Header.Set("X-User-ID", "amina")
		for k, v := range header {
			req.Header.Set(k, v)
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		return resp
	}

	// the watcher subscribes asynchronously; retry the first add until b sees it
	require.Eventually(t, func() bool {
		resp := call(http.MethodPost, "/v1/cart/items", map[string]interface{}{
			"service_id": 7, "event_date": "2025-01-10", "event_time": "14:00",
		}, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return false
		}
		select {
		case items := <-seen:
			return len(items) == 1
		case <-time.After(500 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 100*time.Millisecond)

	resp := call(http.MethodPost, "/v1/cart/items", map[string]interface{}{
		"service_id": "12", "event_date": "2025-02-01", "event_time": "18:00", "event_location": "Harbour Hall",
	}, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, b.engine.Count(ctx, "amina"), "both processes read the shared snapshot")

	resp = call(http.MethodPost, "/v1/checkout", domain.Customer{Name: "Amina", Email: "amina@example.com"},
		map[string]string{"Idempotency-Key": uuid.NewString()})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var receipt checkout.Receipt
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	assert.Len(t, receipt.BookingIDs, 2)
	assert.Equal(t, "4300.5", receipt.Total.String())

	assert.Zero(t, a.engine.Count(ctx, "amina"))
	require.Eventually(t, func() bool {
		for {
			select {
			case items := <-seen:
				if len(items) == 0 {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 50*time.Millisecond, "b observes the cleared cart")

	events, err := repo.PendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	actions, err := audit.Actions(ctx, "amina")
	require.NoError(t, err)
	var names []string
	for _, entry := range actions {
		names = append(names, entry.Action)
	}
	assert.Contains(t, names, "cart.add")
	assert.Contains(t, names, "cart.remove_services")
	assert.Contains(t, names, "checkout.completed")
}
