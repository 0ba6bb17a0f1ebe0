package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	badgeradapter "github.com/robertarktes/studio-booking-cart/internal/adapters/badger"
	"github.com/robertarktes/studio-booking-cart/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/studio-booking-cart/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/studio-booking-cart/internal/adapters/redis"
	"github.com/robertarktes/studio-booking-cart/internal/cart"
	"github.com/robertarktes/studio-booking-cart/internal/checkout"
	"github.com/robertarktes/studio-booking-cart/internal/config"
	httphandler "github.com/robertarktes/studio-booking-cart/internal/http"
	"github.com/robertarktes/studio-booking-cart/internal/idempotency"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
	"github.com/robertarktes/studio-booking-cart/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	instance := uuid.NewString()
	shutdown, err := observability.SetupTracing(context.Background(), cfg.OTLPEndpoint, "studio-cart-api", instance)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown(context.Background())

	logger := observability.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	crdbRepo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDB)
	mongoCatalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), 24*time.Hour)
	rl := rateLimit.NewRateLimiter(redisClient, logger)

	var regOpts []cart.RegistryOption
	if cfg.SingleSubscriber {
		regOpts = append(regOpts, cart.SingleSubscriber())
	}
	engineOpts := []cart.Option{cart.WithAuditor(audit)}
	if cfg.StrictUpdates {
		engineOpts = append(engineOpts, cart.WithStrictUpdates())
	}

	var (
		kv   cart.KV
		feed *redisadapter.ChangeFeed
	)
	switch cfg.CartBackend {
	case config.BackendRedis:
		kv = redisadapter.NewKV(redisClient)
		feed = redisadapter.NewChangeFeed(redisClient, instance, logger)
		engineOpts = append(engineOpts, cart.WithChangeFeed(feed))
	case config.BackendBadger:
		db, err := badgeradapter.Open(badgeradapter.Config{Path: cfg.BadgerPath, SyncWrites: true}, logger)
		if err != nil {
			log.Fatalf("failed to open badger: %v", err)
		}
		defer db.Close()
		kv = badgeradapter.NewStore(db)
	default:
		log.Fatalf("unknown CART_BACKEND %q", cfg.CartBackend)
	}

	store := cart.NewStore(kv, cart.NewKeys(kv, logger), logger)
	engine := cart.NewEngine(store, cart.NewRegistry(logger, regOpts...), logger, engineOpts...)

	checkoutSvc, err := checkout.NewService(engine, crdbRepo, cfg.Currency, logger)
	if err != nil {
		log.Fatalf("failed to create checkout: %v", err)
	}
	checkoutSvc.WithAuditor(audit)

	userMW, err := httphandler.UserMiddleware(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("failed to setup auth: %v", err)
	}

	handlers := httphandler.NewHandlers(mongoCatalog, engine, checkoutSvc, logger).
		WithReadinessCheck("crdb", pool.Ping).
		WithReadinessCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }).
		WithReadinessCheck("mongo", func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) })

	r := httphandler.SetupRouter(handlers, logger, userMW, rl, idemp)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).WithField("backend", cfg.CartBackend).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if feed != nil {
		g.Go(func() error {
			return feed.Watch(gctx, engine.Refresh)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
	}
	logger.Info("Server exiting")
}
