package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

type Config struct {
	HTTPAddr     string
	LogLevel     string
	CRDBDSN      string
	MongoURI     string
	MongoDB      string
	RedisAddr    string
	RabbitURL    string
	JWTPublicKey string
	OTLPEndpoint string

	// CartBackend selects where cart snapshots live: "badger" keeps them in
	// an embedded store at BadgerPath, "redis" shares them through RedisAddr.
	CartBackend string
	BadgerPath  string

	SingleSubscriber bool
	StrictUpdates    bool
	Currency         string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		CRDBDSN:          os.Getenv("CRDB_DSN"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getenv("MONGO_DB", "studio"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RabbitURL:        os.Getenv("RABBIT_URL"),
		JWTPublicKey:     os.Getenv("JWT_PUBLIC_KEY"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CartBackend:      strings.ToLower(getenv("CART_BACKEND", BackendBadger)),
		BadgerPath:       getenv("BADGER_PATH", "data/carts"),
		SingleSubscriber: getbool("CART_SINGLE_SUBSCRIBER"),
		StrictUpdates:    getbool("CART_STRICT_UPDATES"),
		Currency:         strings.ToUpper(getenv("CART_CURRENCY", "KES")),
	}, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getbool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}
