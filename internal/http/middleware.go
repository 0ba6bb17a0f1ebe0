package http

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt"
	"github.com/robertarktes/studio-booking-cart/internal/idempotency"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
	"github.com/robertarktes/studio-booking-cart/internal/rateLimit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelhttp "go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	userKey
)

const (
	userRate = 120
	ipRate   = 600
)

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			entry := logger.WithField("request_id", reqID)
			ctx := context.WithValue(r.Context(), loggerKey, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFrom returns the request-scoped logger, or fallback outside a request.
func LoggerFrom(ctx context.Context, fallback observability.Logger) observability.Logger {
	if l, ok := ctx.Value(loggerKey).(observability.Logger); ok {
		return l
	}
	return fallback
}

// UserID is the authenticated user of the request, empty for guests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, strings.TrimSpace(userID))
}

// UserMiddleware resolves the caller. With a public key configured only RS256
// bearer tokens are trusted and the subject is the user id; otherwise the
// gateway's X-User-ID header is used as is. Requests without either are
// served as guests.
func UserMiddleware(publicKeyPEM string) (func(next http.Handler) http.Handler, error) {
	if publicKeyPEM == "" {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), r.Header.Get("X-User-ID"))))
			})
		}, nil
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, errors.Wrap(err, "parse jwt public key")
	}
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.Newf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				next.ServeHTTP(w, r)
				return
			}
			var claims jwt.StandardClaims
			if _, err := jwt.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "please log in"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}, nil
}

// IdempotencyMiddleware replays the stored response of a repeated
// Idempotency-Key. Keys are scoped to the caller.
func IdempotencyMiddleware(idemp *idempotency.Idempotency) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing Idempotency-Key"})
				return
			}
			if len(key) < 16 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid Idempotency-Key"})
				return
			}
			key = UserID(r.Context()) + ":" + key
			logger := LoggerFrom(r.Context(), observability.NewDiscardLogger())

			existing, err := idemp.Get(r.Context(), key)
			if err != nil {
				logger.WithError(err).Warn("idempotency lookup failed")
			}
			if existing != nil {
				replay(w, existing)
				return
			}

			release, err := idemp.Begin(r.Context(), key)
			if errors.Is(err, idempotency.ErrInFlight) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			}
			if err != nil {
				logger.WithError(err).Warn("idempotency reservation failed")
				next.ServeHTTP(w, r)
				return
			}
			defer release()

			// the previous holder may have stored its response and released
			// the key between the lookup above and the reservation
			if existing, err := idemp.Get(r.Context(), key); err == nil && existing != nil {
				replay(w, existing)
				return
			}

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				return
			}
			if err := idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: body.Bytes()}); err != nil {
				logger.WithError(err).Warn("idempotent response not stored")
			}
		})
	}
}

func replay(w http.ResponseWriter, resp *idempotency.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(resp.Status)
	w.Write(resp.Result)
}

// RateLimitMiddleware limits signed-in users by id and guests by address.
// A nil limiter disables limiting.
func RateLimitMiddleware(rl *rateLimit.RateLimiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, rate := "user:"+UserID(r.Context()), userRate
			if UserID(r.Context()) == "" {
				key, rate = "ip:"+clientIP(r), ipRate
			}
			if !rl.Allow(r.Context(), key, rate, time.Minute) {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), otelhttp.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(attribute.Int("http.status_code", status))

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(status), r.Method).Inc()
	})
}
