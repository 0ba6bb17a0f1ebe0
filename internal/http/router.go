package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/studio-booking-cart/internal/idempotency"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
	"github.com/robertarktes/studio-booking-cart/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, userMW func(http.Handler) http.Handler, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(userMW)
		r.Use(RateLimitMiddleware(rl))

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Get("/count", h.CartCount)
			r.Get("/stream", h.StreamCart)
			r.Post("/items", h.AddItem)
			r.Get("/items/{serviceID}", h.InCart)
			r.Patch("/items/{serviceID}", h.UpdateItem)
			r.Delete("/items/{serviceID}", h.RemoveItem)
		})
		r.With(IdempotencyMiddleware(idemp)).Post("/v1/checkout", h.Checkout)
	})

	return r
}
