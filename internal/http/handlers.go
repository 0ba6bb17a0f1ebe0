package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/studio-booking-cart/internal/cart"
	"github.com/robertarktes/studio-booking-cart/internal/checkout"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
)

// Catalog supplies the service snapshot copied into a cart item.
type Catalog interface {
	GetService(ctx context.Context, id domain.ServiceID) (domain.Service, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Handlers struct {
	catalog  Catalog
	cart     *cart.Engine
	checkout *checkout.Service
	logger   observability.Logger
	checks   map[string]ReadinessCheck
}

func NewHandlers(catalog Catalog, engine *cart.Engine, co *checkout.Service, logger observability.Logger) *Handlers {
	return &Handlers{
		catalog:  catalog,
		cart:     engine,
		checkout: co,
		logger:   logger,
		checks:   make(map[string]ReadinessCheck),
	}
}

// WithReadinessCheck adds a dependency probed by /v1/readyz.
func (h *Handlers) WithReadinessCheck(name string, check ReadinessCheck) *Handlers {
	h.checks[name] = check
	return h
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	items := h.cart.Items(r.Context(), UserID(r.Context()))
	writeJSON(w, http.StatusOK, h.checkout.Summarize(items))
}

func (h *Handlers) CartCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": h.cart.Count(r.Context(), UserID(r.Context()))})
}

func (h *Handlers) InCart(w http.ResponseWriter, r *http.Request) {
	serviceID, err := domain.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"in_cart": h.cart.Contains(r.Context(), UserID(r.Context()), serviceID)})
}

type addItemRequest struct {
	ServiceID domain.ServiceID `json:"service_id"`
	domain.EventDetails
}

func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		h.writeError(w, r, domain.ErrMissingUser)
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.WithSecondaryError(errors.Wrap(domain.ErrInvalidInput, "decode cart item"), err))
		return
	}
	if req.ServiceID <= 0 {
		h.writeError(w, r, errors.Wrap(domain.ErrInvalidInput, "service_id is required"))
		return
	}

	svc, err := h.catalog.GetService(r.Context(), req.ServiceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.cart.Add(r.Context(), userID, svc, &req.EventDetails)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.checkout.Summarize(items))
}

func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	serviceID, err := domain.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var patch domain.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, r, errors.WithSecondaryError(errors.Wrap(domain.ErrInvalidInput, "decode patch"), err))
		return
	}

	items, err := h.cart.Update(r.Context(), UserID(r.Context()), serviceID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Summarize(items))
}

func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	serviceID, err := domain.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.cart.Remove(r.Context(), UserID(r.Context()), serviceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Summarize(items))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.cart.Clear(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Summarize(items))
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		h.writeError(w, r, domain.ErrMissingUser)
		return
	}
	var customer domain.Customer
	if err := json.NewDecoder(r.Body).Decode(&customer); err != nil {
		h.writeError(w, r, errors.WithSecondaryError(errors.Wrap(domain.ErrInvalidInput, "decode customer"), err))
		return
	}

	receipt, err := h.checkout.Checkout(r.Context(), userID, customer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	failed := make(map[string]string)
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, failed)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, domain.ErrMissingUser):
		status, msg = http.StatusUnauthorized, "please log in"
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrMissingEventDetails), errors.Is(err, domain.ErrEmptyCart):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrSerializationFailure):
		status, msg = http.StatusConflict, "conflict, try again"
	case errors.Is(err, domain.ErrConflict):
		status, msg = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrStorageUnavailable):
		status, msg = http.StatusServiceUnavailable, "cart storage unavailable"
	}
	if status >= http.StatusInternalServerError {
		LoggerFrom(r.Context(), h.logger).WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
