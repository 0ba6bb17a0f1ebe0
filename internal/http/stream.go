package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamCart pushes the caller's cart summary on connect and after every
// change until the client goes away.
func (h *Handlers) StreamCart(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		h.writeError(w, r, domain.ErrMissingUser)
		return
	}
	logger := LoggerFrom(r.Context(), h.logger).WithField("user_id", userID)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("failed to upgrade the websocket")
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// Only the latest collection matters to a slow reader.
	updates := make(chan []domain.CartItem, 1)
	sub := h.cart.Subscribe(ctx, userID, func(items []domain.CartItem) {
		select {
		case updates <- items:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- items:
		default:
		}
	})
	defer sub.Close()

	go func() {
		defer cancel()
		ws.SetReadDeadline(time.Now().Add(streamPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("cart stream closed")
			return
		case items := <-updates:
			ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := ws.WriteJSON(h.checkout.Summarize(items)); err != nil {
				logger.WithError(err).Debug("cart stream write failed")
				return
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
