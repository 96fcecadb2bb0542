package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"shuttle-market/internal/middleware"
	"shuttle-market/internal/whatsapp"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MaxWebhookBody bounds a single webhook delivery
const MaxWebhookBody = 1 << 20

// EventHandler consumes normalized inbound events
type EventHandler interface {
	HandleEvent(ctx context.Context, ev whatsapp.Event)
}

// WebhookHandler answers the provider's verification handshake and accepts
// deliveries, processing them after the 200 has been written
type WebhookHandler struct {
	events         EventHandler
	verifyToken    string
	processTimeout time.Duration
	logger         *zap.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	draining bool
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(events EventHandler, verifyToken string, processTimeout time.Duration, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		events:         events,
		verifyToken:    verifyToken,
		processTimeout: processTimeout,
		logger:         logger,
	}
}

// RegisterRoutes registers the webhook routes; verify wraps POST only
func (h *WebhookHandler) RegisterRoutes(r chi.Router, verify func(http.Handler) http.Handler) {
	r.Route("/webhook", func(r chi.Router) {
		r.Get("/", h.Verify)
		r.With(verify).Post("/", h.Receive)
	})
}

// Verify handles the subscription handshake
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		h.logger.Warn("Webhook verification rejected", zap.String("mode", mode))
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h.logger.Info("Webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// Receive acknowledges a delivery immediately and hands its events to the agent
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Dropping oversized webhook body", zap.Int64("limit", tooLarge.Limit))
		} else {
			h.logger.Warn("Failed to read webhook body", zap.Error(err))
		}
		middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	events, err := whatsapp.Normalize(body)
	if err != nil {
		h.logger.Warn("Dropping malformed webhook delivery", zap.Error(err))
		middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if len(events) > 0 && !h.dispatch(r.Context(), events) {
		h.logger.Warn("Webhook delivery arrived during shutdown", zap.Int("events", len(events)))
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *WebhookHandler) dispatch(reqCtx context.Context, events []whatsapp.Event) bool {
	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		return false
	}
	h.wg.Add(1)
	h.mu.Unlock()

	ctx := context.WithoutCancel(reqCtx)
	go func() {
		defer h.wg.Done()
		for _, ev := range events {
			h.process(ctx, ev)
		}
	}()
	return true
}

func (h *WebhookHandler) process(parent context.Context, ev whatsapp.Event) {
	ctx := parent
	if h.processTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, h.processTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Recovered panic in webhook processing",
				zap.String("phone", ev.Phone),
				zap.Any("panic", r),
			)
		}
	}()

	h.events.HandleEvent(ctx, ev)
}

// Shutdown stops accepting background work and waits for in-flight events
func (h *WebhookHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
