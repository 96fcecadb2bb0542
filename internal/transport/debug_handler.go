package transport

import (
	"context"
	"net/http"

	"shuttle-market/internal/agent"
	"shuttle-market/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StateInspector exposes a phone's ephemeral conversation data
type StateInspector interface {
	Inspect(ctx context.Context, phone string) (agent.Snapshot, error)
	Reset(ctx context.Context, phone string) error
}

// DebugHandler serves the operator endpoints for conversation state
type DebugHandler struct {
	inspector StateInspector
	logger    *zap.Logger
}

func NewDebugHandler(inspector StateInspector, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{inspector: inspector, logger: logger}
}

// RegisterRoutes mounts /debug behind the given middleware chain
func (h *DebugHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/debug", func(r chi.Router) {
		r.Use(guards...)
		r.Get("/state/{phone}", h.GetState)
		r.Delete("/state/{phone}", h.ResetState)
	})
}

func (h *DebugHandler) GetState(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	snap, err := h.inspector.Inspect(r.Context(), phone)
	if err != nil {
		h.logger.Error("Failed to inspect state", zap.String("phone", phone), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load state")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, snap)
}

func (h *DebugHandler) ResetState(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	if err := h.inspector.Reset(r.Context(), phone); err != nil {
		h.logger.Error("Failed to reset state", zap.String("phone", phone), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to reset state")
		return
	}

	subject, _ := middleware.GetSubject(r.Context())
	h.logger.Info("Conversation state reset", zap.String("phone", phone), zap.String("operator", subject))
	w.WriteHeader(http.StatusNoContent)
}
