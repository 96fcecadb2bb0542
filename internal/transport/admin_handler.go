package transport

import (
	"errors"
	"net/http"
	"strconv"

	"shuttle-market/internal/domain"
	"shuttle-market/internal/middleware"
	"shuttle-market/internal/repository"
	"shuttle-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSellerPage = 50
	maxSellerPage     = 200
)

// StatusRequest represents the seller status change payload
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active deactivated"`
}

// FeaturedRequest represents the featured flag payload
type FeaturedRequest struct {
	Featured *bool `json:"featured" validate:"required"`
}

// SellerView is the operator-facing seller representation
type SellerView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	StoreName      string `json:"store_name"`
	Phone          string `json:"phone"`
	OnboardingStep string `json:"onboarding_step"`
	Status         string `json:"status"`
	IsActive       bool   `json:"is_active"`
	Featured       bool   `json:"featured"`
	CreatedAt      string `json:"created_at"`
}

func toSellerView(s *domain.Seller) SellerView {
	return SellerView{
		ID:             s.ID.String(),
		Name:           s.Name,
		StoreName:      s.StoreName,
		Phone:          s.Phone,
		OnboardingStep: string(s.OnboardingStep),
		Status:         string(s.Status),
		IsActive:       s.IsActive,
		Featured:       s.Featured,
		CreatedAt:      s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// AdminHandler handles seller moderation requests
type AdminHandler struct {
	sellers service.SellerAdminService
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(sellers service.SellerAdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{sellers: sellers, logger: logger}
}

// RegisterRoutes mounts /api/admin behind the given middleware chain
func (h *AdminHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(guards...)
		r.Get("/sellers", h.ListSellers)
		r.Get("/sellers/{id}", h.GetSeller)
		r.Patch("/sellers/{id}/status", h.SetStatus)
		r.Patch("/sellers/{id}/featured", h.SetFeatured)
		r.Delete("/sellers/{id}", h.DeleteSeller)
	})
}

func (h *AdminHandler) ListSellers(w http.ResponseWriter, r *http.Request) {
	var status *domain.SellerStatus
	if v := r.URL.Query().Get("status"); v != "" {
		parsed, ok := domain.ParseSellerStatus(v)
		if !ok {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		status = &parsed
	}

	limit := defaultSellerPage
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxSellerPage)
	}

	sellers, err := h.sellers.ListSellers(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("Failed to list sellers", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list sellers")
		return
	}

	views := make([]SellerView, 0, len(sellers))
	for _, s := range sellers {
		views = append(views, toSellerView(s))
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"sellers": views})
}

func (h *AdminHandler) GetSeller(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sellerID(w, r)
	if !ok {
		return
	}

	seller, err := h.sellers.GetSeller(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get", id, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toSellerView(seller))
}

// SetStatus approves, suspends or re-queues a seller
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sellerID(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	seller, err := h.sellers.SetStatus(r.Context(), id, domain.SellerStatus(req.Status))
	if err != nil {
		h.respondServiceError(w, "update", id, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toSellerView(seller))
}

func (h *AdminHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sellerID(w, r)
	if !ok {
		return
	}

	var req FeaturedRequest
	if !h.decode(w, r, &req) {
		return
	}

	seller, err := h.sellers.SetFeatured(r.Context(), id, *req.Featured)
	if err != nil {
		h.respondServiceError(w, "feature", id, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toSellerView(seller))
}

// DeleteSeller removes the seller, their products and hosted media
func (h *AdminHandler) DeleteSeller(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sellerID(w, r)
	if !ok {
		return
	}

	if err := h.sellers.DeleteSeller(r.Context(), id); err != nil {
		h.respondServiceError(w, "delete", id, err)
		return
	}

	subject, _ := middleware.GetSubject(r.Context())
	h.logger.Info("Seller deleted by operator", zap.String("seller_id", id.String()), zap.String("operator", subject))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) sellerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid seller id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *AdminHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		h.logger.Debug("Admin request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *AdminHandler) respondServiceError(w http.ResponseWriter, action string, id uuid.UUID, err error) {
	if errors.Is(err, repository.ErrSellerNotFound) {
		middleware.RespondWithError(w, http.StatusNotFound, "seller not found")
		return
	}
	h.logger.Error("Failed to "+action+" seller", zap.String("seller_id", id.String()), zap.Error(err))
	middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action+" seller")
}
