package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shuttle-market/internal/domain"
	"shuttle-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sellerMediaPage is how many products are read per page when a seller's media is released
const sellerMediaPage = 100

// Notifier delivers a plain text message to a phone
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
}

// SellerAdminService covers seller approval and moderation
type SellerAdminService interface {
	ListSellers(ctx context.Context, status *domain.SellerStatus, limit int) ([]*domain.Seller, error)
	GetSeller(ctx context.Context, id uuid.UUID) (*domain.Seller, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.SellerStatus) (*domain.Seller, error)
	SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (*domain.Seller, error)
	DeleteSeller(ctx context.Context, id uuid.UUID) error
}

type sellerAdminService struct {
	sellers  repository.SellerRepository
	products repository.ProductRepository
	media    MediaReleaser
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewSellerAdminService creates a new instance of SellerAdminService
func NewSellerAdminService(
	sellers repository.SellerRepository,
	products repository.ProductRepository,
	media MediaReleaser,
	notifier Notifier,
	logger *zap.Logger,
) SellerAdminService {
	return &sellerAdminService{
		sellers:  sellers,
		products: products,
		media:    media,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *sellerAdminService) ListSellers(ctx context.Context, status *domain.SellerStatus, limit int) ([]*domain.Seller, error) {
	sellers, err := s.sellers.List(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}
	return sellers, nil
}

func (s *sellerAdminService) GetSeller(ctx context.Context, id uuid.UUID) (*domain.Seller, error) {
	seller, err := s.sellers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}
	return seller, nil
}

// SetStatus changes marketplace visibility. Sellers are told over WhatsApp when they are approved.
func (s *sellerAdminService) SetStatus(ctx context.Context, id uuid.UUID, status domain.SellerStatus) (*domain.Seller, error) {
	seller, err := s.GetSeller(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := seller.Status
	seller.Status = status
	seller.UpdatedAt = s.now()
	if err := s.sellers.Update(ctx, seller); err != nil {
		return nil, fmt.Errorf("failed to update seller status: %w", err)
	}

	s.logger.Info("Seller status changed",
		zap.String("seller_id", seller.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)

	if status == domain.SellerActive && previous != domain.SellerActive {
		s.notify(ctx, seller, approvalMessage(seller))
	}
	if status == domain.SellerDeactivated && previous != domain.SellerDeactivated {
		s.notify(ctx, seller, "Your store has been deactivated. Please contact support if you think this is a mistake.")
	}

	return seller, nil
}

func (s *sellerAdminService) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (*domain.Seller, error) {
	seller, err := s.GetSeller(ctx, id)
	if err != nil {
		return nil, err
	}

	seller.Featured = featured
	seller.UpdatedAt = s.now()
	if err := s.sellers.Update(ctx, seller); err != nil {
		return nil, fmt.Errorf("failed to update seller: %w", err)
	}
	return seller, nil
}

// DeleteSeller releases all product media, then removes the seller (products cascade)
func (s *sellerAdminService) DeleteSeller(ctx context.Context, id uuid.UUID) error {
	seller, err := s.GetSeller(ctx, id)
	if err != nil {
		return err
	}

	released := 0
	for offset := 0; ; offset += sellerMediaPage {
		products, err := s.products.ListBySeller(ctx, seller.ID, repository.ProductFilter{Offset: offset}, sellerMediaPage)
		if err != nil {
			return fmt.Errorf("failed to list seller products: %w", err)
		}
		for _, p := range products {
			s.releaseProductMedia(ctx, p)
		}
		released += len(products)
		if len(products) < sellerMediaPage {
			break
		}
	}

	if err := s.sellers.Delete(ctx, seller.ID); err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete seller: %w", err)
	}

	s.logger.Info("Seller deleted",
		zap.String("seller_id", seller.ID.String()),
		zap.Int("products", released),
	)
	return nil
}

func (s *sellerAdminService) notify(ctx context.Context, seller *domain.Seller, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendText(ctx, seller.Phone, body); err != nil {
		s.logger.Warn("Failed to notify seller",
			zap.String("phone", seller.Phone),
			zap.Error(err),
		)
	}
}

func approvalMessage(seller *domain.Seller) string {
	store := seller.StoreName
	if store == "" {
		store = "your store"
	}
	return fmt.Sprintf("🎉 Good news %s! %s has been approved and your products are now visible to buyers. Send \"hi\" to manage your inventory.", seller.Name, store)
}

func (s *sellerAdminService) releaseProductMedia(ctx context.Context, p *domain.Product) {
	for _, ref := range p.ExternalMedia() {
		mediaType := ref.Type
		if mediaType == "" {
			mediaType = domain.MediaImage
		}
		if err := s.media.Delete(ctx, ref.ExternalID, mediaType); err != nil {
			s.logger.Warn("Failed to release media",
				zap.String("product_id", p.ID.String()),
				zap.String("external_id", ref.ExternalID),
				zap.Error(err),
			)
		}
	}
}
