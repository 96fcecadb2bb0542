package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shuttle-market/internal/domain"
	"shuttle-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// fuzzyMatchLimit bounds name-search results shown to the seller
	fuzzyMatchLimit = 10
)

var (
	ErrImageLimitReached = errors.New("product already has the maximum number of images")
)

// MediaReleaser deletes hosted assets by external id
type MediaReleaser interface {
	Delete(ctx context.Context, externalID string, resourceType domain.MediaType) error
}

// CatalogService is the narrow catalog contract consumed by the chat agent
type CatalogService interface {
	FindSellerByPhone(ctx context.Context, phone string) (*domain.Seller, error)
	CreateSeller(ctx context.Context, phone string) (*domain.Seller, error)
	SaveSeller(ctx context.Context, seller *domain.Seller) error

	CreateProduct(ctx context.Context, product *domain.Product) error
	FindProductsBySeller(ctx context.Context, sellerID uuid.UUID, filter repository.ProductFilter, limit int) ([]*domain.Product, error)
	FindProductByFuzzyName(ctx context.Context, sellerID uuid.UUID, pattern string) ([]*domain.Product, error)
	FindProductByID(ctx context.Context, sellerID, productID uuid.UUID) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, sellerID, productID uuid.UUID) error

	AddProductImage(ctx context.Context, sellerID, productID uuid.UUID, ref domain.MediaRef) (*domain.Product, error)
	SetProductVideo(ctx context.Context, sellerID, productID uuid.UUID, video domain.Video) (*domain.Product, error)
	ClearProductMedia(ctx context.Context, sellerID, productID uuid.UUID) (*domain.Product, error)
}

type catalogService struct {
	sellers  repository.SellerRepository
	products repository.ProductRepository
	media    MediaReleaser
	logger   *zap.Logger
	now      func() time.Time
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	sellers repository.SellerRepository,
	products repository.ProductRepository,
	media MediaReleaser,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		sellers:  sellers,
		products: products,
		media:    media,
		logger:   logger,
		now:      time.Now,
	}
}

// FindSellerByPhone returns repository.ErrSellerNotFound for unknown phones
func (s *catalogService) FindSellerByPhone(ctx context.Context, phone string) (*domain.Seller, error) {
	seller, err := s.sellers.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find seller: %w", err)
	}
	return seller, nil
}

// CreateSeller registers a placeholder seller for a phone seen for the first time.
// The account gets a random password that nobody knows until a reset.
func (s *catalogService) CreateSeller(ctx context.Context, phone string) (*domain.Seller, error) {
	hash, err := hashPassword(uuid.New().String())
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	seller := domain.NewPlaceholderSeller(phone, hash, s.now())
	if err := s.sellers.Create(ctx, seller); err != nil {
		if errors.Is(err, repository.ErrSellerAlreadyExists) {
			// Two first messages raced; use the record that won
			return s.sellers.FindByPhone(ctx, phone)
		}
		return nil, fmt.Errorf("failed to create seller: %w", err)
	}

	s.logger.Info("Seller created from chat", zap.String("phone", phone), zap.String("seller_id", seller.ID.String()))
	return seller, nil
}

func (s *catalogService) SaveSeller(ctx context.Context, seller *domain.Seller) error {
	seller.UpdatedAt = s.now()
	if err := s.sellers.Update(ctx, seller); err != nil {
		return fmt.Errorf("failed to save seller: %w", err)
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, domain.ErrInvalidProduct) {
			return err
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (s *catalogService) FindProductsBySeller(ctx context.Context, sellerID uuid.UUID, filter repository.ProductFilter, limit int) ([]*domain.Product, error) {
	products, err := s.products.ListBySeller(ctx, sellerID, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// FindProductByFuzzyName matches the whole phrase first, then falls back to individual words
func (s *catalogService) FindProductByFuzzyName(ctx context.Context, sellerID uuid.UUID, pattern string) ([]*domain.Product, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return []*domain.Product{}, nil
	}

	matches, err := s.products.SearchByName(ctx, sellerID, pattern, fuzzyMatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	if len(matches) > 0 {
		return matches, nil
	}

	seen := map[uuid.UUID]bool{}
	merged := []*domain.Product{}
	for _, word := range strings.Fields(pattern) {
		if len([]rune(word)) < 3 {
			continue
		}
		found, err := s.products.SearchByName(ctx, sellerID, word, fuzzyMatchLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to search products: %w", err)
		}
		for _, p := range found {
			if !seen[p.ID] && len(merged) < fuzzyMatchLimit {
				seen[p.ID] = true
				merged = append(merged, p)
			}
		}
	}
	return merged, nil
}

// FindProductByID hides products owned by other sellers behind ErrProductNotFound
func (s *catalogService) FindProductByID(ctx context.Context, sellerID, productID uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if product.SellerID != sellerID {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, product *domain.Product) error {
	product.UpdatedAt = s.now()
	if err := s.products.Update(ctx, product); err != nil {
		if errors.Is(err, domain.ErrInvalidProduct) || errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// DeleteProduct releases hosted media before removing the row
func (s *catalogService) DeleteProduct(ctx context.Context, sellerID, productID uuid.UUID) error {
	product, err := s.FindProductByID(ctx, sellerID, productID)
	if err != nil {
		return err
	}

	s.releaseMedia(ctx, product.ExternalMedia())

	if err := s.products.Delete(ctx, product.ID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// AddProductImage appends one image, refusing once the gallery is full
func (s *catalogService) AddProductImage(ctx context.Context, sellerID, productID uuid.UUID, ref domain.MediaRef) (*domain.Product, error) {
	product, err := s.FindProductByID(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}
	if product.ImageSlotsLeft() == 0 {
		return product, ErrImageLimitReached
	}

	ref.Type = domain.MediaImage
	product.Images = append(product.Images, ref)
	if err := s.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// SetProductVideo replaces the product's clip. The previous clip is released first.
func (s *catalogService) SetProductVideo(ctx context.Context, sellerID, productID uuid.UUID, video domain.Video) (*domain.Product, error) {
	product, err := s.FindProductByID(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}

	if old := product.Video; old != nil && old.ExternalID != video.ExternalID {
		s.releaseMedia(ctx, []domain.MediaRef{{URL: old.URL, ExternalID: old.ExternalID, Type: domain.MediaVideo}})
	}

	product.Video = &video
	if err := s.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// ClearProductMedia releases every image and the video
func (s *catalogService) ClearProductMedia(ctx context.Context, sellerID, productID uuid.UUID) (*domain.Product, error) {
	product, err := s.FindProductByID(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}

	s.releaseMedia(ctx, product.ExternalMedia())

	product.Images = []domain.MediaRef{}
	product.Video = nil
	if err := s.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// releaseMedia is best effort: a host failure leaves an orphaned file, never a broken product
func (s *catalogService) releaseMedia(ctx context.Context, refs []domain.MediaRef) {
	for _, ref := range refs {
		mediaType := ref.Type
		if mediaType == "" {
			mediaType = domain.MediaImage
		}
		if err := s.media.Delete(ctx, ref.ExternalID, mediaType); err != nil {
			s.logger.Warn("Failed to release media",
				zap.String("external_id", ref.ExternalID),
				zap.Error(err),
			)
		}
	}
}

// hashPassword hashes a password using bcrypt
func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
