package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"shuttle-market/internal/domain"
	"shuttle-market/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing
type mockSellerRepository struct {
	mu      sync.Mutex
	sellers map[uuid.UUID]*domain.Seller
}

func newMockSellerRepository() *mockSellerRepository {
	return &mockSellerRepository{sellers: make(map[uuid.UUID]*domain.Seller)}
}

func (m *mockSellerRepository) Create(ctx context.Context, seller *domain.Seller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sellers {
		if s.Phone == seller.Phone {
			return repository.ErrSellerAlreadyExists
		}
	}
	seller.SyncActive()
	copied := *seller
	m.sellers[seller.ID] = &copied
	return nil
}

func (m *mockSellerRepository) Update(ctx context.Context, seller *domain.Seller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sellers[seller.ID]; !ok {
		return repository.ErrSellerNotFound
	}
	seller.SyncActive()
	copied := *seller
	m.sellers[seller.ID] = &copied
	return nil
}

func (m *mockSellerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sellers[id]; !ok {
		return repository.ErrSellerNotFound
	}
	delete(m.sellers, id)
	return nil
}

func (m *mockSellerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sellers[id]
	if !ok {
		return nil, repository.ErrSellerNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *mockSellerRepository) FindByPhone(ctx context.Context, phone string) (*domain.Seller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sellers {
		if s.Phone == phone {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repository.ErrSellerNotFound
}

func (m *mockSellerRepository) List(ctx context.Context, status *domain.SellerStatus, limit int) ([]*domain.Seller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Seller{}
	for _, s := range m.sellers {
		if status == nil || s.Status == *status {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

type mockProductRepository struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*domain.Product
	listCalls int
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func cloneProduct(p *domain.Product) *domain.Product {
	copied := *p
	copied.Images = append([]domain.MediaRef{}, p.Images...)
	if p.Video != nil {
		v := *p.Video
		copied.Video = &v
	}
	return &copied
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = cloneProduct(product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = cloneProduct(product)
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (m *mockProductRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, filter repository.ProductFilter, limit int) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range m.products {
		if p.SellerID == sellerID {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	m.listCalls++
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*domain.Product{}, nil
		}
		out = out[filter.Offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockProductRepository) SearchByName(ctx context.Context, sellerID uuid.UUID, pattern string, limit int) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range m.products {
		if p.SellerID == sellerID && strings.Contains(strings.ToLower(p.Name), strings.ToLower(pattern)) {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

type mockMedia struct {
	mu      sync.Mutex
	deleted []string
}

func (m *mockMedia) Delete(ctx context.Context, externalID string, resourceType domain.MediaType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, externalID)
	return nil
}

type mockNotifier struct {
	sent map[string][]string
}

func (m *mockNotifier) SendText(ctx context.Context, to, body string) error {
	if m.sent == nil {
		m.sent = map[string][]string{}
	}
	m.sent[to] = append(m.sent[to], body)
	return nil
}
