package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shuttle-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrSellerNotFound      = errors.New("seller not found")
	ErrSellerAlreadyExists = errors.New("seller with this phone already exists")
)

// SellerRepository defines the interface for seller data access
type SellerRepository interface {
	Create(ctx context.Context, seller *domain.Seller) error
	Update(ctx context.Context, seller *domain.Seller) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error)
	FindByPhone(ctx context.Context, phone string) (*domain.Seller, error)
	List(ctx context.Context, status *domain.SellerStatus, limit int) ([]*domain.Seller, error)
}

type sellerRepository struct {
	db *sql.DB
}

// NewSellerRepository creates a new instance of SellerRepository
func NewSellerRepository(db *sql.DB) SellerRepository {
	return &sellerRepository{db: db}
}

const sellerColumns = `id, name, store_name, phone, password_hash, onboarding_step, status, is_active, featured, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSeller(row rowScanner) (*domain.Seller, error) {
	seller := &domain.Seller{}
	err := row.Scan(
		&seller.ID,
		&seller.Name,
		&seller.StoreName,
		&seller.Phone,
		&seller.PasswordHash,
		&seller.OnboardingStep,
		&seller.Status,
		&seller.IsActive,
		&seller.Featured,
		&seller.CreatedAt,
		&seller.UpdatedAt,
	)
	return seller, err
}

// Create inserts a new seller; IsActive is derived from Status before writing
func (r *sellerRepository) Create(ctx context.Context, seller *domain.Seller) error {
	seller.SyncActive()
	if err := seller.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO sellers (` + sellerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		seller.ID,
		seller.Name,
		seller.StoreName,
		seller.Phone,
		seller.PasswordHash,
		seller.OnboardingStep,
		seller.Status,
		seller.IsActive,
		seller.Featured,
		seller.CreatedAt,
		seller.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSellerAlreadyExists
		}
		return fmt.Errorf("failed to create seller: %w", err)
	}

	return nil
}

// Update saves every mutable seller field and re-derives IsActive
func (r *sellerRepository) Update(ctx context.Context, seller *domain.Seller) error {
	seller.SyncActive()
	if err := seller.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE sellers
		SET name = $2, store_name = $3, onboarding_step = $4, status = $5,
		    is_active = $6, featured = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		seller.ID,
		seller.Name,
		seller.StoreName,
		seller.OnboardingStep,
		seller.Status,
		seller.IsActive,
		seller.Featured,
		seller.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update seller: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSellerNotFound
	}

	return nil
}

// Delete removes a seller; products go with it through the foreign key cascade
func (r *sellerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sellers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete seller: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSellerNotFound
	}

	return nil
}

func (r *sellerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE id = $1`

	seller, err := scanSeller(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("failed to find seller by ID: %w", err)
	}

	return seller, nil
}

func (r *sellerRepository) FindByPhone(ctx context.Context, phone string) (*domain.Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE phone = $1`

	seller, err := scanSeller(r.db.QueryRowContext(ctx, query, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("failed to find seller by phone: %w", err)
	}

	return seller, nil
}

// List returns sellers newest first, optionally filtered by status
func (r *sellerRepository) List(ctx context.Context, status *domain.SellerStatus, limit int) ([]*domain.Seller, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + sellerColumns + ` FROM sellers`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}
	defer rows.Close()

	sellers := []*domain.Seller{}
	for rows.Next() {
		seller, err := scanSeller(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seller: %w", err)
		}
		sellers = append(sellers, seller)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sellers: %w", err)
	}

	return sellers, nil
}
