package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"shuttle-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductFilter narrows a seller's product listing
type ProductFilter struct {
	Category    *domain.Category
	InStockOnly bool
	Offset      int
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, filter ProductFilter, limit int) ([]*domain.Product, error)
	SearchByName(ctx context.Context, sellerID uuid.UUID, pattern string, limit int) ([]*domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, seller_id, name, description, price, category, brand, stock, condition, images, video, specs, created_at, updated_at`

// productRow carries the JSONB columns as raw bytes between the driver and the domain type
type productRow struct {
	images []byte
	video  []byte
	specs  []byte
}

func encodeProduct(product *domain.Product) (productRow, error) {
	var row productRow
	var err error

	images := product.Images
	if images == nil {
		images = []domain.MediaRef{}
	}
	if row.images, err = json.Marshal(images); err != nil {
		return row, fmt.Errorf("failed to encode images: %w", err)
	}

	if product.Video != nil {
		if row.video, err = json.Marshal(product.Video); err != nil {
			return row, fmt.Errorf("failed to encode video: %w", err)
		}
	}

	specs := product.Specs
	if specs == nil {
		specs = map[string]string{}
	}
	if row.specs, err = json.Marshal(specs); err != nil {
		return row, fmt.Errorf("failed to encode specs: %w", err)
	}

	return row, nil
}

func (row productRow) videoArg() interface{} {
	if row.video == nil {
		return nil
	}
	return string(row.video)
}

func scanProduct(scanner rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var row productRow

	err := scanner.Scan(
		&product.ID,
		&product.SellerID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Category,
		&product.Brand,
		&product.Stock,
		&product.Condition,
		&row.images,
		&row.video,
		&row.specs,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Images = []domain.MediaRef{}
	if len(row.images) > 0 {
		if err := json.Unmarshal(row.images, &product.Images); err != nil {
			return nil, fmt.Errorf("failed to decode images: %w", err)
		}
	}
	if len(row.video) > 0 {
		product.Video = &domain.Video{}
		if err := json.Unmarshal(row.video, product.Video); err != nil {
			return nil, fmt.Errorf("failed to decode video: %w", err)
		}
	}
	product.Specs = map[string]string{}
	if len(row.specs) > 0 {
		if err := json.Unmarshal(row.specs, &product.Specs); err != nil {
			return nil, fmt.Errorf("failed to decode specs: %w", err)
		}
	}

	return product, nil
}

// Create inserts a new product using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}

	row, err := encodeProduct(product)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.SellerID,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
		product.Brand,
		product.Stock,
		product.Condition,
		string(row.images),
		row.videoArg(),
		string(row.specs),
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update overwrites every mutable product field using parameterized queries
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}

	row, err := encodeProduct(product)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, category = $5, brand = $6,
		    stock = $7, condition = $8, images = $9, video = $10, specs = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
		product.Brand,
		product.Stock,
		product.Condition,
		string(row.images),
		row.videoArg(),
		string(row.specs),
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product using parameterized queries
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// ListBySeller returns a seller's products newest first
func (r *productRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, filter ProductFilter, limit int) ([]*domain.Product, error) {
	if limit <= 0 {
		limit = 10
	}

	conditions := []string{"seller_id = $1"}
	args := []interface{}{sellerID}

	if filter.Category != nil {
		args = append(args, *filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.InStockOnly {
		conditions = append(conditions, "stock > 0")
	}

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, productColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	return r.query(ctx, query, args...)
}

// SearchByName does a case-insensitive substring match scoped to one seller
func (r *productRepository) SearchByName(ctx context.Context, sellerID uuid.UUID, pattern string, limit int) ([]*domain.Product, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return []*domain.Product{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	// Escape LIKE wildcards so user text is matched literally
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(pattern)

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE seller_id = $1 AND name ILIKE $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	return r.query(ctx, query, sellerID, "%"+escaped+"%", limit)
}

func (r *productRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
