package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxProductImages caps the gallery of a single product
const MaxProductImages = 5

// Category is the closed set of product categories
type Category string

const (
	CategoryRackets     Category = "rackets"
	CategoryShoes       Category = "shoes"
	CategoryAccessories Category = "accessories"
	CategoryApparel     Category = "apparel"
	CategoryBags        Category = "bags"
	CategoryShuttles    Category = "shuttles"
)

// Categories lists every valid category in display order
var Categories = []Category{
	CategoryRackets,
	CategoryShoes,
	CategoryAccessories,
	CategoryApparel,
	CategoryBags,
	CategoryShuttles,
}

// Condition of a listed item
type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionUsed Condition = "used"
)

// Product is a catalog item owned by a seller
type Product struct {
	ID          uuid.UUID         `json:"id" db:"id" validate:"required"`
	SellerID    uuid.UUID         `json:"seller_id" db:"seller_id" validate:"required"`
	Name        string            `json:"name" db:"name" validate:"required,max=255"`
	Description string            `json:"description" db:"description"`
	Price       int64             `json:"price" db:"price" validate:"gte=0"`
	Category    Category          `json:"category" db:"category" validate:"required,oneof=rackets shoes accessories apparel bags shuttles"`
	Brand       string            `json:"brand" db:"brand" validate:"max=100"`
	Stock       int               `json:"stock" db:"stock" validate:"gte=0"`
	Condition   Condition         `json:"condition" db:"condition" validate:"oneof=new used"`
	Images      []MediaRef        `json:"images" db:"images" validate:"max=5,dive"`
	Video       *Video            `json:"video,omitempty" db:"video" validate:"omitempty"`
	Specs       map[string]string `json:"specs,omitempty" db:"specs"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// NewProduct fills the defaults used by chat-created products
func NewProduct(sellerID uuid.UUID, name string, price int64, now time.Time) *Product {
	return &Product{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Name:      name,
		Price:     price,
		Category:  CategoryAccessories,
		Stock:     1,
		Condition: ConditionNew,
		Images:    []MediaRef{},
		Specs:     map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks field constraints before persisting
func (p *Product) Validate() error {
	return validateStruct(p, ErrInvalidProduct)
}

// ImageSlotsLeft returns how many more images fit under the cap
func (p *Product) ImageSlotsLeft() int {
	left := MaxProductImages - len(p.Images)
	if left < 0 {
		return 0
	}
	return left
}

// ExternalMedia lists every hosted media reference owned by the product
func (p *Product) ExternalMedia() []MediaRef {
	refs := make([]MediaRef, 0, len(p.Images)+1)
	refs = append(refs, p.Images...)
	if p.Video != nil {
		refs = append(refs, MediaRef{URL: p.Video.URL, ExternalID: p.Video.ExternalID, Type: MediaVideo})
	}
	return refs
}

// ParseCategory converts user input into a Category
func ParseCategory(v string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == v {
			return c, true
		}
	}
	return "", false
}
