package domain

import (
	"time"

	"github.com/google/uuid"
)

// OnboardingStep tracks how far a chat-created seller got through registration
type OnboardingStep string

const (
	OnboardingNew         OnboardingStep = "new"
	OnboardingNameEntered OnboardingStep = "name_entered"
	OnboardingComplete    OnboardingStep = "complete"
)

// SellerStatus controls marketplace visibility
type SellerStatus string

const (
	SellerPending     SellerStatus = "pending"
	SellerActive      SellerStatus = "active"
	SellerDeactivated SellerStatus = "deactivated"
)

// PlaceholderSellerName is stored until the seller answers the name question
const PlaceholderSellerName = "Pending"

// Seller is a marketplace tenant identified by phone number
type Seller struct {
	ID             uuid.UUID      `json:"id" db:"id" validate:"required"`
	Name           string         `json:"name" db:"name" validate:"required,max=255"`
	StoreName      string         `json:"store_name" db:"store_name" validate:"max=255"`
	Phone          string         `json:"phone" db:"phone" validate:"required,numeric,min=6,max=32"`
	PasswordHash   string         `json:"-" db:"password_hash" validate:"required"`
	OnboardingStep OnboardingStep `json:"onboarding_step" db:"onboarding_step" validate:"oneof=new name_entered complete"`
	Status         SellerStatus   `json:"status" db:"status" validate:"oneof=pending active deactivated"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	Featured       bool           `json:"featured" db:"featured"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// NewPlaceholderSeller builds the record created on the first message from an unknown phone
func NewPlaceholderSeller(phone, passwordHash string, now time.Time) *Seller {
	s := &Seller{
		ID:             uuid.New(),
		Name:           PlaceholderSellerName,
		Phone:          phone,
		PasswordHash:   passwordHash,
		OnboardingStep: OnboardingNew,
		Status:         SellerPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.SyncActive()
	return s
}

// SyncActive recomputes the derived IsActive flag from Status.
// Repositories call it on every save.
func (s *Seller) SyncActive() {
	s.IsActive = s.Status == SellerActive
}

// OnboardingComplete reports whether the seller may use catalog operations
func (s *Seller) OnboardingComplete() bool {
	return s.OnboardingStep == OnboardingComplete
}

// Validate checks field constraints before persisting
func (s *Seller) Validate() error {
	return validateStruct(s, ErrInvalidSeller)
}

// ParseSellerStatus converts user input into a SellerStatus
func ParseSellerStatus(v string) (SellerStatus, bool) {
	switch SellerStatus(v) {
	case SellerPending, SellerActive, SellerDeactivated:
		return SellerStatus(v), true
	}
	return "", false
}
