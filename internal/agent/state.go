package agent

import (
	"time"

	"shuttle-market/internal/domain"

	"github.com/google/uuid"
)

// Step is the position of a phone in the conversation state machine
type Step string

const (
	StepIdle                     Step = "idle"
	StepAwaitingName             Step = "awaiting_name"
	StepAwaitingStoreName        Step = "awaiting_store_name"
	StepAwaitingImage            Step = "awaiting_image"
	StepAwaitingProductDetails   Step = "awaiting_product_details"
	StepAwaitingProductSelection Step = "awaiting_product_selection"
	StepAwaitingUpdateField      Step = "awaiting_update_field"
	StepAwaitingUpdateValue      Step = "awaiting_update_value"
	StepConfirmDelete            Step = "confirm_delete"
)

// StateData is the partial entity collected across steps
type StateData struct {
	ImageURL  string            `json:"image_url,omitempty"`
	Images    []domain.MediaRef `json:"images,omitempty"`
	ProductID uuid.UUID         `json:"product_id,omitempty"`
	Field     Field             `json:"field,omitempty"`
}

// State is the per-phone conversation record
type State struct {
	Step      Step       `json:"step"`
	Intent    IntentKind `json:"intent,omitempty"`
	Data      StateData  `json:"data"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IdleState is the zero conversation
func IdleState() State {
	return State{Step: StepIdle}
}

// Expired reports whether the state went untouched for longer than timeout
func (s State) Expired(now time.Time, timeout time.Duration) bool {
	if s.UpdatedAt.IsZero() || timeout <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > timeout
}

// MediaTarget records which product the next bare image or video belongs to
type MediaTarget struct {
	MediaType domain.MediaType `json:"media_type"`
	ProductID uuid.UUID        `json:"product_id"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Live reports whether the target can still be used
func (t MediaTarget) Live(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
