package domain

// MediaType distinguishes images from videos on the media host
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MediaRef points at an uploaded asset. ExternalID is what the media host needs for deletion.
type MediaRef struct {
	URL        string    `json:"url" validate:"required"`
	ExternalID string    `json:"external_id" validate:"required"`
	Type       MediaType `json:"type,omitempty"`
}

// Video is the single optional clip attached to a product
type Video struct {
	URL             string `json:"url" validate:"required"`
	ExternalID      string `json:"external_id" validate:"required"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}
