// Package media moves product photos and clips from WhatsApp to the media host.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"shuttle-market/internal/domain"
	"shuttle-market/internal/whatsapp"
)

// Fetcher resolves a provider media handle into bytes
type Fetcher interface {
	DownloadMedia(ctx context.Context, mediaID string, maxBytes int64) ([]byte, string, error)
}

// Download is a fetched asset held in memory
type Download struct {
	Data      []byte
	SizeBytes int64
	MimeType  string
}

// UploadOptions controls where and how an asset is stored
type UploadOptions struct {
	Folder             string
	ResourceType       domain.MediaType
	MaxDurationSeconds int
}

// UploadResult describes a hosted asset
type UploadResult struct {
	URL             string
	ExternalID      string
	DurationSeconds int
}

// Gateway downloads provider media and uploads it to the configured host
type Gateway struct {
	fetcher Fetcher
	host    Host
	logger  *zap.Logger
	now     func() time.Time
}

func NewGateway(fetcher Fetcher, host Host, logger *zap.Logger) *Gateway {
	return &Gateway{
		fetcher: fetcher,
		host:    host,
		logger:  logger,
		now:     time.Now,
	}
}

// Download fetches the asset behind handle, failing with ErrAssetTooLarge above maxBytes
func (g *Gateway) Download(ctx context.Context, handle string, maxBytes int64) (Download, error) {
	data, mimeType, err := g.fetcher.DownloadMedia(ctx, handle, maxBytes)
	if err != nil {
		if errors.Is(err, whatsapp.ErrMediaTooLarge) {
			return Download{}, fmt.Errorf("%w: %v", ErrAssetTooLarge, err)
		}
		return Download{}, fmt.Errorf("failed to download media %s: %w", handle, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Download{}, fmt.Errorf("%w: %d bytes", ErrAssetTooLarge, len(data))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return Download{Data: data, SizeBytes: int64(len(data)), MimeType: mimeType}, nil
}

// Upload stores data after checking its type (and duration for videos)
func (g *Gateway) Upload(ctx context.Context, data []byte, opts UploadOptions) (UploadResult, error) {
	contentType := http.DetectContentType(data)

	var duration int
	switch opts.ResourceType {
	case domain.MediaImage:
		if !strings.HasPrefix(contentType, "image/") {
			return UploadResult{}, fmt.Errorf("%w: %s is not an image", ErrUnsupportedType, contentType)
		}
	case domain.MediaVideo:
		if contentType != "video/mp4" {
			return UploadResult{}, fmt.Errorf("%w: %s is not an mp4 video", ErrUnsupportedType, contentType)
		}
		d, err := MP4Duration(data)
		if err != nil {
			return UploadResult{}, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
		}
		if opts.MaxDurationSeconds > 0 && d > opts.MaxDurationSeconds {
			return UploadResult{}, fmt.Errorf("%w: %ds > %ds", ErrVideoTooLong, d, opts.MaxDurationSeconds)
		}
		duration = d
	default:
		return UploadResult{}, fmt.Errorf("%w: resource type %q", ErrUnsupportedType, opts.ResourceType)
	}

	key := objectKey(opts.Folder, extensionFor(contentType), g.now())
	url, err := g.host.Put(ctx, key, data, contentType)
	if err != nil {
		return UploadResult{}, err
	}

	g.logger.Info("Media uploaded",
		zap.String("key", key),
		zap.String("type", string(opts.ResourceType)),
		zap.Int("bytes", len(data)),
	)

	return UploadResult{URL: url, ExternalID: key, DurationSeconds: duration}, nil
}

// Delete releases a hosted asset
func (g *Gateway) Delete(ctx context.Context, externalID string, resourceType domain.MediaType) error {
	if externalID == "" {
		return nil
	}
	if err := g.host.Remove(ctx, externalID); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", resourceType, externalID, err)
	}
	g.logger.Info("Media deleted", zap.String("key", externalID), zap.String("type", string(resourceType)))
	return nil
}
