package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrMediaTooLarge is returned when a download exceeds the caller's ceiling
var ErrMediaTooLarge = errors.New("media exceeds size limit")

// MediaInfo is the metadata the Cloud API returns for a media handle
type MediaInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// MediaInfo resolves a media handle into a short-lived download URL
func (c *Client) MediaInfo(ctx context.Context, mediaID string) (MediaInfo, error) {
	var info MediaInfo

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.cfg.APIBase, mediaID), nil)
	if err != nil {
		return info, fmt.Errorf("failed to build media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return info, fmt.Errorf("failed to fetch media info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("failed to fetch media info: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("failed to decode media info: %w", err)
	}
	if info.URL == "" {
		return info, fmt.Errorf("media info for %s has no url", mediaID)
	}
	return info, nil
}

// DownloadMedia fetches the bytes behind a media handle, rejecting anything larger than maxBytes
func (c *Client) DownloadMedia(ctx context.Context, mediaID string, maxBytes int64) ([]byte, string, error) {
	info, err := c.MediaInfo(ctx, mediaID)
	if err != nil {
		return nil, "", err
	}
	if maxBytes > 0 && info.FileSize > maxBytes {
		return nil, info.MimeType, fmt.Errorf("%w: %d bytes > %d", ErrMediaTooLarge, info.FileSize, maxBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download media: status %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, maxBytes)
	if errors.Is(err, ErrMediaTooLarge) {
		return nil, info.MimeType, err
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media body: %w", err)
	}

	return data, info.MimeType, nil
}

// readLimited reads r to the end. The metadata size is advisory, so the body
// itself is capped; maxBytes <= 0 disables the cap.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrMediaTooLarge, maxBytes)
	}
	return data, nil
}
