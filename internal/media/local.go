package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalHost writes uploads under a directory served at publicBaseURL
type LocalHost struct {
	root          string
	publicBaseURL string
}

// NewLocalHost creates the upload directory if needed
func NewLocalHost(dir, publicBaseURL string) (*LocalHost, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &LocalHost{root: abs, publicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

// Root is the directory files are written to
func (h *LocalHost) Root() string {
	return h.root
}

func (h *LocalHost) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	dest, err := h.hostPath(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create parent dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write file: %v", ErrHostUnavailable, err)
	}
	return fmt.Sprintf("%s/%s", h.publicBaseURL, filepath.ToSlash(key)), nil
}

func (h *LocalHost) Remove(_ context.Context, key string) error {
	dest, err := h.hostPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (h *LocalHost) hostPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, key)
	}
	joined := filepath.Join(h.root, clean)
	if !strings.HasPrefix(joined, h.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, key)
	}
	return joined, nil
}
