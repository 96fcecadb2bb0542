package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Host stores uploaded bytes under a key and serves them from a public URL
type Host interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// objectKey builds folder/YYYYMMDD_<id>.<ext>
func objectKey(folder, ext string, now time.Time) string {
	filename := fmt.Sprintf("%s_%s%s", now.Format("20060102"), uuid.New().String()[:8], ext)
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return filename
	}
	return path.Join(folder, filename)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	}
	return ""
}
