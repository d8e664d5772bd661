package blob

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// DefaultMaxImageBytes bounds image uploads.
const DefaultMaxImageBytes = 5 << 20

// Media uploads forum images and returns their URLs.
type Media struct {
	store    Store
	maxBytes int
	logger   *slog.Logger
}

// NewMedia creates a new Media. maxBytes <= 0 selects DefaultMaxImageBytes.
func NewMedia(s Store, maxBytes int, logger *slog.Logger) *Media {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Media{store: s, maxBytes: maxBytes, logger: logger}
}

// UploadProfilePhoto stores a user's profile photo and returns its URL.
func (m *Media) UploadProfilePhoto(ctx context.Context, uid, name string, data []byte) (string, error) {
	if strings.Contains(uid, "/") || uid == "" {
		return "", fmt.Errorf("%w: uid %q", ErrInvalidKey, uid)
	}
	return m.uploadImage(ctx, "profile_photos/"+uid, name, data)
}

// UploadPostImage stores a post image and returns its URL.
func (m *Media) UploadPostImage(ctx context.Context, name string, data []byte) (string, error) {
	return m.uploadImage(ctx, "post_images", name, data)
}

func (m *Media) uploadImage(ctx context.Context, dir, name string, data []byte) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("%w: file name %q", ErrInvalidKey, name)
	}
	if len(data) > m.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), m.maxBytes)
	}
	if ct := DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, ct)
	}

	key := dir + "/" + base
	h, err := m.store.Upload(ctx, key, data)
	if err != nil {
		m.logger.ErrorContext(ctx, "image upload failed", "key", key, "error", err)
		return "", err
	}
	url, err := m.store.URL(ctx, h)
	if err != nil {
		m.logger.ErrorContext(ctx, "image url lookup failed", "key", key, "error", err)
		return "", err
	}
	return url, nil
}
