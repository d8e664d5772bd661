// Package blob stores uploaded files and hands out durable URLs for them.
//
// [S3Store] writes to an S3-compatible bucket; [MemoryStore] keeps objects
// in memory for tests and local runs. [Media] places profile photos and
// post images under the forum's key layout:
//
//	profile_photos/{uid}/{name}
//	post_images/{name}
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrNotFound is returned for handles that don't point to a stored object.
	ErrNotFound = errors.New("cookhouse/blob: object not found")

	// ErrInvalidKey is returned for empty keys or file names.
	ErrInvalidKey = errors.New("cookhouse/blob: invalid key")

	// ErrNotImage is returned when an image upload's content isn't an image.
	ErrNotImage = errors.New("cookhouse/blob: not an image")

	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("cookhouse/blob: file too large")
)

// Handle identifies an uploaded object.
type Handle struct {
	Key         string
	ContentType string
	Size        int64
}

// Store accepts uploads and resolves their URLs.
type Store interface {
	Upload(ctx context.Context, key string, data []byte) (Handle, error)
	URL(ctx context.Context, h Handle) (string, error)
}

// DetectContentType sniffs the MIME type of data.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "//") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// objectURL joins a base URL and an object key, escaping each key segment.
func objectURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}

// MemoryStore keeps objects in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

// NewMemoryStore creates a MemoryStore whose URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://blob"
	}
	return &MemoryStore{baseURL: baseURL, objects: make(map[string][]byte)}
}

// Upload stores a copy of data under key, replacing any previous object.
func (m *MemoryStore) Upload(ctx context.Context, key string, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if err := checkKey(key); err != nil {
		return Handle{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return Handle{Key: key, ContentType: DetectContentType(data), Size: int64(len(data))}, nil
}

// URL returns the object's URL.
func (m *MemoryStore) URL(_ context.Context, h Handle) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[h.Key]; !ok {
		return "", ErrNotFound
	}
	return objectURL(m.baseURL, h.Key), nil
}

// Object returns a copy of the stored bytes.
func (m *MemoryStore) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return append([]byte(nil), data...), ok
}
