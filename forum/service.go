package forum

import (
	"context"
	"log/slog"
	"time"

	"github.com/jacentio/cookhouse/store"
)

// Collections.
const (
	postsCollection = "posts"
	usersCollection = "users"
)

// TopLimit bounds the ranked and recent post lists.
const TopLimit = 10

// DataStore is the store operation set the forum needs.
// *store.Store and *memstore.Store satisfy it.
type DataStore interface {
	Get(ctx context.Context, path string) (*store.Snapshot, error)
	Push(ctx context.Context, path string, value any) (string, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, updates map[string]any) error
	Remove(ctx context.Context, path string) error
	QueryEqual(ctx context.Context, collection, field, value string) (*store.Snapshot, error)
	QueryLast(ctx context.Context, collection, orderBy string, limit int) (*store.Snapshot, error)
}

var (
	// Likes mirrors posts/{id}/likedBy/{handle} to users/{handle}/likedPosts/{id}.
	Likes = store.Mirror{
		Collection:       postsCollection,
		Field:            "likedBy",
		MirrorCollection: usersCollection,
		MirrorField:      "likedPosts",
	}

	// Dislikes mirrors posts/{id}/dislikedBy/{handle} to users/{handle}/dislikedPosts/{id}.
	Dislikes = store.Mirror{
		Collection:       postsCollection,
		Field:            "dislikedBy",
		MirrorCollection: usersCollection,
		MirrorField:      "dislikedPosts",
	}
)

// Tables describes the tables and indexes the forum's collections need.
func Tables() []store.TableSpec {
	return []store.TableSpec{
		{
			Collection: postsCollection,
			Indexes: []store.IndexSpec{
				{Field: "author"},
				{Field: "createdOn", Ordered: true},
			},
			Stream: true,
		},
		{
			Collection: usersCollection,
			Indexes:    []store.IndexSpec{{Field: "uid"}},
		},
	}
}

// NewRegistry returns a registry holding the forum's mirrored relations.
func NewRegistry() *store.Registry {
	r := store.NewRegistry()
	r.Register(Likes)
	r.Register(Dislikes)
	return r
}

// Service implements the forum operations against a DataStore.
type Service struct {
	store  DataStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new forum service.
func NewService(s DataStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) timestamp() string {
	return Timestamp(s.now())
}

// fail logs the underlying error and returns the fixed-message error.
func (s *Service) fail(ctx context.Context, op string, kind error, message string, err error, attrs ...any) error {
	args := append([]any{"op", op, "error", err}, attrs...)
	s.logger.ErrorContext(ctx, message, args...)
	return &Error{Op: op, Kind: kind, Message: message}
}

func postPath(id string, fields ...string) string {
	return store.JoinPath(append([]string{postsCollection, id}, fields...)...)
}

func commentPath(postID, commentID string, fields ...string) string {
	return postPath(postID, append([]string{"comments", commentID}, fields...)...)
}

func userPath(handle string, fields ...string) string {
	return store.JoinPath(append([]string{usersCollection, handle}, fields...)...)
}
