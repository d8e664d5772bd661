package forum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jacentio/cookhouse/store"
	"github.com/jacentio/cookhouse/store/memstore"
)

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	svc := NewService(ms, slog.New(slog.NewTextHandler(io.Discard, nil)))

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, ms
}

func mustCreatePost(t *testing.T, svc *Service, title string, tags ...string) string {
	t.Helper()
	id, err := svc.CreatePost(context.Background(), NewPost{
		Author:   "chef1",
		Title:    title,
		Content:  "A long enough body of text describing the recipe.",
		Category: CategorySoups,
		Tags:     tags,
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	return id
}

func mustCreateUser(t *testing.T, svc *Service, handle string) {
	t.Helper()
	if err := svc.CreateUserHandle(context.Background(), handle, "uid-"+handle, handle+"@example.com"); err != nil {
		t.Fatalf("CreateUserHandle: %v", err)
	}
}

// --- Posts ---

func TestCreatePost_GetPostByID(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	id := mustCreatePost(t, svc, "Classic French onion soup", "soup", "french")

	p, err := svc.GetPostByID(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != id {
		t.Errorf("expected id %q, got %q", id, p.ID)
	}
	if p.LikedBy == nil || len(p.LikedBy) != 0 {
		t.Errorf("expected empty likedBy, got %#v", p.LikedBy)
	}
	if p.Author != "chef1" || p.Category != CategorySoups {
		t.Errorf("unexpected post %+v", p)
	}
	if _, err := time.Parse(time.RFC3339, p.CreatedOn); err != nil {
		t.Errorf("expected RFC3339 createdOn, got %q", p.CreatedOn)
	}
}

func TestCreatePost_StampsID(t *testing.T) {
	ctx := context.Background()
	svc, ms := newTestService(t)

	id := mustCreatePost(t, svc, "Classic French onion soup")

	snap, err := ms.Get(ctx, "posts/"+id+"/id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stored string
	if err := snap.Decode(&stored); err != nil || stored != id {
		t.Errorf("expected stored id %q, got %q (%v)", id, stored, err)
	}
}

func TestGetPostByID_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetPostByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if fe.Op != "GetPostByID" || fe.Message != "Unable to fetch post." {
		t.Errorf("unexpected error %+v", fe)
	}
}

func TestGetAllPosts_Search(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mustCreatePost(t, svc, "Creamy Tomato Soup for winter", "soup", "vegan")
	mustCreatePost(t, svc, "Greek salad with feta cheese", "salad", "greek")
	mustCreatePost(t, svc, "Chocolate lava cake dessert", "sweet", "chocolate")

	tests := []struct {
		search string
		want   []string
	}{
		{"", []string{"Creamy Tomato Soup for winter", "Greek salad with feta cheese", "Chocolate lava cake dessert"}},
		{"tomato", []string{"Creamy Tomato Soup for winter"}},
		{"GREEK", []string{"Greek salad with feta cheese"}},
		{"choc", []string{"Chocolate lava cake dessert"}},
		{"vega", []string{"Creamy Tomato Soup for winter"}},
		{"sushi", []string{}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("search=%q", tt.search), func(t *testing.T) {
			posts, err := svc.GetAllPosts(ctx, tt.search)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := make([]string, 0, len(posts))
			for _, p := range posts {
				got = append(got, p.Title)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetAllPosts_Empty(t *testing.T) {
	svc, _ := newTestService(t)

	posts, err := svc.GetAllPosts(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Errorf("expected empty slice, got %#v", posts)
	}
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := mustCreatePost(t, svc, "Classic French onion soup")

	title := "Even better French onion soup"
	tags := []string{"onion"}
	if err := svc.UpdatePost(ctx, id, PostPatch{Title: &title, Tags: &tags}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := svc.GetPostByID(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title != title {
		t.Errorf("expected title %q, got %q", title, p.Title)
	}
	if !reflect.DeepEqual(p.Tags, tags) {
		t.Errorf("expected tags %v, got %v", tags, p.Tags)
	}
	if p.Content == "" {
		t.Error("expected content untouched")
	}
}

func TestUpdatePost_Missing(t *testing.T) {
	svc, _ := newTestService(t)
	title := "whatever"

	err := svc.UpdatePost(context.Background(), "missing", PostPatch{Title: &title})
	if !errors.Is(err, ErrStoreWrite) {
		t.Errorf("expected ErrStoreWrite, got %v", err)
	}
	if err == nil || err.Error() != "Failed to update post." {
		t.Errorf("expected the fixed message, got %v", err)
	}
}

func TestUpdatePost_EmptyPatch(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.UpdatePost(context.Background(), "missing", PostPatch{}); err != nil {
		t.Errorf("expected empty patch to be a no-op, got %v", err)
	}
}

func TestDeletePost_CascadesComments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := mustCreatePost(t, svc, "Classic French onion soup")

	if _, err := svc.AddComment(ctx, id, "Lovely", "chef2"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if err := svc.DeletePost(ctx, id); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}

	comments, err := svc.GetComments(ctx, id)
	if err != nil {
		t.Fatalf("GetComments: %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("expected no comments after delete, got %d", len(comments))
	}
	if _, err := svc.GetPostByID(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetPostsByUserHandle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mustCreatePost(t, svc, "Classic French onion soup")
	if _, err := svc.CreatePost(ctx, NewPost{Author: "chef2", Title: "Other"}); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	posts, err := svc.GetPostsByUserHandle(ctx, "chef1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 || posts[0].Author != "chef1" {
		t.Errorf("expected one post by chef1, got %+v", posts)
	}

	none, err := svc.GetPostsByUserHandle(ctx, "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no posts, got %d", len(none))
	}
}

// --- Failures ---

// brokenStore fails every call.
type brokenStore struct{ err error }

func (b brokenStore) Get(context.Context, string) (*store.Snapshot, error) { return nil, b.err }
func (b brokenStore) Push(context.Context, string, any) (string, error)    { return "", b.err }
func (b brokenStore) Set(context.Context, string, any) error               { return b.err }
func (b brokenStore) Update(context.Context, map[string]any) error         { return b.err }
func (b brokenStore) Remove(context.Context, string) error                 { return b.err }
func (b brokenStore) QueryEqual(context.Context, string, string, string) (*store.Snapshot, error) {
	return nil, b.err
}
func (b brokenStore) QueryLast(context.Context, string, string, int) (*store.Snapshot, error) {
	return nil, b.err
}

func TestErrors_FixedMessages(t *testing.T) {
	ctx := context.Background()
	svc := NewService(brokenStore{err: errors.New("connection reset by peer")},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name    string
		call    func() error
		kind    error
		message string
	}{
		{"CreatePost", func() error { _, err := svc.CreatePost(ctx, NewPost{}); return err }, ErrStoreWrite, "Failed to create post."},
		{"GetAllPosts", func() error { _, err := svc.GetAllPosts(ctx, ""); return err }, ErrStoreRead, "Unable to fetch posts."},
		{"LikePost", func() error { return svc.LikePost(ctx, "chef1", "p1") }, ErrStoreWrite, "Unable to like post."},
		{"DeletePost", func() error { return svc.DeletePost(ctx, "p1") }, ErrStoreWrite, "Failed to delete post."},
		{"AddComment", func() error { _, err := svc.AddComment(ctx, "p1", "x", "chef1"); return err }, ErrStoreWrite, "Unable to add comment."},
		{"GetUserByHandle", func() error { _, err := svc.GetUserByHandle(ctx, "chef1"); return err }, ErrStoreRead, "Unable to fetch user."},
		{"ToggleUserBlockStatus", func() error { return svc.ToggleUserBlockStatus(ctx, "chef1", true) }, ErrStoreWrite, "Unable to update user block status."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected kind %v, got %v", tt.kind, err)
			}
			if err.Error() != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, err.Error())
			}
			if strings.Contains(err.Error(), "connection reset") {
				t.Error("expected transport detail to stay out of the message")
			}
		})
	}
}
