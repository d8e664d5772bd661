//go:build e2e

// Package e2e contains end-to-end integration tests using real DynamoDB tables.
// Run with: go test -tags=e2e -v ./e2e/...
//
// AWS credentials come from the default chain; set COOKHOUSE_E2E_PROFILE to
// pick a shared config profile and COOKHOUSE_E2E_ENDPOINT to target DynamoDB
// Local.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jacentio/cookhouse/forum"
	"github.com/jacentio/cookhouse/identity"
	"github.com/jacentio/cookhouse/store"
)

var (
	testID      string
	storeConfig store.Config
	tableSpecs  []store.TableSpec

	ddbClient *dynamodb.Client
	testStore *store.Store
	svc       *forum.Service
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	// Unique per run to avoid conflicts
	testID = uuid.New().String()[:8]
	storeConfig = store.Config{
		TablePrefix: fmt.Sprintf("cookhouse-e2e-%s-", testID),
		NumShards:   2,
	}
	tableSpecs = append(forum.Tables(), identity.Tables()...)

	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Table prefix: %s\n", storeConfig.TablePrefix)

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if profile := os.Getenv("COOKHOUSE_E2E_PROFILE"); profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	ddbClient = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if ep := os.Getenv("COOKHOUSE_E2E_ENDPOINT"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
	})

	fmt.Println("Creating test tables...")
	if err := store.CreateTables(ctx, ddbClient, storeConfig, tableSpecs, 2*time.Minute); err != nil {
		fmt.Printf("Failed to create tables: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("All tables created and active")

	testStore = store.NewWithRegistry(ddbClient, storeConfig, forum.NewRegistry())
	svc = forum.NewService(testStore, slog.New(slog.NewTextHandler(io.Discard, nil)))

	code := m.Run()

	fmt.Println("Deleting test tables...")
	if err := store.DeleteTables(ctx, ddbClient, storeConfig, tableSpecs); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	os.Exit(code)
}

func newPost(author, title string) forum.NewPost {
	return forum.NewPost{
		Author:   author,
		Title:    title,
		Content:  "Simmer slowly for an hour, then season to taste.",
		Category: forum.CategorySoups,
		Tags:     []string{"slow"},
	}
}

func createUser(t *testing.T, handle string) {
	t.Helper()
	ctx := context.Background()
	uid := uuid.NewString()
	if err := svc.CreateUserHandle(ctx, handle, uid, handle+"@example.com"); err != nil {
		t.Fatalf("CreateUserHandle: %v", err)
	}
}

// --- Store Tests ---

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	path := store.JoinPath("users", "e2e-"+uuid.NewString()[:8])

	if err := testStore.Set(ctx, path, map[string]any{"handle": "x", "likedPosts": map[string]bool{}}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	snap, err := testStore.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !snap.Exists() || !snap.Child("handle").Exists() {
		t.Fatal("expected record to exist")
	}

	if err := testStore.Remove(ctx, path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	snap, err = testStore.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get after remove failed: %v", err)
	}
	if snap.Exists() {
		t.Error("expected soft-deleted record to be hidden")
	}

	// Removing twice is a no-op
	if err := testStore.Remove(ctx, path); err != nil {
		t.Errorf("second Remove failed: %v", err)
	}
}

func TestStore_NestedWriteOnMissingRecord(t *testing.T) {
	ctx := context.Background()
	err := testStore.Set(ctx, store.JoinPath("posts", "missing-"+testID, "title"), "x")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_CreateConflict(t *testing.T) {
	ctx := context.Background()
	path := store.JoinPath("accounts", "e2e-"+testID)

	if err := testStore.Create(ctx, path, map[string]any{"uid": "u1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := testStore.Create(ctx, path, map[string]any{"uid": "u2"}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

// --- Forum Tests ---

func TestForum_PostLifecycle(t *testing.T) {
	ctx := context.Background()
	author := "author-" + testID
	createUser(t, author)

	id, err := svc.CreatePost(ctx, newPost(author, "Slow cooked lentil soup"))
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	post, err := svc.GetPostByID(ctx, id)
	if err != nil {
		t.Fatalf("GetPostByID failed: %v", err)
	}
	if post.ID != id || post.Author != author {
		t.Errorf("unexpected post %+v", post)
	}

	posts, err := svc.GetPostsByUserHandle(ctx, author)
	if err != nil {
		t.Fatalf("GetPostsByUserHandle failed: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != id {
		t.Errorf("expected the author's post, got %+v", posts)
	}

	if err := svc.DeletePost(ctx, id); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	if _, err := svc.GetPostByID(ctx, id); !errors.Is(err, forum.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestForum_ToggleLikeIsMirrored(t *testing.T) {
	ctx := context.Background()
	reader := "reader-" + testID
	createUser(t, reader)

	id, err := svc.CreatePost(ctx, newPost("someone", "Chilled cucumber soup"))
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	if r, err := svc.ToggleDislike(ctx, reader, id); err != nil || r != forum.ReactionDislike {
		t.Fatalf("ToggleDislike: %v, %v", r, err)
	}
	// Switching to a like clears the dislike in the same transaction
	if r, err := svc.ToggleLike(ctx, reader, id); err != nil || r != forum.ReactionLike {
		t.Fatalf("ToggleLike: %v, %v", r, err)
	}

	post, _ := svc.GetPostByID(ctx, id)
	if post.Reaction(reader) != forum.ReactionLike || len(post.DislikedBy) != 0 {
		t.Errorf("unexpected post reactions %+v / %+v", post.LikedBy, post.DislikedBy)
	}
	user, _ := svc.GetUserByHandle(ctx, reader)
	if !user.LikedPosts[id] || user.DislikedPosts[id] {
		t.Errorf("unexpected user reactions %+v / %+v", user.LikedPosts, user.DislikedPosts)
	}
}

func TestForum_LikeMissingPost(t *testing.T) {
	ctx := context.Background()
	reader := "ghost-" + testID
	createUser(t, reader)

	err := svc.LikePost(ctx, reader, "missing-"+testID)
	if !errors.Is(err, forum.ErrStoreWrite) {
		t.Errorf("expected ErrStoreWrite, got %v", err)
	}
	user, _ := svc.GetUserByHandle(ctx, reader)
	if len(user.LikedPosts) != 0 {
		t.Errorf("expected no half-applied like, got %v", user.LikedPosts)
	}
}

func TestForum_RecentPostsAcrossShards(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.CreatePost(ctx, newPost("feed", fmt.Sprintf("Recent post number %d", i))); err != nil {
			t.Fatalf("CreatePost failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	posts, err := svc.GetRecentPosts(ctx)
	if err != nil {
		t.Fatalf("GetRecentPosts failed: %v", err)
	}
	if len(posts) < 3 {
		t.Fatalf("expected at least 3 posts, got %d", len(posts))
	}
	for i := 1; i < len(posts); i++ {
		if posts[i].CreatedOn > posts[i-1].CreatedOn {
			t.Errorf("expected newest first at %d: %s > %s", i, posts[i].CreatedOn, posts[i-1].CreatedOn)
		}
	}
}

func TestForum_GetUserData(t *testing.T) {
	ctx := context.Background()
	handle := "uid-" + testID
	uid := uuid.NewString()
	if err := svc.CreateUserHandle(ctx, handle, uid, handle+"@example.com"); err != nil {
		t.Fatalf("CreateUserHandle failed: %v", err)
	}

	users, err := svc.GetUserData(ctx, uid)
	if err != nil {
		t.Fatalf("GetUserData failed: %v", err)
	}
	if _, ok := users[handle]; !ok || len(users) != 1 {
		t.Errorf("expected %s, got %v", handle, users)
	}
}
