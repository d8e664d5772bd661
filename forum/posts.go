package forum

import (
	"context"
	"strings"

	"github.com/jacentio/cookhouse/store"
)

// CreatePost inserts a post and returns its id. The store assigns the id on
// insert; a second write stamps it into the record. A failure of the second
// write leaves the inserted post without an id field.
func (s *Service) CreatePost(ctx context.Context, in NewPost) (string, error) {
	const op, msg = "CreatePost", "Failed to create post."

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	rec := postRecord{
		Author:     in.Author,
		Title:      in.Title,
		Content:    in.Content,
		Category:   in.Category,
		Tags:       tags,
		ImageURL:   in.ImageURL,
		CreatedOn:  s.timestamp(),
		LikedBy:    map[string]bool{},
		DislikedBy: map[string]bool{},
		Comments:   map[string]Comment{},
	}

	id, err := s.store.Push(ctx, postsCollection, rec)
	if err != nil {
		return "", s.fail(ctx, op, ErrStoreWrite, msg, err)
	}
	if err := s.store.Update(ctx, map[string]any{postPath(id, "id"): id}); err != nil {
		return "", s.fail(ctx, op, ErrStoreWrite, msg, err, "postId", id)
	}

	s.logger.DebugContext(ctx, "post created", "postId", id, "author", in.Author)
	return id, nil
}

// GetAllPosts returns every post. A non-empty search keeps posts whose title
// contains it (case-insensitive) or that carry a tag containing it.
func (s *Service) GetAllPosts(ctx context.Context, search string) ([]Post, error) {
	snap, err := s.store.Get(ctx, postsCollection)
	if err != nil {
		return nil, s.fail(ctx, "GetAllPosts", ErrStoreRead, "Unable to fetch posts.", err)
	}

	posts, err := decodePosts(snap)
	if err != nil {
		return nil, s.fail(ctx, "GetAllPosts", ErrStoreRead, "Unable to fetch posts.", err)
	}
	if search == "" {
		return posts, nil
	}
	return SearchPosts(posts, search), nil
}

// SearchPosts filters posts by title or tag.
func SearchPosts(posts []Post, search string) []Post {
	term := strings.ToLower(search)
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), term) || anyTagContains(p.Tags, term) {
			out = append(out, p)
		}
	}
	return out
}

func anyTagContains(tags []string, term string) bool {
	for _, t := range tags {
		if strings.Contains(t, term) {
			return true
		}
	}
	return false
}

// GetPostByID returns one post, or an error of kind ErrNotFound.
func (s *Service) GetPostByID(ctx context.Context, id string) (Post, error) {
	const op, msg = "GetPostByID", "Unable to fetch post."

	snap, err := s.store.Get(ctx, postPath(id))
	if err != nil {
		return Post{}, s.fail(ctx, op, ErrStoreRead, msg, err, "postId", id)
	}
	if !snap.Exists() {
		return Post{}, s.fail(ctx, op, ErrNotFound, msg, store.ErrNotFound, "postId", id)
	}

	var rec postRecord
	if err := snap.Decode(&rec); err != nil {
		return Post{}, s.fail(ctx, op, ErrStoreRead, msg, err, "postId", id)
	}
	return rec.toPost(id), nil
}

// UpdatePost overwrites the fields set in patch. Values are not validated.
func (s *Service) UpdatePost(ctx context.Context, id string, patch PostPatch) error {
	updates := map[string]any{}
	if patch.Title != nil {
		updates[postPath(id, "title")] = *patch.Title
	}
	if patch.Content != nil {
		updates[postPath(id, "content")] = *patch.Content
	}
	if patch.Category != nil {
		updates[postPath(id, "category")] = *patch.Category
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		updates[postPath(id, "tags")] = tags
	}
	if patch.ImageURL != nil {
		// An empty URL drops the image.
		var url any
		if *patch.ImageURL != "" {
			url = *patch.ImageURL
		}
		updates[postPath(id, "imageUrl")] = url
	}
	if len(updates) == 0 {
		return nil
	}

	if err := s.store.Update(ctx, updates); err != nil {
		return s.fail(ctx, "UpdatePost", ErrStoreWrite, "Failed to update post.", err, "postId", id)
	}
	s.logger.DebugContext(ctx, "post updated", "postId", id)
	return nil
}

// DeletePost removes a post together with its comments, replies and likes.
func (s *Service) DeletePost(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, postPath(id)); err != nil {
		return s.fail(ctx, "DeletePost", ErrStoreWrite, "Failed to delete post.", err, "postId", id)
	}
	s.logger.DebugContext(ctx, "post deleted", "postId", id)
	return nil
}

// GetPostsByUserHandle returns the posts written by handle.
func (s *Service) GetPostsByUserHandle(ctx context.Context, handle string) ([]Post, error) {
	const op, msg = "GetPostsByUserHandle", "Unable to fetch posts."

	snap, err := s.store.QueryEqual(ctx, postsCollection, "author", handle)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "handle", handle)
	}
	posts, err := decodePosts(snap)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "handle", handle)
	}
	return posts, nil
}

// decodePosts converts the children of a posts snapshot, in snapshot order.
func decodePosts(snap *store.Snapshot) ([]Post, error) {
	posts := make([]Post, 0, snap.NumChildren())
	for _, child := range snap.Children() {
		if !child.Exists() {
			continue
		}
		var rec postRecord
		if err := child.Decode(&rec); err != nil {
			return nil, err
		}
		posts = append(posts, rec.toPost(child.Key()))
	}
	return posts, nil
}
