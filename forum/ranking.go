package forum

import (
	"context"
	"sort"
	"time"
)

// GetTopCommentedPosts returns up to TopLimit posts with the most comments.
// Posts with equal counts keep their key order.
func (s *Service) GetTopCommentedPosts(ctx context.Context) ([]Post, error) {
	posts, err := s.allPosts(ctx, "GetTopCommentedPosts", "Unable to fetch top commented posts.")
	if err != nil {
		return nil, err
	}
	return topBy(posts, Post.CommentCount), nil
}

// GetTopLikedPosts returns up to TopLimit posts with the most likes.
func (s *Service) GetTopLikedPosts(ctx context.Context) ([]Post, error) {
	posts, err := s.allPosts(ctx, "GetTopLikedPosts", "Unable to fetch top liked posts.")
	if err != nil {
		return nil, err
	}
	return topBy(posts, Post.LikeCount), nil
}

// GetRecentPosts returns the TopLimit newest posts, newest first.
func (s *Service) GetRecentPosts(ctx context.Context) ([]Post, error) {
	const op, msg = "GetRecentPosts", "Unable to fetch recent posts."

	snap, err := s.store.QueryLast(ctx, postsCollection, "createdOn", TopLimit)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err)
	}
	posts, err := decodePosts(snap)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err)
	}

	// The index orders createdOn as strings; order by the parsed time.
	sort.SliceStable(posts, func(i, j int) bool {
		return createdAt(posts[i]).After(createdAt(posts[j]))
	})
	return posts, nil
}

func (s *Service) allPosts(ctx context.Context, op, msg string) ([]Post, error) {
	snap, err := s.store.Get(ctx, postsCollection)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err)
	}
	posts, err := decodePosts(snap)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err)
	}
	return posts, nil
}

// topBy sorts posts by score descending, stable, and keeps TopLimit.
func topBy(posts []Post, score func(Post) int) []Post {
	sort.SliceStable(posts, func(i, j int) bool {
		return score(posts[i]) > score(posts[j])
	})
	if len(posts) > TopLimit {
		posts = posts[:TopLimit]
	}
	return posts
}

// createdAt parses a post's createdOn. Unparseable values sort as oldest.
func createdAt(p Post) time.Time {
	t, err := time.Parse(time.RFC3339, p.CreatedOn)
	if err != nil {
		return time.Time{}
	}
	return t
}
