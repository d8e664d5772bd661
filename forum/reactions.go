package forum

import (
	"context"

	"github.com/jacentio/cookhouse/store"
)

// LikePost records handle's like on both the post and the user.
func (s *Service) LikePost(ctx context.Context, handle, postID string) error {
	return s.react(ctx, "LikePost", "Unable to like post.", handle, postID, Likes.Set(postID, handle))
}

// UnlikePost removes handle's like from both sides.
func (s *Service) UnlikePost(ctx context.Context, handle, postID string) error {
	return s.react(ctx, "UnlikePost", "Unable to unlike post.", handle, postID, Likes.Clear(postID, handle))
}

// DislikePost records handle's dislike on both the post and the user.
func (s *Service) DislikePost(ctx context.Context, handle, postID string) error {
	return s.react(ctx, "DislikePost", "Unable to dislike post.", handle, postID, Dislikes.Set(postID, handle))
}

// UndislikePost removes handle's dislike from both sides.
func (s *Service) UndislikePost(ctx context.Context, handle, postID string) error {
	return s.react(ctx, "UndislikePost", "Unable to undislike post.", handle, postID, Dislikes.Clear(postID, handle))
}

// ToggleLike likes the post, or withdraws the like when handle already
// likes it. Liking also withdraws a dislike in the same update. Membership
// is read from the store, not taken from the caller.
func (s *Service) ToggleLike(ctx context.Context, handle, postID string) (Reaction, error) {
	return s.toggle(ctx, "ToggleLike", "Unable to like post.", handle, postID, ReactionLike)
}

// ToggleDislike is ToggleLike for dislikes.
func (s *Service) ToggleDislike(ctx context.Context, handle, postID string) (Reaction, error) {
	return s.toggle(ctx, "ToggleDislike", "Unable to dislike post.", handle, postID, ReactionDislike)
}

func (s *Service) toggle(ctx context.Context, op, msg, handle, postID string, want Reaction) (Reaction, error) {
	snap, err := s.store.Get(ctx, postPath(postID))
	if err != nil {
		return ReactionNone, s.fail(ctx, op, ErrStoreRead, msg, err, "postId", postID, "handle", handle)
	}
	if !snap.Exists() {
		return ReactionNone, s.fail(ctx, op, ErrNotFound, msg, store.ErrNotFound, "postId", postID, "handle", handle)
	}

	current := ReactionNone
	switch {
	case snap.Child(Likes.Field).Child(handle).Exists():
		current = ReactionLike
	case snap.Child(Dislikes.Field).Child(handle).Exists():
		current = ReactionDislike
	}

	set, drop := Likes, Dislikes
	if want == ReactionDislike {
		set, drop = Dislikes, Likes
	}

	result := want
	var updates map[string]any
	if current == want {
		updates = set.Clear(postID, handle)
		result = ReactionNone
	} else {
		updates = set.Set(postID, handle)
		for path, v := range drop.Clear(postID, handle) {
			updates[path] = v
		}
	}

	if err := s.react(ctx, op, msg, handle, postID, updates); err != nil {
		return current, err
	}
	return result, nil
}

func (s *Service) react(ctx context.Context, op, msg, handle, postID string, updates map[string]any) error {
	if err := s.store.Update(ctx, updates); err != nil {
		return s.fail(ctx, op, ErrStoreWrite, msg, err, "postId", postID, "handle", handle)
	}
	s.logger.DebugContext(ctx, "post reaction updated", "op", op, "postId", postID, "handle", handle)
	return nil
}
