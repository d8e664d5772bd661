package forum

import (
	"context"
	"errors"

	"github.com/jacentio/cookhouse/store"
)

// AddComment appends a comment to a post and returns its key.
func (s *Service) AddComment(ctx context.Context, postID, content, handle string) (string, error) {
	c := Comment{
		Content:    content,
		UserHandle: handle,
		Timestamp:  s.timestamp(),
		Replies:    map[string]Reply{},
		Likes:      map[string]bool{},
	}
	id, err := s.store.Push(ctx, postPath(postID, "comments"), c)
	if err != nil {
		return "", s.fail(ctx, "AddComment", ErrStoreWrite, "Unable to add comment.", err, "postId", postID)
	}
	s.logger.DebugContext(ctx, "comment added", "postId", postID, "commentId", id)
	return id, nil
}

// GetComments returns a post's comments in key order, which is creation
// order. A missing post has no comments.
func (s *Service) GetComments(ctx context.Context, postID string) ([]Comment, error) {
	const op, msg = "GetComments", "Unable to fetch comments."

	snap, err := s.store.Get(ctx, postPath(postID, "comments"))
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "postId", postID)
	}

	comments := make([]Comment, 0, snap.NumChildren())
	for _, child := range snap.Children() {
		var c Comment
		if err := child.Decode(&c); err != nil {
			return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "postId", postID)
		}
		c.ID = child.Key()
		comments = append(comments, c)
	}
	return comments, nil
}

// DeleteComment removes a comment with its replies and likes.
func (s *Service) DeleteComment(ctx context.Context, postID, commentID string) error {
	if err := s.store.Remove(ctx, commentPath(postID, commentID)); err != nil {
		return s.fail(ctx, "DeleteComment", ErrStoreWrite, "Failed to delete comment.", err,
			"postId", postID, "commentId", commentID)
	}
	return nil
}

// AddReply appends a reply to a comment and returns its key.
func (s *Service) AddReply(ctx context.Context, postID, commentID, content, handle string) (string, error) {
	r := Reply{
		Content:    content,
		UserHandle: handle,
		Timestamp:  s.timestamp(),
	}
	id, err := s.store.Push(ctx, commentPath(postID, commentID, "replies"), r)
	if err != nil {
		return "", s.fail(ctx, "AddReply", ErrStoreWrite, "Unable to add reply.", err,
			"postId", postID, "commentId", commentID)
	}
	return id, nil
}

// GetReplies returns a comment's replies in creation order.
func (s *Service) GetReplies(ctx context.Context, postID, commentID string) ([]Reply, error) {
	const op, msg = "GetReplies", "Unable to fetch replies."

	snap, err := s.store.Get(ctx, commentPath(postID, commentID, "replies"))
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "postId", postID, "commentId", commentID)
	}

	replies := make([]Reply, 0, snap.NumChildren())
	for _, child := range snap.Children() {
		var r Reply
		if err := child.Decode(&r); err != nil {
			return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "postId", postID, "commentId", commentID)
		}
		r.ID = child.Key()
		replies = append(replies, r)
	}
	return replies, nil
}

// DeleteReply removes one reply.
func (s *Service) DeleteReply(ctx context.Context, postID, commentID, replyID string) error {
	if err := s.store.Remove(ctx, commentPath(postID, commentID, "replies", replyID)); err != nil {
		return s.fail(ctx, "DeleteReply", ErrStoreWrite, "Failed to delete reply.", err,
			"postId", postID, "commentId", commentID, "replyId", replyID)
	}
	return nil
}

// LikeComment records handle's like on a comment. Comment likes are not mirrored.
func (s *Service) LikeComment(ctx context.Context, postID, commentID, handle string) error {
	if err := s.store.Set(ctx, commentPath(postID, commentID, "likes", handle), true); err != nil {
		return s.fail(ctx, "LikeComment", ErrStoreWrite, "Unable to like comment.", err,
			"postId", postID, "commentId", commentID, "handle", handle)
	}
	return nil
}

// UnlikeComment removes handle's like from a comment.
func (s *Service) UnlikeComment(ctx context.Context, postID, commentID, handle string) error {
	if err := s.store.Remove(ctx, commentPath(postID, commentID, "likes", handle)); err != nil {
		return s.fail(ctx, "UnlikeComment", ErrStoreWrite, "Unable to unlike comment.", err,
			"postId", postID, "commentId", commentID, "handle", handle)
	}
	return nil
}

// GetCommentLikes returns the handles that like a comment, each mapped to true.
func (s *Service) GetCommentLikes(ctx context.Context, postID, commentID string) (map[string]bool, error) {
	const op, msg = "GetCommentLikes", "Unable to fetch comment likes."

	snap, err := s.store.Get(ctx, commentPath(postID, commentID, "likes"))
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "postId", postID, "commentId", commentID)
	}

	likes := map[string]bool{}
	if err := snap.Decode(&likes); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "postId", postID, "commentId", commentID)
	}
	return likes, nil
}
