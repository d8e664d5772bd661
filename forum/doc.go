// Package forum is the data access layer of the cookhouse forum.
//
// It reads and mutates posts, comments, replies, users and the like/dislike
// relations against a path-addressed [DataStore] (package store, or
// store/memstore in tests):
//
//	posts/{id}
//	posts/{id}/comments/{commentId}
//	posts/{id}/comments/{commentId}/replies/{replyId}
//	users/{handle}
//
// # Denormalized reactions
//
// A like is stored twice: under the post ("likedBy/{handle}") and under the
// user ("likedPosts/{postId}"). Both paths are written by one multi-path
// update built from the [Likes] and [Dislikes] mirrors, so they change
// together. [Service.ToggleLike] and [Service.ToggleDislike] read the current
// membership from the store and submit the like and the matching undislike
// (or the reverse) as a single update, so a handle is never in both sets.
//
// # Errors
//
// Every operation logs the underlying failure and returns an [*Error] whose
// message is fixed and human-readable. Match on its kind:
//
//	if errors.Is(err, forum.ErrNotFound) { ... }
package forum
