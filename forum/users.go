package forum

import (
	"context"
	"sort"
	"strings"

	"github.com/jacentio/cookhouse/store"
)

// protectedFields can't be changed through UpdateUserDetails.
var protectedFields = map[string]bool{
	"handle":        true,
	"uid":           true,
	"isAdmin":       true,
	"isBlocked":     true,
	"likedPosts":    true,
	"dislikedPosts": true,
}

// CreateUserHandle reserves handle with a minimal record linking it to uid.
func (s *Service) CreateUserHandle(ctx context.Context, handle, uid, email string) error {
	u := User{
		Handle:    handle,
		UID:       uid,
		Email:     email,
		CreatedOn: s.timestamp(),
	}
	if err := s.store.Set(ctx, userPath(handle), withReactionMaps(u)); err != nil {
		return s.fail(ctx, "CreateUserHandle", ErrStoreWrite, "Unable to create user handle.", err, "handle", handle)
	}
	return nil
}

// SaveUserDetails writes the full user record, replacing whatever is stored
// under the handle.
func (s *Service) SaveUserDetails(ctx context.Context, u User) error {
	if u.CreatedOn == "" {
		u.CreatedOn = s.timestamp()
	}
	if err := s.store.Set(ctx, userPath(u.Handle), withReactionMaps(u)); err != nil {
		return s.fail(ctx, "SaveUserDetails", ErrStoreWrite, "Unable to save user details.", err, "handle", u.Handle)
	}
	s.logger.DebugContext(ctx, "user details saved", "handle", u.Handle)
	return nil
}

// withReactionMaps makes sure the mirrored reaction maps exist, so likes
// can be written below them.
func withReactionMaps(u User) User {
	if u.LikedPosts == nil {
		u.LikedPosts = map[string]bool{}
	}
	if u.DislikedPosts == nil {
		u.DislikedPosts = map[string]bool{}
	}
	return u
}

// GetUserByHandle returns the user stored under handle, or an error of kind
// ErrNotFound.
func (s *Service) GetUserByHandle(ctx context.Context, handle string) (User, error) {
	const op, msg = "GetUserByHandle", "Unable to fetch user."

	snap, err := s.store.Get(ctx, userPath(handle))
	if err != nil {
		return User{}, s.fail(ctx, op, ErrStoreRead, msg, err, "handle", handle)
	}
	var u User
	if err := snap.Decode(&u); err != nil {
		return User{}, s.fail(ctx, op, kindOf(err, ErrStoreRead), msg, err, "handle", handle)
	}
	return u, nil
}

// GetUserData looks users up by identity provider uid. The result is keyed by
// handle; no match is an error of kind ErrNotFound.
func (s *Service) GetUserData(ctx context.Context, uid string) (map[string]User, error) {
	const op, msg = "GetUserData", "Unable to fetch user data."

	snap, err := s.store.QueryEqual(ctx, usersCollection, "uid", uid)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "uid", uid)
	}
	if !snap.Exists() {
		return nil, s.fail(ctx, op, ErrNotFound, msg, store.ErrNotFound, "uid", uid)
	}
	users, err := decodeUsers(snap)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err, "uid", uid)
	}
	return users, nil
}

// GetUserDisplayName returns the user's first name, or the handle when the
// user has none or doesn't exist.
func (s *Service) GetUserDisplayName(ctx context.Context, handle string) (string, error) {
	snap, err := s.store.Get(ctx, userPath(handle, "firstName"))
	if err != nil {
		return "", s.fail(ctx, "GetUserDisplayName", ErrStoreRead, "Unable to fetch user name.", err, "handle", handle)
	}
	var first string
	if snap.Exists() {
		if err := snap.Decode(&first); err != nil {
			return "", s.fail(ctx, "GetUserDisplayName", ErrStoreRead, "Unable to fetch user name.", err, "handle", handle)
		}
	}
	return User{Handle: handle, FirstName: first}.DisplayName(), nil
}

// UpdateUserDetails sets one profile field. Identity, role and reaction
// fields are refused with ErrProtectedField.
func (s *Service) UpdateUserDetails(ctx context.Context, handle, field string, value any) error {
	const op, msg = "UpdateUserDetails", "Unable to save user details."

	top, _, _ := strings.Cut(strings.Trim(field, "/"), "/")
	if top == "" || protectedFields[top] {
		return s.fail(ctx, op, ErrProtectedField, msg, nil, "handle", handle, "field", field)
	}

	if err := s.store.Update(ctx, map[string]any{userPath(handle, field): value}); err != nil {
		return s.fail(ctx, op, ErrStoreWrite, msg, err, "handle", handle, "field", field)
	}
	return nil
}

// GetAllUsers returns every user keyed by handle. An empty collection is an
// error of kind ErrNotFound.
func (s *Service) GetAllUsers(ctx context.Context) (map[string]User, error) {
	const op, msg = "GetAllUsers", "Unable to fetch users."

	snap, err := s.store.Get(ctx, usersCollection)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err)
	}
	if !snap.Exists() {
		return nil, s.fail(ctx, op, ErrNotFound, msg, store.ErrNotFound)
	}
	users, err := decodeUsers(snap)
	if err != nil {
		return nil, s.fail(ctx, op, ErrStoreRead, msg, err)
	}
	return users, nil
}

// ToggleUserBlockStatus sets the blocked flag of a user. Callers must gate it
// behind an admin check.
func (s *Service) ToggleUserBlockStatus(ctx context.Context, handle string, blocked bool) error {
	if err := s.store.Update(ctx, map[string]any{userPath(handle, "isBlocked"): blocked}); err != nil {
		return s.fail(ctx, "ToggleUserBlockStatus", ErrStoreWrite,
			"Unable to update user block status.", err, "handle", handle)
	}
	s.logger.InfoContext(ctx, "user block status changed", "handle", handle, "blocked", blocked)
	return nil
}

// FilterUsers returns the users whose first name, last name, email or handle
// contains term, case-insensitively, ordered by handle.
func FilterUsers(users map[string]User, term string) []User {
	term = strings.ToLower(term)
	out := make([]User, 0, len(users))
	for _, u := range users {
		if term == "" ||
			strings.Contains(strings.ToLower(u.FirstName), term) ||
			strings.Contains(strings.ToLower(u.LastName), term) ||
			strings.Contains(strings.ToLower(u.Email), term) ||
			strings.Contains(strings.ToLower(u.Handle), term) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func decodeUsers(snap *store.Snapshot) (map[string]User, error) {
	users := make(map[string]User, snap.NumChildren())
	for _, child := range snap.Children() {
		var u User
		if err := child.Decode(&u); err != nil {
			return nil, err
		}
		if u.Handle == "" {
			u.Handle = child.Key()
		}
		users[child.Key()] = u
	}
	return users, nil
}
