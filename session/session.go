// Package session tracks who is using the forum and what they may do.
//
// A Session moves through a fixed lifecycle:
//
//	anonymous -> authenticated -> active | blocked -> signed-out
//
// A session is authenticated once its token checks out, and becomes active
// or blocked once the member's user record is loaded. Blocked members can
// still read but can't contribute. Admin rights are never taken from the
// session itself; the Manager re-reads the user record before admin actions.
package session

import (
	"errors"

	"github.com/jacentio/cookhouse/forum"
	"github.com/jacentio/cookhouse/identity"
)

var (
	// ErrUnauthenticated is returned when an operation needs a signed-in member.
	ErrUnauthenticated = errors.New("cookhouse/session: not signed in")

	// ErrBlocked is returned when a blocked member tries to contribute.
	ErrBlocked = errors.New("cookhouse/session: account is blocked")

	// ErrForbidden is returned when a non-admin attempts an admin action.
	ErrForbidden = errors.New("cookhouse/session: admin rights required")

	// ErrHandleTaken is returned when registering a handle that already exists.
	ErrHandleTaken = errors.New("cookhouse/session: handle already taken")

	// ErrSignedOut is returned when a signed-out session is used.
	ErrSignedOut = errors.New("cookhouse/session: session signed out")
)

// State is a point in the session lifecycle.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateActive
	StateBlocked
	StateSignedOut
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateBlocked:
		return "blocked"
	case StateSignedOut:
		return "signed-out"
	}
	return "anonymous"
}

// Session is one member's signed-in state.
type Session struct {
	State State
	Token identity.Token
	User  forum.User
}

// Anonymous returns a session for a visitor who hasn't signed in.
func Anonymous() *Session {
	return &Session{State: StateAnonymous}
}

// Handle returns the member's handle, or "" before the user record is loaded.
func (s *Session) Handle() string {
	if s == nil {
		return ""
	}
	return s.User.Handle
}

// RequireUser returns nil when the session belongs to a loaded member,
// blocked or not. Reading member-only pages needs this.
func (s *Session) RequireUser() error {
	if s == nil {
		return ErrUnauthenticated
	}
	switch s.State {
	case StateActive, StateBlocked:
		return nil
	case StateSignedOut:
		return ErrSignedOut
	}
	return ErrUnauthenticated
}

// RequireActive returns nil when the member may contribute: create posts,
// comment, react or edit their profile.
func (s *Session) RequireActive() error {
	if err := s.RequireUser(); err != nil {
		return err
	}
	if s.State == StateBlocked {
		return ErrBlocked
	}
	return nil
}

// settle moves an authenticated session to active or blocked.
func (s *Session) settle(u forum.User) {
	s.User = u
	if u.IsBlocked {
		s.State = StateBlocked
		return
	}
	s.State = StateActive
}
