package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jacentio/cookhouse/forum"
	"github.com/jacentio/cookhouse/identity"
	"github.com/jacentio/cookhouse/validate"
)

// DefaultAdminSuffix is the email suffix that grants admin rights at
// registration.
const DefaultAdminSuffix = "@admin.com"

// Accounts is the identity provider operation set the Manager needs.
type Accounts interface {
	CreateAccount(ctx context.Context, email, password string) (identity.Account, error)
	Authenticate(ctx context.Context, email, password string) (identity.Token, error)
	Verify(ctx context.Context, token string) (*identity.Claims, error)
	Refresh(ctx context.Context, token string) (identity.Token, error)
	InvalidateSession(ctx context.Context, token string) error
}

// Users is the forum operation set the Manager needs.
type Users interface {
	GetUserByHandle(ctx context.Context, handle string) (forum.User, error)
	GetUserData(ctx context.Context, uid string) (map[string]forum.User, error)
	CreateUserHandle(ctx context.Context, handle, uid, email string) error
	SaveUserDetails(ctx context.Context, u forum.User) error
	ToggleUserBlockStatus(ctx context.Context, handle string, blocked bool) error
}

// Config holds Manager settings.
type Config struct {
	// AdminSuffix marks admin emails at registration.
	// Default: "@admin.com"
	AdminSuffix string
}

// Manager runs the registration, sign-in and sign-out flows.
type Manager struct {
	accounts    Accounts
	users       Users
	adminSuffix string
	logger      *slog.Logger
}

// NewManager creates a new Manager.
func NewManager(accounts Accounts, users Users, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AdminSuffix == "" {
		cfg.AdminSuffix = DefaultAdminSuffix
	}
	return &Manager{
		accounts:    accounts,
		users:       users,
		adminSuffix: strings.ToLower(cfg.AdminSuffix),
		logger:      logger,
	}
}

// Register validates the form, creates the account and the user record, and
// returns an active session. The first name becomes the handle.
func (m *Manager) Register(ctx context.Context, form validate.Registration) (*Session, error) {
	form, err := validate.CheckRegistration(form)
	if err != nil {
		return nil, err
	}
	handle := form.Handle()

	_, err = m.users.GetUserByHandle(ctx, handle)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrHandleTaken, handle)
	case !errors.Is(err, forum.ErrNotFound):
		return nil, err
	}

	acct, err := m.accounts.CreateAccount(ctx, form.Email, form.Password)
	if err != nil {
		return nil, err
	}
	tok, err := m.accounts.Authenticate(ctx, form.Email, form.Password)
	if err != nil {
		return nil, err
	}

	if err := m.users.CreateUserHandle(ctx, handle, acct.UID, acct.Email); err != nil {
		return nil, err
	}
	u := forum.User{
		Handle:    handle,
		UID:       acct.UID,
		Email:     acct.Email,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		IsAdmin:   m.isAdminEmail(acct.Email),
	}
	if err := m.users.SaveUserDetails(ctx, u); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "member registered", "handle", handle, "uid", acct.UID, "isAdmin", u.IsAdmin)
	s := &Session{State: StateAuthenticated, Token: tok}
	s.settle(u)
	return s, nil
}

func (m *Manager) isAdminEmail(email string) bool {
	return strings.HasSuffix(strings.ToLower(email), m.adminSuffix)
}

// SignIn authenticates and loads the member's user record. Blocked members
// get a session too; its state is StateBlocked.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: no credentials provided", identity.ErrInvalidCredentials)
	}
	tok, err := m.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s := &Session{State: StateAuthenticated, Token: tok}
	if err := m.load(ctx, s); err != nil {
		return nil, err
	}
	if s.State == StateBlocked {
		m.logger.InfoContext(ctx, "blocked member signed in", "handle", s.Handle())
	}
	return s, nil
}

// Resume rebuilds a session from a token presented on a later request.
func (m *Manager) Resume(ctx context.Context, token string) (*Session, error) {
	claims, err := m.accounts.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	s := &Session{State: StateAuthenticated, Token: identity.Token{
		UID:       claims.Subject,
		Email:     claims.Email,
		SessionID: claims.ID,
		Value:     token,
	}}
	if claims.ExpiresAt != nil {
		s.Token.ExpiresAt = claims.ExpiresAt.Time
	}
	if err := m.load(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// load settles s from the user record of its uid. When a uid maps to several
// handles the lowest handle wins.
func (m *Manager) load(ctx context.Context, s *Session) error {
	users, err := m.users.GetUserData(ctx, s.Token.UID)
	if err != nil {
		return err
	}
	handles := make([]string, 0, len(users))
	for h := range users {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	s.settle(users[handles[0]])
	return nil
}

// Refresh swaps the session's token for a fresh one and reloads the user
// record, so a block or unblock takes effect.
func (m *Manager) Refresh(ctx context.Context, s *Session) error {
	if err := s.RequireUser(); err != nil {
		return err
	}
	tok, err := m.accounts.Refresh(ctx, s.Token.Value)
	if err != nil {
		return err
	}
	s.Token = tok
	return m.load(ctx, s)
}

// SignOut ends the session. Signing out twice is a no-op.
func (m *Manager) SignOut(ctx context.Context, s *Session) error {
	if s == nil || s.State == StateSignedOut || s.State == StateAnonymous {
		return nil
	}
	if err := m.accounts.InvalidateSession(ctx, s.Token.Value); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "member signed out", "handle", s.Handle())
	*s = Session{State: StateSignedOut}
	return nil
}

// SetUserBlocked blocks or unblocks handle on behalf of an admin. The acting
// member's admin flag is read from the store, not from the session.
func (m *Manager) SetUserBlocked(ctx context.Context, s *Session, handle string, blocked bool) error {
	if err := s.RequireActive(); err != nil {
		return err
	}
	actor, err := m.users.GetUserByHandle(ctx, s.Handle())
	if err != nil {
		return err
	}
	if !actor.IsAdmin || actor.IsBlocked || actor.UID != s.Token.UID {
		m.logger.WarnContext(ctx, "admin action refused", "actor", s.Handle(), "target", handle)
		return ErrForbidden
	}
	return m.users.ToggleUserBlockStatus(ctx, handle, blocked)
}
