package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jacentio/cookhouse/forum"
	"github.com/jacentio/cookhouse/identity"
	"github.com/jacentio/cookhouse/store/memstore"
	"github.com/jacentio/cookhouse/validate"
)

type fixture struct {
	manager *Manager
	forum   *forum.Service
	ids     *identity.Provider
}

func newFixture() fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms := memstore.New()
	f := forum.NewService(ms, logger)
	ids := identity.New(ms, identity.Config{Secret: "test", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}, logger)
	return fixture{manager: NewManager(ids, f, Config{}, logger), forum: f, ids: ids}
}

func registration(first, email string) validate.Registration {
	return validate.Registration{FirstName: first, LastName: "Cooke", Email: email, Password: "s3cret-pass"}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateAnonymous, "anonymous"},
		{StateAuthenticated, "authenticated"},
		{StateActive, "active"},
		{StateBlocked, "blocked"},
		{StateSignedOut, "signed-out"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestSession_Require(t *testing.T) {
	tests := []struct {
		state     State
		userErr   error
		activeErr error
	}{
		{StateAnonymous, ErrUnauthenticated, ErrUnauthenticated},
		{StateAuthenticated, ErrUnauthenticated, ErrUnauthenticated},
		{StateActive, nil, nil},
		{StateBlocked, nil, ErrBlocked},
		{StateSignedOut, ErrSignedOut, ErrSignedOut},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			s := &Session{State: tt.state}
			if err := s.RequireUser(); !errors.Is(err, tt.userErr) {
				t.Errorf("RequireUser: expected %v, got %v", tt.userErr, err)
			}
			if err := s.RequireActive(); !errors.Is(err, tt.activeErr) {
				t.Errorf("RequireActive: expected %v, got %v", tt.activeErr, err)
			}
		})
	}

	var nilSession *Session
	if err := nilSession.RequireActive(); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("nil session: expected ErrUnauthenticated, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	s, err := fx.manager.Register(ctx, registration("Julia", "julia@example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateActive || s.Handle() != "Julia" || s.Token.Value == "" {
		t.Errorf("unexpected session %+v", s)
	}

	u, err := fx.forum.GetUserByHandle(ctx, "Julia")
	if err != nil {
		t.Fatalf("GetUserByHandle: %v", err)
	}
	if u.UID != s.Token.UID || u.LastName != "Cooke" || u.IsAdmin {
		t.Errorf("unexpected user record %+v", u)
	}
	if u.CreatedOn == "" {
		t.Error("expected createdOn")
	}
}

func TestRegister_Admin(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	s, err := fx.manager.Register(ctx, registration("Boss", "boss@ADMIN.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.User.IsAdmin {
		t.Error("expected admin from email suffix")
	}
}

func TestRegister_Rejects(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	if _, err := fx.manager.Register(ctx, registration("Julia", "julia@example.com")); err != nil {
		t.Fatalf("first register: %v", err)
	}

	if _, err := fx.manager.Register(ctx, registration("Julia", "other@example.com")); !errors.Is(err, ErrHandleTaken) {
		t.Errorf("expected ErrHandleTaken, got %v", err)
	}
	if _, err := fx.manager.Register(ctx, registration("Jacques", "julia@example.com")); !errors.Is(err, identity.ErrEmailInUse) {
		t.Errorf("expected ErrEmailInUse, got %v", err)
	}

	var verr *validate.ValidationError
	if _, err := fx.manager.Register(ctx, registration("Al", "al@example.com")); !errors.As(err, &verr) {
		t.Errorf("expected *ValidationError, got %v", err)
	}
	long := registration("Marcella", "marcella@example.com")
	long.Password = strings.Repeat("p", 80)
	if _, err := fx.manager.Register(ctx, long); !errors.As(err, &verr) || !verr.Has("password") {
		t.Errorf("expected password *ValidationError, got %v", err)
	}
	if _, err := fx.forum.GetUserByHandle(ctx, "Jacques"); !errors.Is(err, forum.ErrNotFound) {
		t.Errorf("expected no record for the rejected handle, got %v", err)
	}
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	fx.manager.Register(ctx, registration("Julia", "julia@example.com"))

	s, err := fx.manager.SignIn(ctx, "julia@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateActive || s.Handle() != "Julia" {
		t.Errorf("unexpected session %+v", s)
	}

	if _, err := fx.manager.SignIn(ctx, "julia@example.com", "wrong"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := fx.manager.SignIn(ctx, "", ""); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignIn_Blocked(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	fx.manager.Register(ctx, registration("Julia", "julia@example.com"))
	fx.forum.ToggleUserBlockStatus(ctx, "Julia", true)

	s, err := fx.manager.SignIn(ctx, "julia@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateBlocked {
		t.Errorf("expected blocked, got %v", s.State)
	}
	if err := s.RequireActive(); !errors.Is(err, ErrBlocked) {
		t.Errorf("expected ErrBlocked, got %v", err)
	}
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	reg, _ := fx.manager.Register(ctx, registration("Julia", "julia@example.com"))

	s, err := fx.manager.Resume(ctx, reg.Token.Value)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateActive || s.Token.SessionID != reg.Token.SessionID {
		t.Errorf("unexpected session %+v", s)
	}

	if _, err := fx.manager.Resume(ctx, "garbage"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRefresh_PicksUpBlock(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	s, _ := fx.manager.Register(ctx, registration("Julia", "julia@example.com"))
	old := s.Token.Value

	fx.forum.ToggleUserBlockStatus(ctx, "Julia", true)
	if err := fx.manager.Refresh(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateBlocked {
		t.Errorf("expected blocked after refresh, got %v", s.State)
	}
	if s.Token.Value == old {
		t.Error("expected a new token")
	}
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	s, _ := fx.manager.Register(ctx, registration("Julia", "julia@example.com"))
	token := s.Token.Value

	if err := fx.manager.SignOut(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateSignedOut {
		t.Errorf("expected signed-out, got %v", s.State)
	}
	if err := s.RequireActive(); !errors.Is(err, ErrSignedOut) {
		t.Errorf("expected ErrSignedOut, got %v", err)
	}
	if _, err := fx.manager.Resume(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected old token rejected, got %v", err)
	}
	if err := fx.manager.SignOut(ctx, s); err != nil {
		t.Errorf("expected second sign out to be a no-op, got %v", err)
	}
}

func TestSetUserBlocked(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	admin, _ := fx.manager.Register(ctx, registration("Boss", "boss@admin.com"))
	member, _ := fx.manager.Register(ctx, registration("Julia", "julia@example.com"))

	if err := fx.manager.SetUserBlocked(ctx, member, "Boss", true); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-admin, got %v", err)
	}

	if err := fx.manager.SetUserBlocked(ctx, admin, "Julia", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ := fx.forum.GetUserByHandle(ctx, "Julia")
	if !u.IsBlocked {
		t.Error("expected Julia blocked")
	}
}

func TestSetUserBlocked_RereadsAdminFlag(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	member, _ := fx.manager.Register(ctx, registration("Julia", "julia@example.com"))
	fx.manager.Register(ctx, registration("Jacques", "jacques@example.com"))

	// A tampered session claims admin rights the store doesn't grant.
	member.User.IsAdmin = true
	if err := fx.manager.SetUserBlocked(ctx, member, "Jacques", true); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	if err := fx.manager.SetUserBlocked(ctx, Anonymous(), "Jacques", true); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
