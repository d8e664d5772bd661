// Package identity is the forum's identity provider. It creates
// email/password accounts, authenticates them into signed session tokens,
// and invalidates sessions.
//
// Accounts live at "accounts/{email}" and sessions at "sessions/{tokenId}"
// in the same document store as the forum. A token is valid while its
// signature checks out, it hasn't expired, and its session record exists.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jacentio/cookhouse/store"
)

var (
	// ErrEmailInUse is returned when an account already exists for the email.
	ErrEmailInUse = errors.New("cookhouse/identity: email already in use")

	// ErrInvalidCredentials is returned when email and password don't match an account.
	ErrInvalidCredentials = errors.New("cookhouse/identity: invalid credentials")

	// ErrInvalidToken is returned for malformed, expired or revoked tokens.
	ErrInvalidToken = errors.New("cookhouse/identity: invalid token")
)

const (
	accountsCollection = "accounts"
	sessionsCollection = "sessions"
)

// Tables describes the tables the provider's collections need.
func Tables() []store.TableSpec {
	return []store.TableSpec{
		{Collection: accountsCollection},
		{Collection: sessionsCollection},
	}
}

// Store is the store operation set the provider needs.
type Store interface {
	Get(ctx context.Context, path string) (*store.Snapshot, error)
	Create(ctx context.Context, path string, value any) error
	Remove(ctx context.Context, path string) error
}

// Config holds provider settings.
type Config struct {
	// Secret signs session tokens (HS256). Required.
	Secret string

	// TokenTTL is how long a session token stays valid.
	// Default: 24h
	TokenTTL time.Duration

	// BcryptCost is the password hashing cost.
	// Default: bcrypt.DefaultCost
	BcryptCost int
}

// Account is a registered credential.
type Account struct {
	UID       string `dynamodbav:"uid"`
	Email     string `dynamodbav:"email"`
	CreatedOn string `dynamodbav:"createdOn"`
}

type accountRecord struct {
	Account
	PasswordHash string `dynamodbav:"passwordHash"`
}

type sessionRecord struct {
	UID       string `dynamodbav:"uid"`
	ExpiresAt int64  `dynamodbav:"expiresAt"`
}

// Claims are the session token claims. Subject is the uid, ID the session id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Token is an issued session token.
type Token struct {
	UID       string
	Email     string
	SessionID string
	Value     string
	ExpiresAt time.Time
}

// Provider implements account creation, authentication and sessions.
type Provider struct {
	store  Store
	secret []byte
	ttl    time.Duration
	cost   int
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Provider.
func New(s Store, cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Provider{
		store:  s,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		cost:   cfg.BcryptCost,
		logger: logger,
		now:    time.Now,
	}
}

// accountPath keys accounts by normalized email.
func accountPath(email string) string {
	return store.JoinPath(accountsCollection, url.PathEscape(normalizeEmail(email)))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers email with password and returns the new account.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	rec := accountRecord{
		Account: Account{
			UID:       uuid.NewString(),
			Email:     normalizeEmail(email),
			CreatedOn: p.now().UTC().Format(time.RFC3339),
		},
		PasswordHash: string(hash),
	}
	if err := p.store.Create(ctx, accountPath(email), rec); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return Account{}, ErrEmailInUse
		}
		return Account{}, fmt.Errorf("create account: %w", err)
	}

	p.logger.InfoContext(ctx, "account created", "uid", rec.UID)
	return rec.Account, nil
}

// Authenticate checks email and password and opens a session.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (Token, error) {
	snap, err := p.store.Get(ctx, accountPath(email))
	if err != nil {
		return Token{}, fmt.Errorf("read account: %w", err)
	}
	var rec accountRecord
	if err := snap.Decode(&rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, fmt.Errorf("decode account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}

	return p.issue(ctx, rec.Account)
}

// issue signs a token and records its session.
func (p *Provider) issue(ctx context.Context, acct Account) (Token, error) {
	now := p.now()
	tok := Token{
		UID:       acct.UID,
		Email:     acct.Email,
		SessionID: uuid.NewString(),
		ExpiresAt: now.Add(p.ttl),
	}

	claims := Claims{
		Email: acct.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tok.SessionID,
			Subject:   acct.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	tok.Value = signed

	session := sessionRecord{UID: acct.UID, ExpiresAt: tok.ExpiresAt.Unix()}
	if err := p.store.Create(ctx, store.JoinPath(sessionsCollection, tok.SessionID), session); err != nil {
		return Token{}, fmt.Errorf("record session: %w", err)
	}
	return tok, nil
}

// Verify checks a token and returns its claims.
func (p *Provider) Verify(ctx context.Context, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	snap, err := p.store.Get(ctx, store.JoinPath(sessionsCollection, claims.ID))
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !snap.Exists() {
		return nil, fmt.Errorf("%w: session ended", ErrInvalidToken)
	}
	return claims, nil
}

// Refresh exchanges a valid token for a new one and ends the old session.
func (p *Provider) Refresh(ctx context.Context, token string) (Token, error) {
	claims, err := p.Verify(ctx, token)
	if err != nil {
		return Token{}, err
	}
	next, err := p.issue(ctx, Account{UID: claims.Subject, Email: claims.Email})
	if err != nil {
		return Token{}, err
	}
	if err := p.store.Remove(ctx, store.JoinPath(sessionsCollection, claims.ID)); err != nil {
		p.logger.WarnContext(ctx, "failed to end refreshed session", "sessionId", claims.ID, "error", err)
	}
	return next, nil
}

// InvalidateSession ends the session a token belongs to. Tokens that are
// already invalid are ignored.
func (p *Provider) InvalidateSession(ctx context.Context, token string) error {
	claims, err := p.Verify(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.store.Remove(ctx, store.JoinPath(sessionsCollection, claims.ID)); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	p.logger.InfoContext(ctx, "session ended", "uid", claims.Subject, "sessionId", claims.ID)
	return nil
}
