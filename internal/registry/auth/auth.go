package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/database"
)

// Errors surfaced by the authenticator.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// HashToken returns the stored form of an opaque bearer token. Only the
// SHA-256 hex digest is ever persisted or compared.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewToken mints a fresh opaque token string.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return "chk_" + hex.EncodeToString(buf), nil
}

// ParseBearer extracts the opaque token from an Authorization header.
// Returns "" when the header is absent or not a bearer scheme.
func ParseBearer(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Session is the authenticated principal attached to a request context.
type Session struct {
	User      *models.User
	TokenHash string
}

type sessionKey struct{}

// WithSession attaches a session to the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session on the context, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Authenticator resolves bearer tokens to users.
type Authenticator struct {
	db database.Database
}

// NewAuthenticator creates an Authenticator backed by the given database.
func NewAuthenticator(db database.Database) *Authenticator {
	return &Authenticator{db: db}
}

// Authenticate resolves a raw bearer token to a session. A missing token
// yields (nil, nil): anonymous access is legal on read endpoints.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string) (*Session, error) {
	if rawToken == "" {
		return nil, nil
	}

	hash := HashToken(rawToken)
	token, err := a.db.GetTokenByHash(ctx, nil, hash)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if token.RevokedAt != nil {
		return nil, ErrUnauthorized
	}

	user, err := a.db.GetUser(ctx, nil, token.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up token user: %w", err)
	}
	if user.DeletedAt != nil {
		return nil, ErrUnauthorized
	}

	return &Session{User: user, TokenHash: hash}, nil
}

// RequireUser returns the session user or ErrUnauthorized.
func RequireUser(ctx context.Context) (*models.User, error) {
	s := SessionFrom(ctx)
	if s == nil || s.User == nil {
		return nil, ErrUnauthorized
	}
	return s.User, nil
}

// RequireModerator returns the session user when it holds moderator or
// admin powers.
func RequireModerator(ctx context.Context) (*models.User, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsModerator() {
		return nil, ErrForbidden
	}
	return user, nil
}

// RequireAdmin returns the session user when it holds admin powers.
func RequireAdmin(ctx context.Context) (*models.User, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrForbidden
	}
	return user, nil
}
