// Package auth signs dashboard users in and out and tracks how long their sessions live.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"attendance-dashboard-backend/internal/model"
	"attendance-dashboard-backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")
)

// Claims represents the JWT claims. The registered ID (jti) is the session ID.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// SessionID returns the session the token belongs to.
func (c *Claims) SessionID() string {
	return c.ID
}

// Token is handed to the client after a successful login.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	WarnAt    time.Time `json:"warn_at"`
}

// SessionStatus tells the client how long it has left.
type SessionStatus struct {
	ExpiresAt        time.Time `json:"expires_at"`
	WarnAt           time.Time `json:"warn_at"`
	Warning          bool      `json:"warning"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

// Options configures a Manager.
type Options struct {
	Secret      []byte
	SessionTTL  time.Duration
	WarningLead time.Duration
}

// Manager issues and checks session tokens.
type Manager struct {
	accounts store.AccountStore
	opts     Options
	now      func() time.Time
}

// NewManager creates a Manager backed by the given account store.
func NewManager(accounts store.AccountStore, opts Options) (*Manager, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("auth: jwt secret is empty")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.WarningLead <= 0 || opts.WarningLead >= opts.SessionTTL {
		opts.WarningLead = 30 * time.Second
	}
	return &Manager{accounts: accounts, opts: opts, now: time.Now}, nil
}

func (m *Manager) clock() time.Time {
	return m.now().UTC().Truncate(time.Second)
}

// Login checks the password and opens a new session.
func (m *Manager) Login(ctx context.Context, email, password string) (Token, error) {
	user, err := m.accounts.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return Token{}, ErrInvalidCredentials
	}

	now := m.clock()
	session := &model.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.opts.SessionTTL),
		WarnAt:    now.Add(m.opts.SessionTTL - m.opts.WarningLead),
	}
	if err := m.accounts.CreateSession(ctx, session); err != nil {
		return Token{}, err
	}

	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.opts.Secret)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return Token{Token: signed, ExpiresAt: session.ExpiresAt, WarnAt: session.WarnAt}, nil
}

// Authenticate verifies a bearer token and that its session is still open.
func (m *Manager) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return m.opts.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidToken
	}
	if claims.SessionID() == "" {
		return nil, ErrInvalidToken
	}

	if _, err := m.liveSession(ctx, claims.SessionID()); err != nil {
		return nil, err
	}
	return claims, nil
}

// Logout revokes a session. Revoking an already closed session is not an error.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	return m.accounts.RevokeSession(ctx, sessionID, m.clock())
}

// Status reports when the session expires and whether the expiry warning is due.
func (m *Manager) Status(ctx context.Context, sessionID string) (SessionStatus, error) {
	session, err := m.liveSession(ctx, sessionID)
	if err != nil {
		return SessionStatus{}, err
	}
	now := m.now().UTC()
	return SessionStatus{
		ExpiresAt:        session.ExpiresAt.UTC(),
		WarnAt:           session.WarnAt.UTC(),
		Warning:          !now.Before(session.WarnAt),
		RemainingSeconds: int64(session.ExpiresAt.Sub(now) / time.Second),
	}, nil
}

func (m *Manager) liveSession(ctx context.Context, id string) (*model.Session, error) {
	session, err := m.accounts.FindSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if session.RevokedAt != nil || !m.now().Before(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return session, nil
}
