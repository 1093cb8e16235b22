package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/viewtube/backend/internal/models"
)

const tokenIssuer = "viewtube"

var (
	// ErrInvalidToken indicates a token that failed signature or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenMismatch indicates a refresh token that no longer matches the one
	// stored for the user, i.e. it was rotated away or revoked.
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

// TokenRecordStore persists the single active refresh token per user.
type TokenRecordStore interface {
	// SetRefreshToken unconditionally replaces the stored refresh token,
	// invalidating any previously issued one.
	SetRefreshToken(ctx context.Context, userID, token string) error
	// SwapRefreshToken replaces the stored token only when it still equals
	// previous. It fails with ErrTokenMismatch otherwise.
	SwapRefreshToken(ctx context.Context, userID, previous, next string) error
	// ClearRefreshToken removes the stored token. Clearing an already-empty
	// record is not an error.
	ClearRefreshToken(ctx context.Context, userID string) error
}

// Manager issues and verifies the access/refresh token pair. Access and
// refresh tokens are signed with separate secrets so one can never stand in
// for the other.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	store TokenRecordStore

	// NowFunc overrides the time source in tests.
	NowFunc func() time.Time
}

// NewManager constructs a Manager backed by the provided token record store.
func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, store TokenRecordStore) *Manager {
	if store == nil {
		panic("auth: token record store must not be nil")
	}
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		store:         store,
	}
}

// Issue creates a new token pair for the user and persists the refresh token,
// displacing any previously active session.
func (m *Manager) Issue(ctx context.Context, userID string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("auth: user id must be provided")
	}

	pair, err := m.sign(userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := m.store.SetRefreshToken(ctx, userID, pair.RefreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return pair, nil
}

// VerifyAccess validates an access token and returns the subject user id.
func (m *Manager) VerifyAccess(token string) (string, error) {
	return m.verify(token, m.accessSecret)
}

// Refresh exchanges a refresh token for a new pair, rotating the stored token.
// A token that was already rotated away or revoked fails with
// ErrTokenMismatch even when its signature is still valid.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	userID, err := m.verify(refreshToken, m.refreshSecret)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := m.sign(userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := m.store.SwapRefreshToken(ctx, userID, refreshToken, pair.RefreshToken); err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Revoke clears the stored refresh token for the user. Idempotent.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return m.store.ClearRefreshToken(ctx, userID)
}

func (m *Manager) sign(userID string) (models.TokenPair, error) {
	now := m.now()

	accessExpires := now.Add(m.accessTTL)
	access, err := signToken(userID, m.accessSecret, now, accessExpires)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpires := now.Add(m.refreshTTL)
	refresh, err := signToken(userID, m.refreshSecret, now, refreshExpires)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

func (m *Manager) verify(token string, secret []byte) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

func signToken(userID string, secret []byte, now, expires time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc().UTC()
	}
	return time.Now().UTC()
}
