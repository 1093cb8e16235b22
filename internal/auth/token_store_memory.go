package auth

import (
	"context"
	"sync"
)

// NewInMemoryTokenStore returns a TokenRecordStore backed by an in-memory map.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[string]string)}
}

// InMemoryTokenStore implements TokenRecordStore for tests and local development.
type InMemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// SetRefreshToken stores the active refresh token for the user.
func (s *InMemoryTokenStore) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	s.tokens[userID] = token
	s.mu.Unlock()
	return nil
}

// SwapRefreshToken replaces the stored token only when it matches previous.
func (s *InMemoryTokenStore) SwapRefreshToken(_ context.Context, userID, previous, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[userID] != previous {
		return ErrTokenMismatch
	}
	s.tokens[userID] = next
	return nil
}

// ClearRefreshToken removes the stored token for the user.
func (s *InMemoryTokenStore) ClearRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.tokens, userID)
	s.mu.Unlock()
	return nil
}

// TokenFor reports the stored refresh token. Useful for tests.
func (s *InMemoryTokenStore) TokenFor(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[userID]
}
