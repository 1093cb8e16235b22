package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerIssueAndVerify(t *testing.T) {
	store := NewInMemoryTokenStore()
	manager := NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, store)

	pair, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	userID, err := manager.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected subject user-1 got %q", userID)
	}

	if store.TokenFor("user-1") != pair.RefreshToken {
		t.Fatal("expected refresh token to be persisted")
	}
}

func TestManagerAccessTokenRejectsRefreshToken(t *testing.T) {
	manager := NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, NewInMemoryTokenStore())

	pair, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := manager.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken got %v", err)
	}
}

func TestManagerVerifyExpiredAccessToken(t *testing.T) {
	store := NewInMemoryTokenStore()
	manager := NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, store)

	issuedAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	manager.NowFunc = func() time.Time { return issuedAt }

	pair, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	manager.NowFunc = func() time.Time { return issuedAt.Add(2 * time.Minute) }

	if _, err := manager.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken got %v", err)
	}
}

func TestManagerRefreshRotatesToken(t *testing.T) {
	store := NewInMemoryTokenStore()
	manager := NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, store)

	issuedAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	manager.NowFunc = func() time.Time { return issuedAt }

	pair, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	manager.NowFunc = func() time.Time { return issuedAt.Add(time.Second) }

	rotated, err := manager.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a new refresh token after rotation")
	}
	if store.TokenFor("user-1") != rotated.RefreshToken {
		t.Fatal("expected rotated token to be persisted")
	}

	// The displaced token must no longer be usable.
	if _, err := manager.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch for reused token got %v", err)
	}
}

func TestManagerRevoke(t *testing.T) {
	store := NewInMemoryTokenStore()
	manager := NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, store)

	pair, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := manager.Revoke(context.Background(), "user-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if store.TokenFor("user-1") != "" {
		t.Fatal("expected stored token to be cleared")
	}

	if _, err := manager.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch after revoke got %v", err)
	}

	// Revoking again must not fail.
	if err := manager.Revoke(context.Background(), "user-1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}
