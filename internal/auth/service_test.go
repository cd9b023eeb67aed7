package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peerpool/peerpool/internal/config"
	"github.com/peerpool/peerpool/internal/identity"
)

func newTestService(t *testing.T) (*Service, *identity.Service, identity.Repository) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	cfg := config.Config{
		JWTSecret:       "access",
		RefreshSecret:   "refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	return NewService(cfg, repo), identity.NewService(repo), repo
}

func TestLoginAuthorizeRefreshLogout(t *testing.T) {
	svc, ids, _ := newTestService(t)
	ctx := context.Background()

	account, err := ids.Register(ctx, identity.Credentials{Handle: "alice", Secret: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := svc.Login(account)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.ExpiresIn != 60 {
		t.Fatalf("expected 60s expiry, got %d", pair.ExpiresIn)
	}

	sub, err := svc.Authorize(ctx, pair.AccessToken)
	if err != nil || sub != account.ID {
		t.Fatalf("authorize: sub=%q err=%v", sub, err)
	}
	if _, err := svc.Authorize(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token must not pass as access token, got %v", err)
	}

	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authorize(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token after logout, got %v", err)
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked refresh token after logout, got %v", err)
	}
}

func TestAuthorizeRejectsExpiredToken(t *testing.T) {
	svc, ids, _ := newTestService(t)
	ctx := context.Background()

	account, err := ids.Register(ctx, identity.Credentials{Handle: "bob", Secret: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := svc.Login(account)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := svc.Authorize(ctx, pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestParseAndVerifyRejectsTampering(t *testing.T) {
	token, err := SignHS256(map[string]any{"sub": "x", "exp": time.Now().Add(time.Minute).Unix()}, []byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseClaims(token, []byte("other"), time.Now()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
	if _, err := ParseClaims("a.b", []byte("k"), time.Now()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected format error, got %v", err)
	}
}
