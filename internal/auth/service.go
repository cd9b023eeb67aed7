package auth

import (
	"context"
	"errors"
	"time"

	"github.com/peerpool/peerpool/internal/config"
	"github.com/peerpool/peerpool/internal/identity"
)

// ErrTokenRevoked is returned when a token carries an outdated version.
var ErrTokenRevoked = errors.New("token version invalidated")

type Service struct {
	cfg    config.Config
	idRepo identity.Repository
	now    func() time.Time
}

func NewService(cfg config.Config, idRepo identity.Repository) *Service {
	return &Service{cfg: cfg, idRepo: idRepo, now: time.Now}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues an access and refresh token for an authenticated account.
func (s *Service) Login(account identity.Account) (TokenPair, error) {
	access, err := s.sign(account.ID, account.TokenVersion, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(account.ID, account.TokenVersion, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

func (s *Service) sign(sub string, ver int, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := map[string]any{
		"sub": sub,
		"ver": ver,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return SignHS256(claims, []byte(secret))
}

// Authorize validates an access token and returns the account id it was issued to.
func (s *Service) Authorize(ctx context.Context, accessToken string) (string, error) {
	claims, err := s.current(ctx, accessToken, s.cfg.JWTSecret)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := s.current(ctx, refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return "", 0, err
	}
	signed, err := s.sign(claims.Subject, claims.Version, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout increments the token version of the refresh token's owner so every
// token issued before becomes invalid.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.current(ctx, refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, claims.Subject, claims.Version+1)
}

func (s *Service) current(ctx context.Context, token, secret string) (Claims, error) {
	claims, err := ParseClaims(token, []byte(secret), s.now())
	if err != nil {
		return Claims{}, err
	}
	account, err := s.idRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if account.TokenVersion != claims.Version {
		return Claims{}, ErrTokenRevoked
	}
	return claims, nil
}
