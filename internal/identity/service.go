package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minSecretLength = 8

var (
	// ErrInvalidHandle is returned for empty or whitespace-padded handles.
	ErrInvalidHandle = errors.New("handle is required")
	// ErrWeakSecret is returned when the secret is shorter than minSecretLength.
	ErrWeakSecret = errors.New("secret must be at least 8 characters")
	// ErrInvalidCredentials hides whether the handle or the secret was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service manages account lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates an account and stores a hashed secret.
func (s *Service) Register(ctx context.Context, creds Credentials) (Account, error) {
	handle := strings.TrimSpace(creds.Handle)
	if handle == "" || handle != creds.Handle {
		return Account{}, ErrInvalidHandle
	}
	if len(creds.Secret) < minSecretLength {
		return Account{}, ErrWeakSecret
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Secret), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:         uuid.New().String(),
		Handle:     handle,
		SecretHash: hash,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}

	return account, nil
}

// Authenticate verifies credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
	account, err := s.repo.FindByHandle(ctx, creds.Handle)
	if errors.Is(err, ErrAccountNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword(account.SecretHash, []byte(creds.Secret)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.repo.TouchLogin(ctx, account.ID, now); err != nil {
		return Account{}, err
	}
	account.LastLogin = &now

	return account, nil
}
