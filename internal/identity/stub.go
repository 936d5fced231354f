package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gfranca/barberhub/pkg/crypto"
	apperrors "github.com/gfranca/barberhub/pkg/errors"
)

// StubClient is an in-memory Client for tests and local development. Passwords
// are bcrypt-hashed so the verify path behaves like the real provider.
type StubClient struct {
	mu       sync.Mutex
	accounts map[string]stubAccount // keyed by lowercase email

	// FailCreate forces CreateUser to fail, for compensating-action tests.
	FailCreate bool
	// FailDelete forces DeleteUser to fail.
	FailDelete bool

	Deleted []string
	Resets  []string
}

type stubAccount struct {
	id           string
	email        string
	passwordHash string
	confirmed    bool
}

// NewStubClient builds an empty in-memory provider.
func NewStubClient() *StubClient {
	return &StubClient{accounts: make(map[string]stubAccount)}
}

// CreateUser implements Client.
func (s *StubClient) CreateUser(ctx context.Context, email, password string) (*ProviderUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate {
		return nil, apperrors.NewExternalService("identity provider", context.DeadlineExceeded)
	}

	key := strings.ToLower(strings.TrimSpace(email))
	if _, exists := s.accounts[key]; exists {
		return nil, apperrors.NewConflict("email", "")
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := stubAccount{
		id:           uuid.NewString(),
		email:        key,
		passwordHash: hash,
	}
	s.accounts[key] = account

	return &ProviderUser{ID: account.id, Email: account.email}, nil
}

// DeleteUser implements Client.
func (s *StubClient) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDelete {
		return apperrors.NewExternalService("identity provider", context.DeadlineExceeded)
	}

	for key, account := range s.accounts {
		if account.id == id {
			delete(s.accounts, key)
			break
		}
	}
	s.Deleted = append(s.Deleted, id)
	return nil
}

// VerifyPassword implements Client.
func (s *StubClient) VerifyPassword(ctx context.Context, email, password string) (*ProviderUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || !crypto.VerifyPassword(account.passwordHash, password) {
		return nil, apperrors.ErrUnauthorized
	}

	return &ProviderUser{ID: account.id, Email: account.email}, nil
}

// ResetPassword implements Client.
func (s *StubClient) ResetPassword(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Resets = append(s.Resets, strings.ToLower(strings.TrimSpace(email)))
	return nil
}

// ConfirmEmail implements Client.
func (s *StubClient) ConfirmEmail(ctx context.Context, token, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(email))
	account, ok := s.accounts[key]
	if !ok || strings.TrimSpace(token) == "" {
		return apperrors.ErrUnauthorized
	}

	account.confirmed = true
	s.accounts[key] = account
	return nil
}
