// Package identity talks to the external identity provider's admin API. The
// provider is authoritative for credential storage; this backend only mirrors
// the resulting identities.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/gfranca/barberhub/pkg/errors"
)

// ProviderUser is the provider's view of an account.
type ProviderUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client is the admin-API surface this backend consumes.
type Client interface {
	CreateUser(ctx context.Context, email, password string) (*ProviderUser, error)
	DeleteUser(ctx context.Context, id string) error
	VerifyPassword(ctx context.Context, email, password string) (*ProviderUser, error)
	ResetPassword(ctx context.Context, email string) error
	ConfirmEmail(ctx context.Context, token, email string) error
}

// HTTPConfig configures the REST client.
type HTTPConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPClient implements Client against a JSON admin API authenticated with a
// bearer service key.
type HTTPClient struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

// NewHTTPClient validates the configuration and builds the REST client.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("identity client: base url is required")
	}
	if strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, errors.New("identity client: service key is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{
		baseURL:    baseURL,
		serviceKey: cfg.ServiceKey,
		client:     client,
	}, nil
}

// CreateUser provisions a new account with the provider.
func (c *HTTPClient) CreateUser(ctx context.Context, email, password string) (*ProviderUser, error) {
	var user ProviderUser
	err := c.do(ctx, http.MethodPost, "/admin/users", map[string]string{
		"email":    email,
		"password": password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes the account, used as a compensating action when local
// registration fails after the provider account was created.
func (c *HTTPClient) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+id, nil, nil)
}

// VerifyPassword checks a credential pair without issuing provider tokens.
func (c *HTTPClient) VerifyPassword(ctx context.Context, email, password string) (*ProviderUser, error) {
	var user ProviderUser
	err := c.do(ctx, http.MethodPost, "/admin/users/verify", map[string]string{
		"email":    email,
		"password": password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ResetPassword triggers the provider's password-reset email.
func (c *HTTPClient) ResetPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/admin/users/reset-password", map[string]string{
		"email": email,
	}, nil)
}

// ConfirmEmail redeems an email confirmation token.
func (c *HTTPClient) ConfirmEmail(ctx context.Context, token, email string) error {
	return c.do(ctx, http.MethodPost, "/admin/users/confirm-email", map[string]string{
		"token": token,
		"email": email,
	}, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity client: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("identity client: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewExternalService("identity provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperrors.ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperrors.NewExternalService("identity provider",
			fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(message))))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewExternalService("identity provider", fmt.Errorf("decode response: %w", err))
	}

	return nil
}
