package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTempTokenTTL bounds the window between password acceptance and MFA
// code submission.
const DefaultTempTokenTTL = 10 * time.Minute

// tempTokenType discriminates temp tokens from access tokens so one can never
// be redeemed as the other.
const tempTokenType = "mfa_temp"

// ErrInvalidTempToken is returned for malformed, expired, or mistyped temp tokens.
var ErrInvalidTempToken = errors.New("temp token: invalid or expired")

type tempClaims struct {
	UserID    string `json:"uid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TempTokenConfig configures the TempTokenService.
type TempTokenConfig struct {
	Secret string
	TTL    time.Duration
	Clock  func() time.Time
}

// TempTokenService issues the short-lived HMAC-signed handle that bridges
// "password accepted" and "code submitted" without re-sending credentials.
type TempTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTempTokenService builds the service from configuration.
func NewTempTokenService(cfg TempTokenConfig) (*TempTokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("temp token: secret must be provided")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTempTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TempTokenService{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    now,
	}, nil
}

// Issue creates a signed temp token bound to the user.
func (s *TempTokenService) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("temp token: user id is required")
	}

	now := s.now()
	claims := &tempClaims{
		UserID:    userID,
		TokenType: tempTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("temp token: sign: %w", err)
	}

	return signed, nil
}

// Verify decodes the token, checks the type discriminator and expiry, and
// returns the bound user id.
func (s *TempTokenService) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidTempToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims tempClaims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", ErrInvalidTempToken
	}

	if claims.TokenType != tempTokenType || claims.UserID == "" {
		return "", ErrInvalidTempToken
	}

	return claims.UserID, nil
}
