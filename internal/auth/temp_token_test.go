package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTempTokenIssueAndVerify(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	svc, err := NewTempTokenService(TempTokenConfig{
		Secret: "temp-secret",
		Clock:  func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	userID, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", userID)
}

func TestTempTokenRejectsExpired(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	issuer, err := NewTempTokenService(TempTokenConfig{
		Secret: "temp-secret",
		TTL:    10 * time.Minute,
		Clock:  func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := issuer.Issue("user-123")
	require.NoError(t, err)

	late, err := NewTempTokenService(TempTokenConfig{
		Secret: "temp-secret",
		Clock:  func() time.Time { return current.Add(11 * time.Minute) },
	})
	require.NoError(t, err)

	_, err = late.Verify(token)
	require.ErrorIs(t, err, ErrInvalidTempToken)
}

func TestTempTokenRejectsWrongType(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	// An access token signed with the same secret must not pass as a temp
	// token: the typ discriminator is missing.
	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": "user-123",
		"exp": current.Add(time.Hour).Unix(),
		"iat": current.Unix(),
	})
	signed, err := access.SignedString([]byte("temp-secret"))
	require.NoError(t, err)

	svc, err := NewTempTokenService(TempTokenConfig{Secret: "temp-secret", Clock: now})
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	require.ErrorIs(t, err, ErrInvalidTempToken)
}

func TestTempTokenRejectsTampering(t *testing.T) {
	svc, err := NewTempTokenService(TempTokenConfig{Secret: "temp-secret"})
	require.NoError(t, err)

	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	_, err = svc.Verify(token + "x")
	require.ErrorIs(t, err, ErrInvalidTempToken)

	_, err = svc.Verify("")
	require.ErrorIs(t, err, ErrInvalidTempToken)
}
