package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.Equal(t, 4, cfg.Database.Retry.MaxRetries)
	require.Equal(t, 250*time.Millisecond, cfg.Database.Retry.BaseDelay)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "barberhub-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, "temp-secret", cfg.Auth.TempToken.Secret)
	require.Equal(t, 5*time.Minute, cfg.Auth.TempToken.TTL)
	require.Equal(t, 6, cfg.Auth.MFA.CodeLength)
	require.Equal(t, 5*time.Minute, cfg.Auth.MFA.CodeExpiry)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.MFA.VerifyWindow)
	require.Equal(t, 10, cfg.Auth.Password.MinLength)
	require.False(t, cfg.Auth.Password.RequireSymbol)

	require.Equal(t, "https://id.example.com", cfg.Identity.BaseURL)
	require.Equal(t, "service-key", cfg.Identity.ServiceKey)
	require.Equal(t, 5*time.Second, cfg.Identity.Timeout)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 465, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.False(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@daily", cfg.Maintenance.Schedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 2, cfg.Database.Retry.MaxRetries)
	require.Equal(t, 150*time.Millisecond, cfg.Database.Retry.BaseDelay)

	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 10*time.Minute, cfg.Auth.TempToken.TTL)
	require.Equal(t, 8, cfg.Auth.MFA.CodeLength)
	require.Equal(t, 10*time.Minute, cfg.Auth.MFA.CodeExpiry)
	require.Equal(t, 14*24*time.Hour, cfg.Auth.MFA.VerifyWindow)
	require.Equal(t, 12, cfg.Auth.Password.MinLength)
	require.True(t, cfg.Auth.Password.RequireSymbol)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@hourly", cfg.Maintenance.Schedule)
}

func TestSMTPSettingsConversion(t *testing.T) {
	cfg := EmailConfig{SMTP: SMTPConfig{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
		UseTLS:  true,
		Timeout: 10 * time.Second,
	}}

	settings := cfg.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, 587, settings.Port)
	require.Equal(t, "no-reply@example.com", settings.From)
}

func TestTempTokenSecretFallsBackToJWT(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: "shared"}}
	require.Equal(t, "shared", cfg.TempTokenServiceConfig().Secret)

	cfg.TempToken.Secret = "own"
	require.Equal(t, "own", cfg.TempTokenServiceConfig().Secret)
}
