package app

import (
	iauth "github.com/gfranca/barberhub/internal/auth"
	"github.com/gfranca/barberhub/internal/auth/mfa"
	"github.com/gfranca/barberhub/internal/identity"
	"github.com/gfranca/barberhub/internal/services"
)

// JWTServiceConfig converts the settings to the auth package representation.
func (c AuthConfig) JWTServiceConfig() iauth.JWTConfig {
	return iauth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: c.JWT.TTL,
	}
}

// TempTokenServiceConfig converts the settings to the auth package representation.
// The temp token secret falls back to the JWT secret when unset.
func (c AuthConfig) TempTokenServiceConfig() iauth.TempTokenConfig {
	secret := c.TempToken.Secret
	if secret == "" {
		secret = c.JWT.Secret
	}
	return iauth.TempTokenConfig{
		Secret: secret,
		TTL:    c.TempToken.TTL,
	}
}

// ChallengeServiceConfig converts the settings to the mfa package representation.
func (c AuthConfig) ChallengeServiceConfig() mfa.ChallengeConfig {
	return mfa.ChallengeConfig{
		CodeLength:   c.MFA.CodeLength,
		CodeExpiry:   c.MFA.CodeExpiry,
		VerifyWindow: c.MFA.VerifyWindow,
	}
}

// PasswordPolicy converts the settings to the services package representation.
func (c AuthConfig) PasswordPolicy() services.PasswordPolicy {
	return services.PasswordPolicy{
		MinLength:     c.Password.MinLength,
		RequireUpper:  c.Password.RequireUpper,
		RequireLower:  c.Password.RequireLower,
		RequireDigit:  c.Password.RequireDigit,
		RequireSymbol: c.Password.RequireSymbol,
	}
}

// ClientConfig converts the settings to the identity package representation.
func (c IdentityConfig) ClientConfig() identity.HTTPConfig {
	return identity.HTTPConfig{
		BaseURL:    c.BaseURL,
		ServiceKey: c.ServiceKey,
		Timeout:    c.Timeout,
	}
}
