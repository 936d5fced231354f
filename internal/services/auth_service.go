package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gfranca/barberhub/internal/auth"
	"github.com/gfranca/barberhub/internal/auth/mfa"
	"github.com/gfranca/barberhub/internal/database"
	"github.com/gfranca/barberhub/internal/identity"
	"github.com/gfranca/barberhub/internal/models"
	apperrors "github.com/gfranca/barberhub/pkg/errors"
	"github.com/gfranca/barberhub/pkg/logger"
	"github.com/gfranca/barberhub/pkg/metrics"
)

// PasswordPolicy defines the strength requirements enforced at registration.
type PasswordPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPasswordPolicy is applied when no policy is configured.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:     12,
	RequireUpper:  true,
	RequireLower:  true,
	RequireDigit:  true,
	RequireSymbol: true,
}

// AuthConfig wires the orchestrator's collaborators together.
type AuthConfig struct {
	Policy PasswordPolicy
	Clock  func() time.Time
}

// AuthService composes the credential registry, the MFA challenge manager,
// and the external identity provider into the register/login/verify/profile
// flows.
type AuthService struct {
	access     *database.Access
	registry   *CredentialRegistry
	challenges *mfa.ChallengeService
	provider   identity.Client
	jwt        *auth.JWTService
	tempTokens *auth.TempTokenService

	policy PasswordPolicy
	now    func() time.Time
	log    *zap.Logger
}

// NewAuthService validates the dependency set and builds the orchestrator.
func NewAuthService(
	access *database.Access,
	registry *CredentialRegistry,
	challenges *mfa.ChallengeService,
	provider identity.Client,
	jwtService *auth.JWTService,
	tempTokens *auth.TempTokenService,
	cfg AuthConfig,
) (*AuthService, error) {
	if access == nil {
		return nil, errors.New("auth service: resilient access is required")
	}
	if registry == nil {
		return nil, errors.New("auth service: credential registry is required")
	}
	if challenges == nil {
		return nil, errors.New("auth service: challenge service is required")
	}
	if provider == nil {
		return nil, errors.New("auth service: identity provider client is required")
	}
	if jwtService == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	if tempTokens == nil {
		return nil, errors.New("auth service: temp token service is required")
	}

	policy := cfg.Policy
	if policy.MinLength <= 0 {
		policy = DefaultPasswordPolicy
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &AuthService{
		access:     access,
		registry:   registry,
		challenges: challenges,
		provider:   provider,
		jwt:        jwtService,
		tempTokens: tempTokens,
		policy:     policy,
		now:        clock,
		log:        logger.WithModule("auth"),
	}, nil
}

// RegisterInput captures the registration payload after HTTP binding.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	CPF             string
	Passport        string
	Phone           string
	IsForeigner     bool
	Context         string
}

// RegisterResult is the exposed registration contract.
type RegisterResult struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
}

// Register validates the payload, provisions the account with the identity
// provider, and mirrors it locally. Any failure after the provider account
// exists triggers a best-effort compensating delete.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if err := s.validatePassword(input.Password); err != nil {
		metrics.Registrations.WithLabelValues("failure").Inc()
		return nil, err
	}
	if input.Password != input.ConfirmPassword {
		metrics.Registrations.WithLabelValues("failure").Inc()
		return nil, apperrors.NewValidation("confirm_password", "password confirmation does not match")
	}

	cpf, passport, err := s.resolveDocuments(input)
	if err != nil {
		metrics.Registrations.WithLabelValues("failure").Inc()
		return nil, err
	}

	phone, err := s.registry.NormalizePhone(input.Phone)
	if err != nil {
		metrics.Registrations.WithLabelValues("failure").Inc()
		return nil, err
	}

	unique := UniquenessInput{Email: &email, Phone: &phone}
	if cpf != nil {
		unique.CPF = cpf
	}
	if passport != nil {
		unique.Passport = passport
	}
	if err := s.registry.CheckUnique(ctx, unique); err != nil {
		if apperrors.IsCode(err, "DUPLICATE_EMAIL") || apperrors.IsCode(err, "DUPLICATE_CPF") ||
			apperrors.IsCode(err, "DUPLICATE_PASSPORT") || apperrors.IsCode(err, "DUPLICATE_PHONE") {
			metrics.Registrations.WithLabelValues("conflict").Inc()
		} else {
			metrics.Registrations.WithLabelValues("failure").Inc()
		}
		return nil, err
	}

	provided, err := s.provider.CreateUser(ctx, email, input.Password)
	if err != nil {
		metrics.Registrations.WithLabelValues("failure").Inc()
		return nil, err
	}

	mirror := &models.Identity{
		ID:          provided.ID,
		Email:       email,
		Name:        strings.TrimSpace(input.Name),
		CPF:         cpf,
		Passport:    passport,
		Phone:       phone,
		Role:        models.RoleFromContext(input.Context),
		Status:      models.StatusActive,
		IsForeigner: input.IsForeigner,
		MFAEnabled:  true,
	}

	if err := s.mirrorIdentity(ctx, mirror); err != nil {
		s.compensateProviderUser(provided.ID)
		metrics.Registrations.WithLabelValues("failure").Inc()
		return nil, err
	}

	metrics.Registrations.WithLabelValues("success").Inc()
	s.log.Info("identity registered",
		zap.String("user_id", mirror.ID),
		zap.String("role", string(mirror.Role)),
	)

	return &RegisterResult{
		Message: "Registration completed",
		Success: true,
		UserID:  mirror.ID,
	}, nil
}

// mirrorIdentity persists the local copy of a provider account. A row may
// already exist at the provider id when a database trigger reacted to the
// external creation; in that case the row is updated instead of duplicated.
func (s *AuthService) mirrorIdentity(ctx context.Context, mirror *models.Identity) error {
	var existing models.Identity
	err := s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		return db.First(&existing, "id = ?", mirror.ID).Error
	})

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = s.access.Run(ctx, database.ModeOnce, func(db *gorm.DB) error {
			return db.Create(mirror).Error
		})
		if err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewConflict("email", MaskEmail(mirror.Email))
			}
			return fmt.Errorf("auth service: mirror identity: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("auth service: load mirror: %w", err)
	default:
		err = s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
			return db.Model(&existing).Updates(map[string]any{
				"email":        mirror.Email,
				"name":         mirror.Name,
				"cpf":          mirror.CPF,
				"passport":     mirror.Passport,
				"phone":        mirror.Phone,
				"role":         mirror.Role,
				"status":       mirror.Status,
				"is_foreigner": mirror.IsForeigner,
			}).Error
		})
		if err != nil {
			return fmt.Errorf("auth service: update mirror: %w", err)
		}
		return nil
	}
}

// compensateProviderUser deletes the external account after a local failure.
// Best effort only: if the delete itself fails an orphaned provider account
// remains and is logged for manual cleanup.
func (s *AuthService) compensateProviderUser(providerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.provider.DeleteUser(ctx, providerID); err != nil {
		s.log.Error("compensating delete of provider account failed, orphan remains",
			zap.String("provider_id", providerID),
			zap.Error(err),
		)
	}
}

func (s *AuthService) resolveDocuments(input RegisterInput) (*string, *string, error) {
	hasCPF := strings.TrimSpace(input.CPF) != ""
	hasPassport := strings.TrimSpace(input.Passport) != ""

	if input.IsForeigner {
		if !hasPassport || hasCPF {
			return nil, nil, apperrors.NewValidation("passport", "foreign accounts require a passport and no CPF")
		}
		passport := strings.ToUpper(strings.TrimSpace(input.Passport))
		return nil, &passport, nil
	}

	if !hasCPF || hasPassport {
		return nil, nil, apperrors.NewValidation("cpf", "resident accounts require a CPF and no passport")
	}

	normalized, err := s.registry.NormalizeCPF(input.CPF)
	if err != nil {
		return nil, nil, err
	}
	return &normalized, nil, nil
}

func (s *AuthService) validatePassword(password string) error {
	if len(password) < s.policy.MinLength {
		return apperrors.NewValidation("password",
			fmt.Sprintf("password must be at least %d characters", s.policy.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if s.policy.RequireUpper && !hasUpper {
		return apperrors.NewValidation("password", "password must contain an uppercase letter")
	}
	if s.policy.RequireLower && !hasLower {
		return apperrors.NewValidation("password", "password must contain a lowercase letter")
	}
	if s.policy.RequireDigit && !hasDigit {
		return apperrors.NewValidation("password", "password must contain a digit")
	}
	if s.policy.RequireSymbol && !hasSymbol {
		return apperrors.NewValidation("password", "password must contain a symbol")
	}

	return nil
}

// LoginResult is the exposed login contract. When MFARequired is set only the
// temp token is present; the access token is withheld until the code is
// verified.
type LoginResult struct {
	MFARequired bool             `json:"mfa_required"`
	TempToken   string           `json:"temp_token,omitempty"`
	Token       string           `json:"token,omitempty"`
	User        *models.Identity `json:"user,omitempty"`
}

// Login resolves the credential to an identity, verifies the password with
// the provider, and either issues a challenge or an access token.
func (s *AuthService) Login(ctx context.Context, credential, password string) (*LoginResult, error) {
	ident, err := s.resolveIdentity(ctx, credential)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, err
	}

	if _, err := s.provider.VerifyPassword(ctx, ident.Email, password); err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		// A provider outage is distinguishable from a bad password; anything
		// else collapses to the generic message.
		if apperrors.IsCode(err, "EXTERNAL_SERVICE_ERROR") {
			return nil, err
		}
		return nil, apperrors.ErrUnauthorized
	}

	if s.challenges.Required(ident) {
		if _, err := s.challenges.Issue(ctx, ident); err != nil {
			return nil, err
		}

		tempToken, err := s.tempTokens.Issue(ident.ID)
		if err != nil {
			return nil, fmt.Errorf("auth service: issue temp token: %w", err)
		}

		metrics.AuthAttempts.WithLabelValues("mfa_required").Inc()
		return &LoginResult{MFARequired: true, TempToken: tempToken}, nil
	}

	now := s.now()
	err = s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		return db.Model(&models.Identity{}).
			Where("id = ?", ident.ID).
			Update("last_login", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: stamp last login: %w", err)
	}
	ident.LastLogin = &now

	token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{
		UserID: ident.ID,
		Email:  ident.Email,
		Role:   string(ident.Role),
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: issue access token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &LoginResult{MFARequired: false, Token: token, User: ident}, nil
}

// resolveIdentity treats credentials containing '@' as emails and anything
// else as a CPF. Misses collapse to the generic unauthorized error so the
// endpoint cannot be used to enumerate accounts.
func (s *AuthService) resolveIdentity(ctx context.Context, credential string) (*models.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var (
		ident models.Identity
		err   error
	)

	if strings.Contains(credential, "@") {
		email := strings.ToLower(credential)
		err = s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
			return db.First(&ident, "LOWER(email) = ?", email).Error
		})
	} else {
		normalized, nerr := s.registry.NormalizeCPF(credential)
		if nerr != nil {
			return nil, apperrors.ErrUnauthorized
		}
		err = s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
			return db.First(&ident, "cpf = ?", normalized).Error
		})
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: resolve identity: %w", err)
	}

	return &ident, nil
}

// VerifyMFAResult is the exposed verification contract.
type VerifyMFAResult struct {
	Success bool             `json:"success"`
	Token   string           `json:"token"`
	User    *models.Identity `json:"user"`
}

// VerifyMFA redeems the temp token and the submitted code, then issues the
// access token withheld at login.
func (s *AuthService) VerifyMFA(ctx context.Context, tempToken, code string) (*VerifyMFAResult, error) {
	userID, err := s.tempTokens.Verify(tempToken)
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}

	ident, err := s.challenges.Verify(ctx, userID, code)
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{
		UserID: ident.ID,
		Email:  ident.Email,
		Role:   string(ident.Role),
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: issue access token: %w", err)
	}

	return &VerifyMFAResult{Success: true, Token: token, User: ident}, nil
}

// GetProfile loads the identity after checking MFA freshness. A stale
// verification rejects the call and proactively issues a fresh challenge so
// the client can recover in one round trip.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.Identity, error) {
	ident, err := s.loadIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.challenges.Required(ident) {
		if _, err := s.challenges.Issue(ctx, ident); err != nil {
			s.log.Error("challenge issuance on stale profile access failed", zap.Error(err))
		}
		return nil, apperrors.ErrMFARequired
	}

	return ident, nil
}

// UpdateProfileInput enumerates mutable profile attributes. Nil fields are
// left untouched.
type UpdateProfileInput struct {
	Name     *string
	Email    *string
	CPF      *string
	Passport *string
	Phone    *string
}

// UpdateProfile re-validates uniqueness only for fields whose value actually
// changes, then persists the patch.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.Identity, error) {
	ident, err := s.loadIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	unique := UniquenessInput{ExcludeID: userID}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name != ident.Name {
			updates["name"] = name
		}
	}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email != strings.ToLower(ident.Email) {
			unique.Email = &email
			updates["email"] = email
		}
	}

	if input.CPF != nil {
		if ident.IsForeigner {
			return nil, apperrors.NewValidation("cpf", "foreign accounts carry a passport, not a CPF")
		}
		normalized, err := s.registry.NormalizeCPF(*input.CPF)
		if err != nil {
			return nil, err
		}
		if ident.CPF == nil || *ident.CPF != normalized {
			unique.CPF = &normalized
			updates["cpf"] = normalized
		}
	}

	if input.Passport != nil {
		if !ident.IsForeigner {
			return nil, apperrors.NewValidation("passport", "resident accounts carry a CPF, not a passport")
		}
		passport := strings.ToUpper(strings.TrimSpace(*input.Passport))
		if passport == "" {
			return nil, apperrors.NewValidation("passport", "passport cannot be empty")
		}
		if ident.Passport == nil || *ident.Passport != passport {
			unique.Passport = &passport
			updates["passport"] = passport
		}
	}

	if input.Phone != nil {
		normalized, err := s.registry.NormalizePhone(*input.Phone)
		if err != nil {
			return nil, err
		}
		if normalized != ident.Phone {
			unique.Phone = &normalized
			updates["phone"] = normalized
		}
	}

	if len(updates) == 0 {
		return ident, nil
	}

	if err := s.registry.CheckUnique(ctx, unique); err != nil {
		return nil, err
	}

	err = s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		return db.Model(&models.Identity{}).
			Where("id = ?", userID).
			Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: update profile: %w", err)
	}

	return s.loadIdentity(ctx, userID)
}

// ResetPassword asks the provider to start its reset flow and flags the
// local identity. The response never reveals whether the email exists.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperrors.NewValidation("email", "email is required")
	}

	if err := s.provider.ResetPassword(ctx, email); err != nil {
		if apperrors.IsCode(err, "EXTERNAL_SERVICE_ERROR") {
			return err
		}
		// Unknown account: swallow to avoid enumeration.
		return nil
	}

	err := s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		return db.Model(&models.Identity{}).
			Where("LOWER(email) = ?", email).
			Update("must_reset_password", true).Error
	})
	if err != nil {
		return fmt.Errorf("auth service: flag password reset: %w", err)
	}

	return nil
}

// ConfirmEmail redeems the provider's confirmation token.
func (s *AuthService) ConfirmEmail(ctx context.Context, token, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if strings.TrimSpace(token) == "" || email == "" {
		return apperrors.NewValidation("token", "confirmation token and email are required")
	}

	return s.provider.ConfirmEmail(ctx, token, email)
}

func (s *AuthService) loadIdentity(ctx context.Context, userID string) (*models.Identity, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.ErrNotFound
	}

	var ident models.Identity
	err := s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		return db.First(&ident, "id = ?", userID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Lookup by trusted internal id; existence is not a secret here.
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load identity: %w", err)
	}

	return &ident, nil
}
