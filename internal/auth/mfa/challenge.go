// Package mfa issues and verifies the emailed one-time codes that gate login.
package mfa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gfranca/barberhub/internal/database"
	"github.com/gfranca/barberhub/internal/models"
	"github.com/gfranca/barberhub/pkg/crypto"
	apperrors "github.com/gfranca/barberhub/pkg/errors"
	"github.com/gfranca/barberhub/pkg/logger"
	"github.com/gfranca/barberhub/pkg/mail"
	"github.com/gfranca/barberhub/pkg/metrics"
)

const (
	// DefaultCodeLength is the number of [A-Z0-9] symbols in a challenge code.
	DefaultCodeLength = 8
	// DefaultCodeExpiry bounds how long an issued code can be redeemed.
	DefaultCodeExpiry = 10 * time.Minute
	// DefaultVerifyWindow is how long a successful verification suppresses
	// further challenges.
	DefaultVerifyWindow = 14 * 24 * time.Hour
)

// Required reports whether a challenge must be passed before proceeding. It is
// a pure function of the identity's MFA state and the current time.
func Required(enabled bool, lastVerified *time.Time, now time.Time, window time.Duration) bool {
	if !enabled {
		return false
	}
	if lastVerified == nil {
		return true
	}
	return now.Sub(*lastVerified) >= window
}

// ChallengeConfig tunes the challenge service.
type ChallengeConfig struct {
	CodeLength   int
	CodeExpiry   time.Duration
	VerifyWindow time.Duration
	Clock        func() time.Time
}

// ChallengeService issues single-use verification codes, delivers them by
// email, and performs the atomic verification transition.
type ChallengeService struct {
	access *database.Access
	mailer mail.Mailer

	codeLength   int
	codeExpiry   time.Duration
	verifyWindow time.Duration
	now          func() time.Time
	log          *zap.Logger
}

// NewChallengeService constructs the service. The mailer may be nil, in which
// case codes are persisted but not delivered (useful in tests).
func NewChallengeService(access *database.Access, mailer mail.Mailer, cfg ChallengeConfig) (*ChallengeService, error) {
	if access == nil {
		return nil, errors.New("mfa: resilient access is required")
	}

	length := cfg.CodeLength
	if length <= 0 {
		length = DefaultCodeLength
	}

	expiry := cfg.CodeExpiry
	if expiry <= 0 {
		expiry = DefaultCodeExpiry
	}

	window := cfg.VerifyWindow
	if window <= 0 {
		window = DefaultVerifyWindow
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &ChallengeService{
		access:       access,
		mailer:       mailer,
		codeLength:   length,
		codeExpiry:   expiry,
		verifyWindow: window,
		now:          clock,
		log:          logger.WithModule("mfa"),
	}, nil
}

// Required reports whether the identity must pass a challenge now.
func (s *ChallengeService) Required(identity *models.Identity) bool {
	return Required(identity.MFAEnabled, identity.MFALastVerified, s.now(), s.verifyWindow)
}

// Issue creates a fresh challenge for the identity, enforcing the single
// live-session policy by deleting unused sessions first, and dispatches the
// code by email without blocking on delivery.
func (s *ChallengeService) Issue(ctx context.Context, identity *models.Identity) (*models.MfaSession, error) {
	if identity == nil || identity.ID == "" {
		return nil, errors.New("mfa: identity is required")
	}

	code, err := crypto.GenerateCode(s.codeLength)
	if err != nil {
		return nil, fmt.Errorf("mfa: generate code: %w", err)
	}

	now := s.now()
	session := &models.MfaSession{
		UserID:              identity.ID,
		Code:                code,
		ExpiresAt:           now.Add(s.codeExpiry),
		CodeExpiryMinutes:   int(s.codeExpiry.Minutes()),
		SessionDurationDays: int(s.verifyWindow.Hours() / 24),
	}

	// Delete-then-insert keeps at most one live session per user. Two
	// concurrent logins race to last-writer-wins here; the table is still
	// the single source of truth for verification.
	err = s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		return db.Where("user_id = ? AND used_at IS NULL", identity.ID).
			Delete(&models.MfaSession{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("mfa: clear pending sessions: %w", err)
	}

	err = s.access.Run(ctx, database.ModeOnce, func(db *gorm.DB) error {
		return db.Create(session).Error
	})
	if err != nil {
		return nil, fmt.Errorf("mfa: persist session: %w", err)
	}

	metrics.MFAChallenges.Inc()
	s.dispatchCode(identity, code)

	return session, nil
}

// dispatchCode emails the code fire-and-forget: issuance never blocks on, or
// fails because of, delivery.
func (s *ChallengeService) dispatchCode(identity *models.Identity, code string) {
	if s.mailer == nil {
		return
	}

	msg := mail.MFACodeMessage(identity.Email, identity.Name, code, s.codeExpiry)
	go func() {
		if err := s.mailer.Send(context.Background(), msg); err != nil {
			if errors.Is(err, mail.ErrSMTPDisabled) {
				s.log.Debug("mfa code email skipped, smtp disabled")
				return
			}
			s.log.Error("mfa code email failed", zap.Error(err))
		}
	}()
}

// Verify redeems a submitted code. Wrong, expired, reused, and never-issued
// codes all fail with the same generic unauthorized error so callers cannot
// tell which check rejected them.
func (s *ChallengeService) Verify(ctx context.Context, userID, code string) (*models.Identity, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if userID == "" || code == "" {
		metrics.MFAVerifications.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrUnauthorized
	}

	now := s.now()

	var session models.MfaSession
	err := s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		return db.Where("user_id = ? AND code = ? AND used_at IS NULL AND expires_at >= ?", userID, code, now).
			First(&session).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.MFAVerifications.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("mfa: lookup session: %w", err)
	}

	var identity models.Identity

	// Session consumption and identity stamping must land together; a crash
	// between them would otherwise leave a used code with an unverified
	// identity or the reverse.
	err = s.access.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&models.MfaSession{}).
			Where("id = ?", session.ID).
			Update("used_at", now).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Identity{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"mfa_last_verified":   now,
				"last_login":          now,
				"must_reset_password": false,
			}).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ? AND (used_at IS NOT NULL OR expires_at < ?)", userID, now).
			Delete(&models.MfaSession{}).Error; err != nil {
			return err
		}

		return tx.First(&identity, "id = ?", userID).Error
	})
	if err != nil {
		metrics.MFAVerifications.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("mfa: consume session: %w", err)
	}

	metrics.MFAVerifications.WithLabelValues("success").Inc()
	return &identity, nil
}

// PurgeDead deletes used or expired sessions for all users, returning the
// number of rows removed. The maintenance cleaner runs this on a schedule.
func (s *ChallengeService) PurgeDead(ctx context.Context) (int64, error) {
	now := s.now()

	var removed int64
	err := s.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		result := db.Where("used_at IS NOT NULL OR expires_at < ?", now).
			Delete(&models.MfaSession{})
		removed = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("mfa: purge sessions: %w", err)
	}

	return removed, nil
}
