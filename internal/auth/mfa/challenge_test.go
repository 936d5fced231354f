package mfa

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gfranca/barberhub/internal/database"
	"github.com/gfranca/barberhub/internal/models"
	apperrors "github.com/gfranca/barberhub/pkg/errors"
)

var testDBCounter int

func openChallengeTestAccess(t *testing.T) (*database.Access, *gorm.DB) {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:mfa_test_%d?mode=memory&cache=shared", testDBCounter)

	manager, err := database.NewConnectionManagerWithOpener(func() (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	})
	require.NoError(t, err)

	db, _ := manager.DB()
	require.NoError(t, db.AutoMigrate(&models.Identity{}, &models.MfaSession{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	access, err := database.NewAccess(manager, database.RetryConfig{})
	require.NoError(t, err)

	return access, db
}

func seedIdentity(t *testing.T, db *gorm.DB) *models.Identity {
	t.Helper()

	cpf := "52998224725"
	identity := &models.Identity{
		ID:         "user-1",
		Email:      "a@x.com",
		Name:       "Ana",
		CPF:        &cpf,
		Role:       models.RoleOwner,
		Status:     models.StatusActive,
		MFAEnabled: true,
	}
	require.NoError(t, db.Create(identity).Error)
	return identity
}

func TestRequiredPredicate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := DefaultVerifyWindow

	require.False(t, Required(false, nil, now, window))

	require.True(t, Required(true, nil, now, window))

	thirteenDaysAgo := now.Add(-13 * 24 * time.Hour)
	require.False(t, Required(true, &thirteenDaysAgo, now, window))

	fifteenDaysAgo := now.Add(-15 * 24 * time.Hour)
	require.True(t, Required(true, &fifteenDaysAgo, now, window))

	exactlyFourteen := now.Add(-14 * 24 * time.Hour)
	require.True(t, Required(true, &exactlyFourteen, now, window))
}

func TestIssueKeepsSingleLiveSession(t *testing.T) {
	access, db := openChallengeTestAccess(t)
	identity := seedIdentity(t, db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewChallengeService(access, nil, ChallengeConfig{
		Clock: func() time.Time { return now },
	})
	require.NoError(t, err)

	ctx := context.Background()

	first, err := svc.Issue(ctx, identity)
	require.NoError(t, err)
	require.Len(t, first.Code, DefaultCodeLength)
	require.True(t, first.ExpiresAt.Equal(now.Add(DefaultCodeExpiry)))

	var live int64
	require.NoError(t, db.Model(&models.MfaSession{}).
		Where("user_id = ? AND used_at IS NULL AND expires_at >= ?", identity.ID, now).
		Count(&live).Error)
	require.EqualValues(t, 1, live)

	second, err := svc.Issue(ctx, identity)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	require.NoError(t, db.Model(&models.MfaSession{}).
		Where("user_id = ? AND used_at IS NULL AND expires_at >= ?", identity.ID, now).
		Count(&live).Error)
	require.EqualValues(t, 1, live, "delete-then-insert must leave exactly one live session")
}

func TestVerifyConsumesCodeOnce(t *testing.T) {
	access, db := openChallengeTestAccess(t)
	identity := seedIdentity(t, db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewChallengeService(access, nil, ChallengeConfig{
		Clock: func() time.Time { return now },
	})
	require.NoError(t, err)

	ctx := context.Background()

	session, err := svc.Issue(ctx, identity)
	require.NoError(t, err)

	verified, err := svc.Verify(ctx, identity.ID, session.Code)
	require.NoError(t, err)
	require.Equal(t, identity.ID, verified.ID)
	require.NotNil(t, verified.MFALastVerified)
	require.True(t, verified.MFALastVerified.Equal(now))
	require.NotNil(t, verified.LastLogin)
	require.False(t, verified.MustResetPassword)

	// The consumed session is purged inside the same transaction.
	var remaining int64
	require.NoError(t, db.Model(&models.MfaSession{}).
		Where("user_id = ?", identity.ID).Count(&remaining).Error)
	require.EqualValues(t, 0, remaining)

	// Identical second submission must be rejected.
	_, err = svc.Verify(ctx, identity.ID, session.Code)
	require.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized.Code))
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	access, db := openChallengeTestAccess(t)
	identity := seedIdentity(t, db)

	svc, err := NewChallengeService(access, nil, ChallengeConfig{})
	require.NoError(t, err)

	ctx := context.Background()

	_, err = svc.Issue(ctx, identity)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, identity.ID, "WRONGCOD")
	require.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized.Code))

	// The live session survives a failed attempt; the caller may retry.
	var live int64
	require.NoError(t, db.Model(&models.MfaSession{}).
		Where("user_id = ? AND used_at IS NULL", identity.ID).Count(&live).Error)
	require.EqualValues(t, 1, live)
}

func TestVerifyRejectsExpiredCode(t *testing.T) {
	access, db := openChallengeTestAccess(t)
	identity := seedIdentity(t, db)

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewChallengeService(access, nil, ChallengeConfig{
		Clock: func() time.Time { return current },
	})
	require.NoError(t, err)

	ctx := context.Background()

	session, err := svc.Issue(ctx, identity)
	require.NoError(t, err)

	// Advance past the 10-minute expiry.
	current = current.Add(11 * time.Minute)

	_, err = svc.Verify(ctx, identity.ID, session.Code)
	require.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized.Code))
}

func TestPurgeDeadRemovesOnlyDeadSessions(t *testing.T) {
	access, db := openChallengeTestAccess(t)
	identity := seedIdentity(t, db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	used := now.Add(-time.Hour)

	require.NoError(t, db.Create(&models.MfaSession{
		UserID:    identity.ID,
		Code:      "DEADCODE",
		ExpiresAt: now.Add(-time.Minute),
	}).Error)
	require.NoError(t, db.Create(&models.MfaSession{
		UserID:    identity.ID,
		Code:      "USEDCODE",
		ExpiresAt: now.Add(time.Hour),
		UsedAt:    &used,
	}).Error)
	require.NoError(t, db.Create(&models.MfaSession{
		UserID:    identity.ID,
		Code:      "LIVECODE",
		ExpiresAt: now.Add(5 * time.Minute),
	}).Error)

	svc, err := NewChallengeService(access, nil, ChallengeConfig{
		Clock: func() time.Time { return now },
	})
	require.NoError(t, err)

	removed, err := svc.PurgeDead(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	var sessions []models.MfaSession
	require.NoError(t, db.Find(&sessions, "user_id = ?", identity.ID).Error)
	require.Len(t, sessions, 1)
	require.Equal(t, "LIVECODE", sessions[0].Code)
}
