package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gfranca/barberhub/internal/auth/mfa"
	"github.com/gfranca/barberhub/internal/database"
	"github.com/gfranca/barberhub/internal/models"
)

var testDBCounter int

func openCleanupTestAccess(t *testing.T) (*database.Access, *gorm.DB) {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:maintenance_test_%d?mode=memory&cache=shared", testDBCounter)

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

func TestCleanerRunOncePurgesDeadSessions(t *testing.T) {
	access, db := openCleanupTestAccess(t)

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	challenges, err := mfa.NewChallengeService(access, nil, mfa.ChallengeConfig{Clock: clock})
	require.NoError(t, err)

	used := now.Add(-time.Hour)
	sessions := []models.MfaSession{
		{UserID: "u1", Code: "EXPIRED1", ExpiresAt: now.Add(-time.Minute)},
		{UserID: "u1", Code: "USEDCODE", ExpiresAt: now.Add(time.Minute), UsedAt: &used},
		{UserID: "u1", Code: "LIVECODE", ExpiresAt: now.Add(time.Minute)},
	}
	for i := range sessions {
		require.NoError(t, db.Create(&sessions[i]).Error)
	}

	cleaner := NewCleaner(challenges, WithNow(clock))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var remaining []models.MfaSession
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "LIVECODE", remaining[0].Code)
}

func TestCleanerStartRegistersJob(t *testing.T) {
	access, _ := openCleanupTestAccess(t)

	challenges, err := mfa.NewChallengeService(access, nil, mfa.ChallengeConfig{})
	require.NoError(t, err)

	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(challenges, WithCron(scheduler), WithChallengeSchedule("@every 1h"))

	require.NoError(t, cleaner.Start())
	require.Len(t, scheduler.Entries(), 1)
	<-cleaner.Stop().Done()
}

func TestCleanerWithoutChallengeServiceIsNoop(t *testing.T) {
	cleaner := NewCleaner(nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
