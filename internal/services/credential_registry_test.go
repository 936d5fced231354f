package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gfranca/barberhub/internal/database"
	"github.com/gfranca/barberhub/internal/models"
	apperrors "github.com/gfranca/barberhub/pkg/errors"
)

var testDBCounter int

func openServicesTestAccess(t *testing.T) (*database.Access, *gorm.DB) {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:services_test_%d?mode=memory&cache=shared", testDBCounter)

	manager, err := database.NewConnectionManagerWithOpener(func() (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	})
	require.NoError(t, err)

	db, _ := manager.DB()
	require.NoError(t, db.AutoMigrate(&models.Identity{}, &models.MfaSession{}, &models.Barbershop{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	access, err := database.NewAccess(manager, database.RetryConfig{})
	require.NoError(t, err)

	return access, db
}

func seedRegistryIdentity(t *testing.T, db *gorm.DB, id, email, cpf, phone string) *models.Identity {
	t.Helper()

	identity := &models.Identity{
		ID:         id,
		Email:      email,
		Name:       "Seeded",
		Phone:      phone,
		Role:       models.RoleStaff,
		Status:     models.StatusActive,
		MFAEnabled: true,
	}
	if cpf != "" {
		identity.CPF = &cpf
	}
	require.NoError(t, db.Create(identity).Error)
	return identity
}

func strPtr(s string) *string { return &s }

func TestCheckUniqueAllFieldsFree(t *testing.T) {
	access, _ := openServicesTestAccess(t)

	registry, err := NewCredentialRegistry(access, nil, "BR")
	require.NoError(t, err)

	err = registry.CheckUnique(context.Background(), UniquenessInput{
		Email: strPtr("novo@exemplo.com"),
		CPF:   strPtr("529.982.247-25"),
		Phone: strPtr("(11) 98765-4321"),
	})
	require.NoError(t, err)
}

func TestCheckUniqueEmailConflictMasksHint(t *testing.T) {
	access, db := openServicesTestAccess(t)
	seedRegistryIdentity(t, db, "u1", "mariana@exemplo.com", "52998224725", "+5511987654321")

	registry, err := NewCredentialRegistry(access, nil, "BR")
	require.NoError(t, err)

	err = registry.CheckUnique(context.Background(), UniquenessInput{
		Email: strPtr("MARIANA@exemplo.com"),
	})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "DUPLICATE_EMAIL"))

	appErr := apperrors.FromError(err)
	require.Equal(t, "ma***@exemplo.com", appErr.Hint)
}

func TestCheckUniqueCPFConflictAcrossFormats(t *testing.T) {
	access, db := openServicesTestAccess(t)
	seedRegistryIdentity(t, db, "u1", "a@x.com", "52998224725", "+5511987654321")

	registry, err := NewCredentialRegistry(access, nil, "BR")
	require.NoError(t, err)

	// Formatted input must collide with the stored canonical digits.
	err = registry.CheckUnique(context.Background(), UniquenessInput{
		CPF: strPtr("529.982.247-25"),
	})
	require.True(t, apperrors.IsCode(err, "DUPLICATE_CPF"))
}

func TestCheckUniquePhoneConflictAcrossFormats(t *testing.T) {
	access, db := openServicesTestAccess(t)
	seedRegistryIdentity(t, db, "u1", "a@x.com", "", "+5511987654321")

	registry, err := NewCredentialRegistry(access, nil, "BR")
	require.NoError(t, err)

	err = registry.CheckUnique(context.Background(), UniquenessInput{
		Phone: strPtr("11 98765 4321"),
	})
	require.True(t, apperrors.IsCode(err, "DUPLICATE_PHONE"))
}

func TestCheckUniqueExcludesSelf(t *testing.T) {
	access, db := openServicesTestAccess(t)
	seedRegistryIdentity(t, db, "u1", "a@x.com", "52998224725", "+5511987654321")

	registry, err := NewCredentialRegistry(access, nil, "BR")
	require.NoError(t, err)

	// The identity keeping its own values must not conflict with itself.
	err = registry.CheckUnique(context.Background(), UniquenessInput{
		ExcludeID: "u1",
		Email:     strPtr("a@x.com"),
		CPF:       strPtr("52998224725"),
		Phone:     strPtr("+5511987654321"),
	})
	require.NoError(t, err)
}

func TestCheckUniqueRejectsMalformedBeforeLookup(t *testing.T) {
	access, _ := openServicesTestAccess(t)

	registry, err := NewCredentialRegistry(access, nil, "BR")
	require.NoError(t, err)

	err = registry.CheckUnique(context.Background(), UniquenessInput{Email: strPtr("not-an-email")})
	require.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))

	err = registry.CheckUnique(context.Background(), UniquenessInput{CPF: strPtr("529.982.247-26")})
	require.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))

	err = registry.CheckUnique(context.Background(), UniquenessInput{Passport: strPtr("AB1")})
	require.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))
}

func TestCheckShopName(t *testing.T) {
	access, db := openServicesTestAccess(t)
	seedRegistryIdentity(t, db, "owner-1", "a@x.com", "52998224725", "+5511987654321")
	require.NoError(t, db.Create(&models.Barbershop{OwnerID: "owner-1", Name: "Navalha de Ouro"}).Error)

	registry, err := NewCredentialRegistry(access, nil, "BR")
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, registry.CheckShopName(ctx, "owner-1", "Outro Nome", ""))

	err = registry.CheckShopName(ctx, "owner-1", "navalha de ouro", "")
	require.ErrorIs(t, err, ErrShopNameOwn)

	err = registry.CheckShopName(ctx, "owner-2", "NAVALHA DE OURO", "")
	require.ErrorIs(t, err, ErrShopNameTaken)
}

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "ma***@exemplo.com", MaskEmail("mariana@exemplo.com"))
	require.Equal(t, "a***@x.com", MaskEmail("a@x.com"))
	require.Equal(t, "***", MaskEmail("not-an-email"))
	require.Equal(t, "***", MaskEmail(""))
}
