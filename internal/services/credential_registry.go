package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"github.com/gfranca/barberhub/internal/database"
	"github.com/gfranca/barberhub/internal/models"
	"github.com/gfranca/barberhub/internal/validation"
	apperrors "github.com/gfranca/barberhub/pkg/errors"
)

var (
	// ErrShopNameTaken indicates another owner already uses the shop name.
	ErrShopNameTaken = apperrors.New("DUPLICATE_SHOP_NAME", "A barbershop with this name already exists", http.StatusConflict)
	// ErrShopNameOwn indicates the owner already has a shop with this name.
	ErrShopNameOwn = apperrors.New("DUPLICATE_OWN_SHOP_NAME", "You already have a barbershop with this name", http.StatusConflict)
)

// CredentialRegistry validates format and enforces uniqueness of identity
// fields before any write touches them. Conflict errors carry only a masked
// form of the existing binding, never the raw value.
type CredentialRegistry struct {
	access    *database.Access
	documents *validation.Registry
	locale    string
}

// NewCredentialRegistry constructs the registry for the given locale.
func NewCredentialRegistry(access *database.Access, documents *validation.Registry, locale string) (*CredentialRegistry, error) {
	if access == nil {
		return nil, errors.New("credential registry: resilient access is required")
	}
	if documents == nil {
		documents = validation.DefaultRegistry()
	}
	if strings.TrimSpace(locale) == "" {
		locale = "BR"
	}

	if _, err := documents.ForLocale(locale); err != nil {
		return nil, fmt.Errorf("credential registry: %w", err)
	}

	return &CredentialRegistry{
		access:    access,
		documents: documents,
		locale:    locale,
	}, nil
}

// UniquenessInput lists the identity fields to check. Nil fields are skipped;
// ExcludeID exempts the identity being updated from matching itself.
type UniquenessInput struct {
	ExcludeID string
	Email     *string
	CPF       *string
	Passport  *string
	Phone     *string
}

// CheckUnique validates the format of each supplied field and then verifies
// no other identity is bound to it. The checks are independent: the first
// failure is returned, and a failure in one field never depends on another.
func (r *CredentialRegistry) CheckUnique(ctx context.Context, input UniquenessInput) error {
	if input.Email != nil {
		if err := r.checkEmail(ctx, *input.Email, input.ExcludeID); err != nil {
			return err
		}
	}

	if input.CPF != nil {
		if err := r.checkCPF(ctx, *input.CPF, input.ExcludeID); err != nil {
			return err
		}
	}

	if input.Passport != nil {
		if err := r.checkPassport(ctx, *input.Passport, input.ExcludeID); err != nil {
			return err
		}
	}

	if input.Phone != nil {
		if err := r.checkPhone(ctx, *input.Phone, input.ExcludeID); err != nil {
			return err
		}
	}

	return nil
}

// NormalizeCPF returns the canonical digit form for the configured locale.
func (r *CredentialRegistry) NormalizeCPF(raw string) (string, error) {
	doc, err := r.documents.ForLocale(r.locale)
	if err != nil {
		return "", err
	}
	if err := doc.Validate(raw); err != nil {
		return "", err
	}
	return doc.Normalize(raw), nil
}

// NormalizePhone canonicalises the phone number before storage or lookup.
func (r *CredentialRegistry) NormalizePhone(raw string) (string, error) {
	return validation.NormalizePhone(raw)
}

func (r *CredentialRegistry) checkEmail(ctx context.Context, email, excludeID string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperrors.NewValidation("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.NewValidation("email", "email address is malformed")
	}

	return r.findConflict(ctx, "LOWER(email) = ?", email, excludeID, "email")
}

func (r *CredentialRegistry) checkCPF(ctx context.Context, raw, excludeID string) error {
	normalized, err := r.NormalizeCPF(raw)
	if err != nil {
		return err
	}

	return r.findConflict(ctx, "cpf = ?", normalized, excludeID, "cpf")
}

func (r *CredentialRegistry) checkPassport(ctx context.Context, raw, excludeID string) error {
	passport := strings.ToUpper(strings.TrimSpace(raw))
	if len(passport) < 6 || len(passport) > 12 {
		return apperrors.NewValidation("passport", "passport number must be 6 to 12 characters")
	}

	return r.findConflict(ctx, "passport = ?", passport, excludeID, "passport")
}

func (r *CredentialRegistry) checkPhone(ctx context.Context, raw, excludeID string) error {
	normalized, err := validation.NormalizePhone(raw)
	if err != nil {
		return err
	}

	return r.findConflict(ctx, "phone = ?", normalized, excludeID, "phone")
}

// findConflict looks up an identity bound to the value. A hit yields a
// ConflictError hinting at the masked email of the existing binding.
func (r *CredentialRegistry) findConflict(ctx context.Context, query, value, excludeID, field string) error {
	var existing models.Identity
	err := r.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		stmt := db.Where(query, value)
		if excludeID != "" {
			stmt = stmt.Where("id <> ?", excludeID)
		}
		return stmt.First(&existing).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("credential registry: lookup %s: %w", field, err)
	}

	return apperrors.NewConflict(field, MaskEmail(existing.Email))
}

// CheckShopName enforces case-insensitive uniqueness of a barbershop name,
// distinguishing a duplicate within the owner's own shops from a name taken
// by someone else.
func (r *CredentialRegistry) CheckShopName(ctx context.Context, ownerID, name, excludeShopID string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return apperrors.NewValidation("name", "barbershop name is required")
	}

	var existing models.Barbershop
	err := r.access.Run(ctx, database.ModeIdempotent, func(db *gorm.DB) error {
		stmt := db.Where("LOWER(name) = LOWER(?)", trimmed)
		if excludeShopID != "" {
			stmt = stmt.Where("id <> ?", excludeShopID)
		}
		return stmt.First(&existing).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("credential registry: lookup shop name: %w", err)
	}

	if existing.OwnerID == ownerID {
		return ErrShopNameOwn
	}
	return ErrShopNameTaken
}

// MaskEmail hides most of the local part so conflict hints cannot be used to
// harvest addresses: "mariana@x.com" becomes "ma***@x.com".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}

	visible := 2
	if at < visible {
		visible = at
	}

	return email[:visible] + "***" + email[at:]
}
