package models

import (
	"time"

	"gorm.io/gorm"
)

// Role enumerates the access levels assigned at registration.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleStaff   Role = "STAFF"
	RolePending Role = "PENDING"
)

// RoleFromContext maps the registration context supplied by the client onto a
// role. Unknown contexts deliberately fall back to PENDING so an attacker
// cannot self-assign privileges.
func RoleFromContext(context string) Role {
	switch context {
	case "barbershop_owner":
		return RoleOwner
	case "staff":
		return RoleStaff
	default:
		return RolePending
	}
}

// IdentityStatus tracks the lifecycle of an identity record.
type IdentityStatus string

const (
	StatusActive   IdentityStatus = "ACTIVE"
	StatusInactive IdentityStatus = "INACTIVE"
)

// Identity is the canonical user record mirrored from the identity provider.
// Credential storage (password hashes) lives with the provider; this row holds
// the authorization and MFA attributes the backend owns.
type Identity struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`

	// Exactly one of CPF or Passport is set, decided by IsForeigner.
	CPF      *string `gorm:"uniqueIndex" json:"cpf,omitempty"`
	Passport *string `gorm:"uniqueIndex" json:"passport,omitempty"`
	Phone    string  `json:"phone"`

	Role   Role           `gorm:"type:varchar(16);default:PENDING" json:"role"`
	Status IdentityStatus `gorm:"type:varchar(16);default:ACTIVE" json:"status"`

	IsForeigner bool `gorm:"default:false" json:"is_foreigner"`

	MFAEnabled        bool       `gorm:"default:true" json:"mfa_enabled"`
	MFALastVerified   *time.Time `json:"mfa_last_verified"`
	MustResetPassword bool       `gorm:"default:false" json:"must_reset_password"`

	LastLogin *time.Time `json:"last_login"`

	MFASessions []MfaSession `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate keeps provider-assigned identifiers; rows created locally
// before the provider mirror exists are not expected.
func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	return nil
}

// DocumentConsistent reports whether the CPF/passport pairing matches the
// foreigner flag: foreigners carry a passport and no CPF, residents the inverse.
func (i *Identity) DocumentConsistent() bool {
	hasCPF := i.CPF != nil && *i.CPF != ""
	hasPassport := i.Passport != nil && *i.Passport != ""

	if i.IsForeigner {
		return hasPassport && !hasCPF
	}
	return hasCPF && !hasPassport
}
