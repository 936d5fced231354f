package models

import "time"

// MfaSession represents one emailed verification code. The table, not process
// memory, is the source of truth for which challenge is live, so the same
// rules hold across concurrent server processes.
type MfaSession struct {
	BaseModel

	UserID   string   `gorm:"type:uuid;index;not null" json:"user_id"`
	Identity Identity `gorm:"foreignKey:UserID" json:"-"`

	Code      string     `gorm:"not null" json:"-"`
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`

	CodeExpiryMinutes   int `gorm:"default:10" json:"code_expiry_minutes"`
	SessionDurationDays int `gorm:"default:14" json:"session_duration_days"`
}

// Live reports whether the session can still be redeemed at the given time.
func (s *MfaSession) Live(now time.Time) bool {
	return s.UsedAt == nil && !s.ExpiresAt.Before(now)
}
