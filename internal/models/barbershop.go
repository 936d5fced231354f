package models

// Barbershop is the owning entity for staff and schedules. Only the fields
// the auth core needs are modelled here; shop management lives elsewhere.
type Barbershop struct {
	BaseModel

	OwnerID string   `gorm:"type:uuid;index;not null" json:"owner_id"`
	Owner   Identity `gorm:"foreignKey:OwnerID" json:"-"`

	Name string `gorm:"not null" json:"name"`
}
