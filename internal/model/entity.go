package model

import (
	"time"

	"gorm.io/gorm"
)

// Entity status constants
const (
	EntityStatusActive   = "active"
	EntityStatusArchived = "archived"
)

// Entity type constants
const (
	EntityTypePersonal     = "personal"
	EntityTypeOrganization = "organization"
)

// Entity represents the tenant root stored in the database.
// Every account, contact and currency belongs to exactly one entity, and the
// entity's id keys the storage namespace that isolates that data.
type Entity struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	Type      string         `json:"type" gorm:"type:varchar(50);not null;default:'personal'"`
	Status    string         `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	OwnerID   uint           `json:"owner_id" gorm:"index;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Owner User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}
