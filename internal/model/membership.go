package model

import (
	"time"
)

// Permission is a member's graded access level within an entity.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"

	// PermissionUnauthorized is the resolved level for users with no grant.
	// It is never stored.
	PermissionUnauthorized Permission = "unauthorized"
)

// Valid reports whether p is a grantable permission level.
func (p Permission) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionAdmin:
		return true
	}
	return false
}

// Level returns the permission's rank, higher meaning more capability.
// Unknown or unauthorized permissions rank 0.
func (p Permission) Level() int {
	switch p {
	case PermissionRead:
		return 1
	case PermissionWrite:
		return 2
	case PermissionAdmin:
		return 3
	}
	return 0
}

// AtLeast reports whether p grants at least the capability of q.
func (p Permission) AtLeast(q Permission) bool {
	return p.Level() >= q.Level()
}

// Membership links a non-owner user to an entity with a permission level.
// The entity's owner never has a membership row; ownership implies admin.
// Rows are hard-deleted on revocation so the unique index allows re-grants.
type Membership struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	EntityID   uint       `json:"entity_id" gorm:"uniqueIndex:idx_memberships_entity_user;not null"`
	UserID     uint       `json:"user_id" gorm:"uniqueIndex:idx_memberships_entity_user;not null"`
	Permission Permission `json:"permission" gorm:"type:varchar(20);not null;default:'read'"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Relations
	Entity Entity `json:"entity,omitempty" gorm:"foreignKey:EntityID"`
	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
