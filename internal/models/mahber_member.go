package models

import (
	"time"

	"gorm.io/gorm"
)

// MembershipStatus represents the state of a user's membership in a Mahber
type MembershipStatus string

const (
	MembershipStatusInvited  MembershipStatus = "invited"
	MembershipStatusAccepted MembershipStatus = "accepted"
	MembershipStatusLeft     MembershipStatus = "left"
)

// MahberMember links a User to a Mahber. Only accepted members receive
// contribution periods.
type MahberMember struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	MahberID uint `gorm:"index:idx_mahber_members_mahber_user,unique,where:deleted_at IS NULL" json:"mahber_id"`
	UserID   uint `gorm:"index:idx_mahber_members_mahber_user,unique,where:deleted_at IS NULL" json:"user_id"`

	Status     MembershipStatus `gorm:"type:varchar(20);default:'invited'" json:"status"`
	AcceptedAt *time.Time       `json:"accepted_at"`

	// Relationships
	Mahber Mahber `gorm:"foreignKey:MahberID" json:"mahber,omitempty"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
