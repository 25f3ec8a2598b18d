package models

import (
	"time"

	"gorm.io/gorm"
)

// GatewayAccountStatus tracks the state of a Mahber's account at the
// payment gateway. Transitions: none -> pending -> active, and an active
// account can fall back to pending if the gateway revokes its capability.
type GatewayAccountStatus string

const (
	GatewayAccountStatusNone    GatewayAccountStatus = "none"
	GatewayAccountStatusPending GatewayAccountStatus = "pending"
	GatewayAccountStatusActive  GatewayAccountStatus = "active"
)

// Mahber represents a member-owned financial association. It owns a roster
// of members, a versioned contribution schedule and all contribution and
// payment records created under it.
type Mahber struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name        string `gorm:"type:varchar(255)" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Currency    string `gorm:"type:varchar(10);default:'USD'" json:"currency"`

	GatewayAccountRef    string               `gorm:"type:varchar(100)" json:"gateway_account_ref"`
	GatewayAccountStatus GatewayAccountStatus `gorm:"type:varchar(20);default:'none'" json:"gateway_account_status"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	// Relationships
	Members       []MahberMember     `gorm:"foreignKey:MahberID" json:"members,omitempty"`
	Terms         []ContributionTerm `gorm:"foreignKey:MahberID" json:"terms,omitempty"`
	Contributions []Contribution     `gorm:"foreignKey:MahberID" json:"contributions,omitempty"`
}
