package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentCoverage is the ledger entry recording how much of a payment was
// applied to a specific contribution period. Rows are created only by the
// payment allocator and are immutable afterwards; for one payment the
// applied amounts sum to the payment total, never more.
type PaymentCoverage struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PaymentID      uint `gorm:"index" json:"payment_id"`
	ContributionID uint `gorm:"index" json:"contribution_id"`

	AmountApplied decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount_applied"`

	// Relationships
	Payment      Payment      `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
	Contribution Contribution `gorm:"foreignKey:ContributionID" json:"contribution,omitempty"`
}
