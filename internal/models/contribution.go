package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContributionStatus represents the payment state of a contribution period
type ContributionStatus string

const (
	ContributionStatusUnpaid     ContributionStatus = "unpaid"
	ContributionStatusPartial    ContributionStatus = "partial"
	ContributionStatusPaid       ContributionStatus = "paid"
	ContributionStatusPending    ContributionStatus = "pending"
	ContributionStatusProcessing ContributionStatus = "processing"
	ContributionStatusFailed     ContributionStatus = "failed"
	ContributionStatusExpired    ContributionStatus = "expired"
)

// Contribution is one member's obligation for one billing period of a
// Mahber. The amount due is copied from the term at creation time and is
// never re-derived. The composite unique index on (mahber_id, user_id,
// period_number) makes period creation safe against concurrent rollover
// runs; duplicate inserts fail at the database rather than racing a
// read-then-write check.
type Contribution struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UUID string `gorm:"type:varchar(40);index" json:"uuid"`

	MahberID uint `gorm:"index;uniqueIndex:idx_contributions_period,priority:1" json:"mahber_id"`
	UserID   uint `gorm:"index;uniqueIndex:idx_contributions_period,priority:2" json:"user_id"`

	// PeriodNumber is 1-based and strictly increases with
	// PeriodStartDate for a given (mahber, member).
	PeriodNumber int `gorm:"uniqueIndex:idx_contributions_period,priority:3" json:"period_number"`

	ContributionTermID uint `gorm:"index" json:"contribution_term_id"`

	AmountDue  decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount_due"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"amount_paid"`

	Status          ContributionStatus `gorm:"type:varchar(20);default:'unpaid'" json:"status"`
	PeriodStartDate time.Time          `json:"period_start_date"`

	// Relationships
	Mahber    Mahber           `gorm:"foreignKey:MahberID" json:"mahber,omitempty"`
	User      User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Term      ContributionTerm `gorm:"foreignKey:ContributionTermID" json:"term,omitempty"`
	Coverages []PaymentCoverage `gorm:"foreignKey:ContributionID" json:"coverages,omitempty"`
}

// Outstanding reports how much of the period is still owed
func (c Contribution) Outstanding() decimal.Decimal {
	return c.AmountDue.Sub(c.AmountPaid)
}
