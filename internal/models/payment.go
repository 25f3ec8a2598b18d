package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus represents the lifecycle state of a gateway transaction.
// pending/processing move to exactly one of the terminal states and never
// revert.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
	PaymentStatusExpired    PaymentStatus = "expired"
)

// PaymentMethod distinguishes recurring-checkout payments from ad hoc ones
type PaymentMethod string

const (
	PaymentMethodSubscription PaymentMethod = "subscription"
	PaymentMethodOneTime      PaymentMethod = "one-time"
)

// Payment records one confirmed gateway transaction for a member of a
// Mahber. Rows are created once the gateway confirms the money; the pending
// checkout phase lives in PaymentSession.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	MahberID uint `gorm:"index" json:"mahber_id"`
	UserID   uint `gorm:"index" json:"user_id"`

	ExternalPaymentRef string          `gorm:"type:varchar(100);index" json:"external_payment_ref"`
	ReceiptURL         string          `gorm:"type:text" json:"receipt_url"`
	Method             PaymentMethod   `gorm:"type:varchar(20);default:'one-time'" json:"method"`
	Amount             decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	Status             PaymentStatus   `gorm:"type:varchar(20);default:'pending'" json:"status"`
	SessionID          string          `gorm:"type:varchar(100)" json:"session_id"`

	// Relationships
	Mahber    Mahber            `gorm:"foreignKey:MahberID" json:"mahber,omitempty"`
	User      User              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Coverages []PaymentCoverage `gorm:"foreignKey:PaymentID" json:"coverages,omitempty"`
}
