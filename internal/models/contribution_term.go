package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TermUnit is the calendar unit of a contribution schedule
type TermUnit string

const (
	TermUnitDay   TermUnit = "day"
	TermUnitWeek  TermUnit = "week"
	TermUnitMonth TermUnit = "month"
	TermUnitYear  TermUnit = "year"
)

// TermStatus marks whether a term is the one currently billed under
type TermStatus string

const (
	TermStatusActive   TermStatus = "active"
	TermStatusInactive TermStatus = "inactive"
)

// ContributionTerm is one billing-schedule configuration for a Mahber.
// Terms are never mutated once superseded; changing the schedule creates a
// new row and flips the old one to inactive. Historical terms are kept so
// past periods can still be attributed to the term they were billed under.
type ContributionTerm struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	MahberID uint `gorm:"index" json:"mahber_id"`

	Amount        decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	Frequency     int             `gorm:"default:1" json:"frequency"`
	Unit          TermUnit        `gorm:"type:varchar(10)" json:"unit"`
	EffectiveFrom time.Time       `json:"effective_from"`
	Status        TermStatus      `gorm:"type:varchar(20);default:'active'" json:"status"`

	// Relationships
	Mahber Mahber `gorm:"foreignKey:MahberID" json:"mahber,omitempty"`
}

// NextPeriodStart advances a period start date by one billing interval
// (frequency x unit). Month and year addition clamps to the last valid day
// of the target month, so a monthly term started on Jan 31 bills Feb 29 in
// a leap year rather than overflowing into March. Each period is advanced
// from the previous period's start date.
func (t ContributionTerm) NextPeriodStart(from time.Time) time.Time {
	freq := t.Frequency
	if freq < 1 {
		freq = 1
	}

	switch t.Unit {
	case TermUnitDay:
		return from.AddDate(0, 0, freq)
	case TermUnitWeek:
		return from.AddDate(0, 0, 7*freq)
	case TermUnitMonth:
		return addMonthsClamped(from, freq)
	case TermUnitYear:
		return addMonthsClamped(from, 12*freq)
	}
	// Unknown unit, fall back to monthly
	return addMonthsClamped(from, freq)
}

// addMonthsClamped adds months keeping the day-of-month, clamped to the
// last valid day of the target month (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	ny := y + total/12
	nm := time.Month(total%12 + 1)

	// Day zero of the following month is the last day of the target month
	last := time.Date(ny, nm+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > last {
		d = last
	}
	return time.Date(ny, nm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
