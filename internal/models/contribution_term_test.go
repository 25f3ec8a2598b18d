package models

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextPeriodStart(t *testing.T) {
	tests := []struct {
		name     string
		term     ContributionTerm
		from     time.Time
		expected time.Time
	}{
		{
			name:     "monthly from mid-month",
			term:     ContributionTerm{Frequency: 1, Unit: TermUnitMonth},
			from:     date(2024, time.March, 15),
			expected: date(2024, time.April, 15),
		},
		{
			name:     "monthly from Jan 31 clamps to leap-year Feb 29",
			term:     ContributionTerm{Frequency: 1, Unit: TermUnitMonth},
			from:     date(2024, time.January, 31),
			expected: date(2024, time.February, 29),
		},
		{
			name:     "monthly from Jan 31 clamps to Feb 28",
			term:     ContributionTerm{Frequency: 1, Unit: TermUnitMonth},
			from:     date(2023, time.January, 31),
			expected: date(2023, time.February, 28),
		},
		{
			name:     "monthly advances from previous period start, not anchor",
			term:     ContributionTerm{Frequency: 1, Unit: TermUnitMonth},
			from:     date(2024, time.February, 29),
			expected: date(2024, time.March, 29),
		},
		{
			name:     "quarterly",
			term:     ContributionTerm{Frequency: 3, Unit: TermUnitMonth},
			from:     date(2024, time.November, 30),
			expected: date(2025, time.February, 28),
		},
		{
			name:     "weekly",
			term:     ContributionTerm{Frequency: 1, Unit: TermUnitWeek},
			from:     date(2024, time.January, 29),
			expected: date(2024, time.February, 5),
		},
		{
			name:     "biweekly",
			term:     ContributionTerm{Frequency: 2, Unit: TermUnitWeek},
			from:     date(2024, time.December, 23),
			expected: date(2025, time.January, 6),
		},
		{
			name:     "daily",
			term:     ContributionTerm{Frequency: 1, Unit: TermUnitDay},
			from:     date(2024, time.February, 28),
			expected: date(2024, time.February, 29),
		},
		{
			name:     "yearly from leap day clamps",
			term:     ContributionTerm{Frequency: 1, Unit: TermUnitYear},
			from:     date(2024, time.February, 29),
			expected: date(2025, time.February, 28),
		},
		{
			name:     "zero frequency treated as one",
			term:     ContributionTerm{Frequency: 0, Unit: TermUnitMonth},
			from:     date(2024, time.May, 31),
			expected: date(2024, time.June, 30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.term.NextPeriodStart(tt.from)
			if !got.Equal(tt.expected) {
				t.Errorf("NextPeriodStart(%s) = %s; want %s",
					tt.from.Format("2006-01-02"), got.Format("2006-01-02"), tt.expected.Format("2006-01-02"))
			}
		})
	}
}

func TestPeriodStartsNeverOverflowMonth(t *testing.T) {
	term := ContributionTerm{Frequency: 1, Unit: TermUnitMonth}

	// A year of month-end periods must stay on the last valid day instead
	// of drifting into the following month
	start := date(2024, time.January, 31)
	cur := start
	for i := 0; i < 12; i++ {
		next := term.NextPeriodStart(cur)
		if !next.After(cur) {
			t.Fatalf("period start did not advance: %s -> %s", cur, next)
		}
		if next.Day() > 31 || next.Sub(cur) > 32*24*time.Hour {
			t.Fatalf("period start overflowed month boundary: %s -> %s", cur, next)
		}
		cur = next
	}
}
