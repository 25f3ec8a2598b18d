package models

import (
	"testing"
	"time"
)

func TestNextDueOneTime(t *testing.T) {
	due := time.Date(2026, time.January, 1, 2, 0, 0, 0, time.UTC)
	task := ScheduledTask{TaskType: ScheduledTaskTypeOneTime, Due: due}

	if got := task.NextDue(); !got.Equal(due) {
		t.Errorf("NextDue() = %s; want unchanged %s", got, due)
	}
}

func TestNextDueRecurringDaily(t *testing.T) {
	rule := "RRULE:FREQ=DAILY"
	due := time.Now().AddDate(0, 0, -10).Truncate(time.Hour)
	task := ScheduledTask{
		TaskType:          ScheduledTaskTypeRecurring,
		Due:               due,
		RecurringInterval: &rule,
	}

	next := task.NextDue()
	if !next.After(due) {
		t.Fatalf("NextDue() = %s; want a date after %s", next, due)
	}
	if until := time.Until(next); until > 24*time.Hour {
		t.Errorf("NextDue() = %s; want within the next day, got %s away", next, until)
	}
}

func TestNextDueRecurringBadRule(t *testing.T) {
	rule := "not-an-rrule"
	due := time.Now().AddDate(0, 0, -1)
	task := ScheduledTask{
		TaskType:          ScheduledTaskTypeRecurring,
		Due:               due,
		RecurringInterval: &rule,
	}

	// Unparseable rules fall back to the stored due date
	if got := task.NextDue(); !got.Equal(due) {
		t.Errorf("NextDue() = %s; want fallback %s", got, due)
	}
}
