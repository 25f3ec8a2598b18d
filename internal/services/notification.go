package services

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mahber_app_echo/internal/models"
)

// TaskSendNotification is the queue task name the worker dispatches
// notification deliveries on.
const TaskSendNotification = "send_notification"

// Message templates for the notices the contribution core emits. Contents
// use $placeholders substituted at delivery time.
const (
	TemplateRecurringNotice = "Hi $name, your contribution of $amount for $mahber_name is due on $due_date. Pay here: $payment_link"
	TemplateReceiptNotice   = "Hi $name, we received your payment of $amount for $mahber_name. Receipt: $receipt_url"
	TemplateTermChange      = "Hi $name, the contribution for $mahber_name changes to $amount every $interval starting $due_date."
)

// NotificationRecipient identifies one member to notify
type NotificationRecipient struct {
	UserID      uint   `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	PaymentLink string `json:"payment_link"`
	ReceiptURL  string `json:"receipt_url"`
}

// NotificationArgs is the payload of a send_notification task
type NotificationArgs struct {
	Recipients   []NotificationRecipient `json:"recipients"`
	Template     string                  `json:"template"`
	Subject      string                  `json:"subject"`
	MahberName   string                  `json:"mahber_name"`
	Amount       string                  `json:"amount"`
	DueDate      string                  `json:"due_date"`
	Interval     string                  `json:"interval"`
	AttemptCount int                     `json:"attempt_count"`
}

// EnqueueNotification hands a notice to the scheduled-task queue. Callers
// invoke this only after their own transaction has committed; a failed
// enqueue is the caller's to log, never to fail on.
func EnqueueNotification(db *gorm.DB, args NotificationArgs) error {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal notification args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	task := models.ScheduledTask{
		TaskName:   TaskSendNotification,
		Arguments:  mapArgs,
		Due:        time.Now(),
		Status:     models.ScheduledTaskStatusActive,
		TaskType:   models.ScheduledTaskTypeOneTime,
		MaxAttempt: 3,
	}

	if err := db.Create(&task).Error; err != nil {
		return fmt.Errorf("failed to enqueue notification task: %w", err)
	}
	return nil
}
