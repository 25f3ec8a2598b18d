package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"mahber_app_echo/internal/models"
	"mahber_app_echo/internal/services"
)

// SendNotificationTaskDef delivers queued notices over the channel each
// member prefers. Delivery failures never propagate to the business
// operation that queued the notice; failed recipients are re-queued as a
// fresh task up to the max attempt count.
type SendNotificationTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendNotificationTaskDef) TaskID() string {
	return services.TaskSendNotification
}

// HandleExecution sends the notice to every recipient and accounts for
// partial failure.
func (t *SendNotificationTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	argsBytes, err := json.Marshal(task.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var parsedArgs services.NotificationArgs
	if err := json.Unmarshal(argsBytes, &parsedArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	total := len(parsedArgs.Recipients)
	successCount := 0
	skippedCount := 0
	failureCount := 0
	var failures []string
	var failedRecipients []services.NotificationRecipient

	for _, recipient := range parsedArgs.Recipients {
		var pref models.MemberNotifPreference
		err := deps.DB.Where("user_id = ?", recipient.UserID).First(&pref).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Default to email when no preference is stored
				pref.Channel = models.NotificationChannelEmail
			} else {
				log.Printf("Error fetching preference for %s: %v", recipient.Name, err)
				failureCount++
				failures = append(failures, fmt.Sprintf("%s: db error", recipient.Name))
				failedRecipients = append(failedRecipients, recipient)
				continue
			}
		}

		var sendErr error
		switch pref.Channel {
		case models.NotificationChannelEmail:
			sendErr = sendEmailNotif(recipient, parsedArgs)
		case models.NotificationChannelSMS:
			sendErr = sendSMSNotif(recipient, parsedArgs)
		case models.NotificationChannelNone:
			log.Printf("Notification disabled for %s", recipient.Name)
			skippedCount++
			continue
		default:
			log.Printf("Unsupported notification channel %s for %s", pref.Channel, recipient.Name)
			skippedCount++
			continue
		}

		if sendErr != nil {
			log.Printf("Failed to notify %s via %s: %v", recipient.Name, pref.Channel, sendErr)
			failureCount++
			failures = append(failures, fmt.Sprintf("%s: %v", recipient.Name, sendErr))
			failedRecipients = append(failedRecipients, recipient)
		} else {
			successCount++
		}
	}

	result := map[string]interface{}{
		"total":   total,
		"success": successCount,
		"skipped": skippedCount,
		"failure": failureCount,
	}

	if failureCount > 0 {
		result["errors"] = failures

		attempt := parsedArgs.AttemptCount
		maxRetries := task.MaxAttempt

		if attempt < maxRetries {
			log.Printf("Partial failure: %d recipients failed. Rescheduling for attempt %d", len(failedRecipients), attempt+1)

			newArgs := parsedArgs
			newArgs.Recipients = failedRecipients
			newArgs.AttemptCount = attempt + 1

			nextRun := time.Now().Add(5 * time.Minute)

			newTask, err := BuildScheduledTask(t.TaskID(), newArgs, nextRun, nil, models.ScheduledTaskTypeOneTime, maxRetries)
			if err == nil {
				deps.DB.Create(newTask)
			} else {
				log.Printf("Failed to create retry task: %v", err)
			}
		} else {
			log.Printf("Max attempts (%d) reached for %d failed recipients.", maxRetries, len(failedRecipients))
			return result, fmt.Errorf("max attempts reached, failed to deliver to %d recipients", len(failedRecipients))
		}
	}

	return result, nil
}

// SendNotificationTask is the singleton instance of SendNotificationTaskDef
var SendNotificationTask = &SendNotificationTaskDef{}

func sendSMSNotif(recipient services.NotificationRecipient, args services.NotificationArgs) error {
	if args.Template == "" {
		return fmt.Errorf("notification template is missing")
	}
	if recipient.Phone == "" {
		return fmt.Errorf("recipient has no phone number")
	}

	smsService := services.NewSMSService()
	msg := replacePlaceholders(args.Template, recipient, args)
	return smsService.SendMessage(recipient.Phone, msg)
}

func sendEmailNotif(recipient services.NotificationRecipient, args services.NotificationArgs) error {
	if args.Template == "" {
		return fmt.Errorf("notification template is missing")
	}
	if recipient.Email == "" {
		return fmt.Errorf("recipient has no email address")
	}

	emailService := services.NewEmailService()

	subject := "Notification"
	if args.Subject != "" {
		subject = args.Subject
	}

	msg := replacePlaceholders(args.Template, recipient, args)
	return emailService.SendEmail([]string{recipient.Email}, subject, msg)
}

func replacePlaceholders(template string, recipient services.NotificationRecipient, args services.NotificationArgs) string {
	res := strings.ReplaceAll(template, "$name", recipient.Name)
	res = strings.ReplaceAll(res, "$email", recipient.Email)
	res = strings.ReplaceAll(res, "$payment_link", recipient.PaymentLink)
	res = strings.ReplaceAll(res, "$receipt_url", recipient.ReceiptURL)

	res = strings.ReplaceAll(res, "$mahber_name", args.MahberName)
	res = strings.ReplaceAll(res, "$amount", args.Amount)
	res = strings.ReplaceAll(res, "$due_date", args.DueDate)
	res = strings.ReplaceAll(res, "$interval", args.Interval)

	return res
}
