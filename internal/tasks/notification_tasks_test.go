package tasks

import (
	"testing"

	"mahber_app_echo/internal/services"
)

func TestReplacePlaceholders(t *testing.T) {
	recipient := services.NotificationRecipient{
		UserID:      7,
		Name:        "Alem",
		Email:       "alem@example.com",
		PaymentLink: "http://localhost:8080/p/abc-123",
		ReceiptURL:  "https://gateway/receipt/9",
	}
	args := services.NotificationArgs{
		MahberName: "Sunrise Mahber",
		Amount:     "100.00",
		DueDate:    "2026-10-01",
		Interval:   "1 month",
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "recurring notice",
			template: services.TemplateRecurringNotice,
			expected: "Hi Alem, your contribution of 100.00 for Sunrise Mahber is due on 2026-10-01. Pay here: http://localhost:8080/p/abc-123",
		},
		{
			name:     "receipt notice",
			template: services.TemplateReceiptNotice,
			expected: "Hi Alem, we received your payment of 100.00 for Sunrise Mahber. Receipt: https://gateway/receipt/9",
		},
		{
			name:     "term change notice",
			template: services.TemplateTermChange,
			expected: "Hi Alem, the contribution for Sunrise Mahber changes to 100.00 every 1 month starting 2026-10-01.",
		},
		{
			name:     "no placeholders",
			template: "plain text",
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := replacePlaceholders(tt.template, recipient, args)
			if got != tt.expected {
				t.Errorf("replacePlaceholders() = %q; want %q", got, tt.expected)
			}
		})
	}
}
