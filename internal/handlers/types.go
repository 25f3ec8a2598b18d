package handlers

import (
	"os"
	"time"

	"github.com/labstack/echo/v4"
)

// errorResponse is the uniform error body for JSON endpoints
type errorResponse struct {
	Error string `json:"error"`
}

// CreateMahberRequest creates a Mahber together with its opening
// contribution term.
type CreateMahberRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	Frequency     int    `json:"frequency"`
	Unit          string `json:"unit"`
	EffectiveFrom string `json:"effective_from"` // YYYY-MM-DD
	MemberUserIDs []uint `json:"member_user_ids"`
	GatewayRef    string `json:"gateway_account_ref"`
}

// ChangeTermRequest supersedes a Mahber's active contribution term
type ChangeTermRequest struct {
	Amount        string `json:"amount"`
	Frequency     int    `json:"frequency"`
	Unit          string `json:"unit"`
	EffectiveFrom string `json:"effective_from"` // YYYY-MM-DD
}

// MemberRequest identifies a user acting on a Mahber roster
type MemberRequest struct {
	UserID uint `json:"user_id"`
}

// CreateUserRequest registers a person
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// UpdatePreferenceRequest sets a member's notification channel
type UpdatePreferenceRequest struct {
	Channel string `json:"channel"`
}

// dateFromRequest parses the YYYY-MM-DD dates the API accepts
func dateFromRequest(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Helper to safely get string from context
func getStringFromContext(c echo.Context, key string) string {
	val := c.Get(key)
	if val == nil {
		return ""
	}
	strVal, ok := val.(string)
	if !ok {
		return ""
	}
	return strVal
}
