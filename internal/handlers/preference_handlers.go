package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"mahber_app_echo/internal/models"
)

// PreferenceHandler manages notification channel preferences
type PreferenceHandler struct {
	db *gorm.DB
}

func NewPreferenceHandler(db *gorm.DB) *PreferenceHandler {
	return &PreferenceHandler{db: db}
}

// GetPreference returns a user's notification preference, defaulting to
// email when none is stored yet.
func (h *PreferenceHandler) GetPreference(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	var pref models.MemberNotifPreference
	err = h.db.Where("user_id = ?", uint(userID)).First(&pref).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			pref = models.MemberNotifPreference{
				UserID:  uint(userID),
				Channel: models.NotificationChannelEmail,
			}
		} else {
			return echo.NewHTTPError(http.StatusInternalServerError, "Error fetching preference")
		}
	}

	return c.JSON(http.StatusOK, pref)
}

// UpdatePreference upserts a user's notification channel
func (h *PreferenceHandler) UpdatePreference(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	var req UpdatePreferenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	channel := models.NotificationChannel(req.Channel)
	switch channel {
	case models.NotificationChannelEmail, models.NotificationChannelSMS, models.NotificationChannelNone:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Channel must be email, sms or none")
	}

	var pref models.MemberNotifPreference
	err = h.db.Where("user_id = ?", uint(userID)).First(&pref).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			pref = models.MemberNotifPreference{UserID: uint(userID)}
		} else {
			return echo.NewHTTPError(http.StatusInternalServerError, "Database error")
		}
	}

	pref.Channel = channel
	if err := h.db.Save(&pref).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save preference")
	}

	return c.JSON(http.StatusOK, pref)
}
