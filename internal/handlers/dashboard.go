package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"mahber_app_echo/internal/models"
	"mahber_app_echo/internal/services"
)

// DashboardHandler serves aggregate counters for the admin overview
type DashboardHandler struct {
	db    *gorm.DB
	cache *services.RedisCache
}

func NewDashboardHandler(db *gorm.DB, cache *services.RedisCache) *DashboardHandler {
	return &DashboardHandler{db: db, cache: cache}
}

// DashboardStats is the summary payload
type DashboardStats struct {
	ActiveMahbers      int64 `json:"active_mahbers"`
	AcceptedMembers    int64 `json:"accepted_members"`
	OutstandingPeriods int64 `json:"outstanding_periods"`
	PaymentsThisMonth  int64 `json:"payments_this_month"`
}

// Dashboard returns the summary counters, cached briefly since they back
// an overview page, not accounting.
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	load := func() (DashboardStats, error) {
		var stats DashboardStats
		if err := h.db.Model(&models.Mahber{}).Where("is_active = ?", true).Count(&stats.ActiveMahbers).Error; err != nil {
			return stats, err
		}
		if err := h.db.Model(&models.MahberMember{}).Where("status = ?", models.MembershipStatusAccepted).Count(&stats.AcceptedMembers).Error; err != nil {
			return stats, err
		}
		if err := h.db.Model(&models.Contribution{}).Where("status IN ?",
			[]models.ContributionStatus{models.ContributionStatusUnpaid, models.ContributionStatusPartial}).
			Count(&stats.OutstandingPeriods).Error; err != nil {
			return stats, err
		}
		monthStart := time.Now().AddDate(0, 0, 1-time.Now().Day())
		monthStart = time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, monthStart.Location())
		if err := h.db.Model(&models.Payment{}).
			Where("status = ? AND created_at >= ?", models.PaymentStatusPaid, monthStart).
			Count(&stats.PaymentsThisMonth).Error; err != nil {
			return stats, err
		}
		return stats, nil
	}

	var stats DashboardStats
	var err error
	if h.cache != nil {
		stats, err = services.GetOrSet(h.cache, ctx, "dashboard:stats", time.Minute, load)
	} else {
		stats, err = load()
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}
