package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"mahber_app_echo/internal/models"
	"mahber_app_echo/internal/services"
)

// ContributionHandler exposes contribution listings and the public payment
// page data.
type ContributionHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
}

func NewContributionHandler(db *gorm.DB, payments *services.PaymentService) *ContributionHandler {
	return &ContributionHandler{db: db, payments: payments}
}

// ListContributions lists a Mahber's contributions with filtering and
// pagination.
func (h *ContributionHandler) ListContributions(c echo.Context) error {
	mahberID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid mahber ID")
	}

	statusFilter := c.QueryParam("status")
	userFilterStr := c.QueryParam("user_id")

	page := 1
	if pageStr := c.QueryParam("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	pageSize := 20

	query := h.db.Model(&models.Contribution{}).Where("mahber_id = ?", uint(mahberID))
	if statusFilter != "" {
		query = query.Where("status = ?", statusFilter)
	}
	if userFilterStr != "" {
		if val, err := strconv.ParseUint(userFilterStr, 10, 32); err == nil {
			query = query.Where("user_id = ?", uint(val))
		}
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to count contributions")
	}

	totalPages := int((totalCount + int64(pageSize) - 1) / int64(pageSize))
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	offset := (page - 1) * pageSize

	var contributions []models.Contribution
	err = query.Preload("User").
		Order("user_id asc, period_number asc").
		Limit(pageSize).Offset(offset).
		Find(&contributions).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch contributions")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"contributions": contributions,
		"page":          page,
		"total_pages":   totalPages,
		"total":         totalCount,
	})
}

// ListOutstanding returns a member's unpaid and partial periods in period
// order.
func (h *ContributionHandler) ListOutstanding(c echo.Context) error {
	mahberID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid mahber ID")
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	contributions, err := h.payments.GetOutstandingContributions(uint(mahberID), uint(userID))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, contributions)
}

// ShowContribution returns the public payment page data for one
// contribution, addressed by its public UUID.
func (h *ContributionHandler) ShowContribution(c echo.Context) error {
	uuid := c.Param("uuid")
	if uuid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid contribution UUID")
	}

	var contribution models.Contribution
	if err := h.db.Preload("Mahber").Preload("User").Preload("Term").
		Where("uuid = ?", uuid).First(&contribution).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return services.ErrContributionNotFound
		}
		return err
	}

	return c.JSON(http.StatusOK, contribution)
}
