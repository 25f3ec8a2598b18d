package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mahber_app_echo/internal/models"
	"mahber_app_echo/internal/services"
)

// MahberHandler manages Mahbers, their rosters and their contribution
// terms.
type MahberHandler struct {
	db            *gorm.DB
	contributions *services.ContributionService
}

func NewMahberHandler(db *gorm.DB, contributions *services.ContributionService) *MahberHandler {
	return &MahberHandler{db: db, contributions: contributions}
}

// CreateMahber creates a Mahber with its opening term, invites the listed
// members and materializes their first contribution period.
func (h *MahberHandler) CreateMahber(c echo.Context) error {
	var req CreateMahberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid contribution amount")
	}
	// Gateway checkouts charge whole currency units
	if !amount.IsInteger() {
		return echo.NewHTTPError(http.StatusBadRequest, "Amount must be a whole number of currency units")
	}
	if req.Frequency < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "Frequency must be at least 1")
	}
	unit := models.TermUnit(req.Unit)
	switch unit {
	case models.TermUnitDay, models.TermUnitWeek, models.TermUnitMonth, models.TermUnitYear:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Unit must be day, week, month or year")
	}
	effectiveFrom, err := dateFromRequest(req.EffectiveFrom)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid effective_from date")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	var mahber models.Mahber
	err = h.db.Transaction(func(tx *gorm.DB) error {
		mahber = models.Mahber{
			Name:                 req.Name,
			Description:          req.Description,
			Currency:             currency,
			GatewayAccountRef:    req.GatewayRef,
			GatewayAccountStatus: models.GatewayAccountStatusNone,
			IsActive:             true,
		}
		if req.GatewayRef != "" {
			mahber.GatewayAccountStatus = models.GatewayAccountStatusPending
		}
		if err := tx.Create(&mahber).Error; err != nil {
			return err
		}

		term := models.ContributionTerm{
			MahberID:      mahber.ID,
			Amount:        amount,
			Frequency:     req.Frequency,
			Unit:          unit,
			EffectiveFrom: effectiveFrom,
			Status:        models.TermStatusActive,
		}
		if err := tx.Create(&term).Error; err != nil {
			return err
		}

		now := time.Now()
		for _, userID := range req.MemberUserIDs {
			membership := models.MahberMember{
				MahberID:   mahber.ID,
				UserID:     userID,
				Status:     models.MembershipStatusAccepted,
				AcceptedAt: &now,
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(req.MemberUserIDs) > 0 {
		if _, err := h.contributions.CreateInitialContributions(mahber.ID, req.MemberUserIDs, 1, effectiveFrom); err != nil {
			return err
		}
	}

	return c.JSON(http.StatusCreated, mahber)
}

// GetMahber returns one Mahber with its terms and roster
func (h *MahberHandler) GetMahber(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid mahber ID")
	}

	var mahber models.Mahber
	if err := h.db.Preload("Terms").Preload("Members.User").First(&mahber, uint(id)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return services.ErrMahberNotFound
		}
		return err
	}

	return c.JSON(http.StatusOK, mahber)
}

// ChangeTerm supersedes the active contribution term
func (h *MahberHandler) ChangeTerm(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid mahber ID")
	}

	var req ChangeTermRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid contribution amount")
	}
	// Gateway checkouts charge whole currency units
	if !amount.IsInteger() {
		return echo.NewHTTPError(http.StatusBadRequest, "Amount must be a whole number of currency units")
	}
	if req.Frequency < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "Frequency must be at least 1")
	}
	unit := models.TermUnit(req.Unit)
	switch unit {
	case models.TermUnitDay, models.TermUnitWeek, models.TermUnitMonth, models.TermUnitYear:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Unit must be day, week, month or year")
	}
	effectiveFrom, err := dateFromRequest(req.EffectiveFrom)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid effective_from date")
	}

	term, err := h.contributions.ChangeContributionTerm(uint(id), amount, req.Frequency, unit, effectiveFrom)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, term)
}

// ListMembers returns the accepted roster
func (h *MahberHandler) ListMembers(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid mahber ID")
	}

	members, err := h.contributions.ListAcceptedMembers(uint(id))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, members)
}

// InviteMember adds a user to the roster as invited
func (h *MahberHandler) InviteMember(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid mahber ID")
	}

	var req MemberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	var user models.User
	if err := h.db.First(&user, req.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return services.ErrMemberNotFound
		}
		return err
	}

	membership := models.MahberMember{
		MahberID: uint(id),
		UserID:   req.UserID,
		Status:   models.MembershipStatusInvited,
	}
	if err := h.db.Create(&membership).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, membership)
}

// AcceptMember accepts an invitation and creates the member's first
// contribution period.
func (h *MahberHandler) AcceptMember(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid mahber ID")
	}

	var req MemberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	contribution, err := h.contributions.AcceptMember(uint(id), req.UserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, contribution)
}
