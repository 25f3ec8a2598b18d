package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"mahber_app_echo/internal/models"
	"mahber_app_echo/internal/services"
)

// PaymentHandler exposes checkout initiation, the gateway webhook and the
// payment reporting reads.
type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
}

func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments}
}

// InitiatePayment creates (or resumes) a gateway checkout session for a
// contribution addressed by its public UUID.
func (h *PaymentHandler) InitiatePayment(c echo.Context) error {
	uuid := c.Param("uuid")
	if uuid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid contribution UUID")
	}

	var contribution models.Contribution
	if err := h.db.Preload("Mahber").Preload("User").
		Where("uuid = ?", uuid).First(&contribution).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return services.ErrContributionNotFound
		}
		return err
	}

	if contribution.Status == models.ContributionStatusPaid {
		return echo.NewHTTPError(http.StatusBadRequest, "Contribution is already paid")
	}

	forceNew := c.QueryParam("force_new") == "true"
	callbackURL := getEnv("APP_URL", "http://localhost:8080") + "/p/" + uuid

	result, err := h.payments.InitiatePayment(&contribution, forceNew, callbackURL)
	if err != nil {
		if err.Error() == "payment already made" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Payment is already made. Please check the status."})
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":        result.Token,
		"redirect_url": result.RedirectURL,
		"is_existing":  result.IsExisting,
	})
}

// HandleGatewayNotification is the unauthenticated webhook the gateway
// posts transaction updates to. Always answers 200 for payloads that were
// accepted for processing, per gateway retry semantics.
func (h *PaymentHandler) HandleGatewayNotification(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read body")
	}

	var notif services.GatewayNotification
	if err := json.Unmarshal(raw, &notif); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification payload")
	}

	if err := h.payments.ProcessGatewayNotification(raw, notif); err != nil {
		log.Printf("Webhook processing failed for order %s: %v", notif.OrderID, err)
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// PaymentHistory returns a member's payments, newest first
func (h *PaymentHandler) PaymentHistory(c echo.Context) error {
	mahberID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid mahber ID")
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	payments, err := h.payments.GetPaymentHistory(uint(mahberID), uint(userID))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payments)
}

// PaymentCoverage returns the coverage ledger of one payment
func (h *PaymentHandler) PaymentCoverage(c echo.Context) error {
	paymentID, err := strconv.ParseUint(c.Param("paymentId"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid payment ID")
	}

	coverages, err := h.payments.GetPaymentCoverage(uint(paymentID))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, coverages)
}
