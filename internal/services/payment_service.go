package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mahber_app_echo/internal/models"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// PaymentService allocates confirmed gateway payments across a member's
// outstanding contribution periods and manages checkout sessions.
type PaymentService struct {
	db             *gorm.DB
	midtransClient *MidtransService
}

func NewPaymentService(db *gorm.DB, midtransClient *MidtransService) *PaymentService {
	return &PaymentService{
		db:             db,
		midtransClient: midtransClient,
	}
}

// HandlePayment records a confirmed payment and distributes it across the
// member's unpaid and partial periods, oldest period first. Everything runs
// in one transaction: on success the coverage rows sum exactly to the paid
// amount; if the amount exceeds everything outstanding the whole allocation
// rolls back with ErrOverpayment rather than banking a credit.
//
// Allocation never reaches into periods that start under a future-dated
// term: those will be billed at a possibly different amount, so paying them
// early would allocate against the wrong price.
func (s *PaymentService) HandlePayment(mahberID, userID uint, paymentRef string, amountPaid decimal.Decimal, receiptURL string) (*models.Payment, error) {
	var payment models.Payment

	err := s.db.Transaction(func(tx *gorm.DB) error {
		payment = models.Payment{
			MahberID:           mahberID,
			UserID:             userID,
			ExternalPaymentRef: paymentRef,
			ReceiptURL:         receiptURL,
			Method:             models.PaymentMethodOneTime,
			Amount:             amountPaid,
			Status:             models.PaymentStatusPaid,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		outstanding, err := s.outstandingForAllocation(tx, mahberID, userID)
		if err != nil {
			return err
		}

		remaining := amountPaid
		for i := range outstanding {
			c := &outstanding[i]

			due := c.AmountDue.Sub(c.AmountPaid)
			if due.LessThanOrEqual(decimal.Zero) {
				continue
			}

			apply := decimal.Min(remaining, due)

			c.AmountPaid = c.AmountPaid.Add(apply)
			if c.AmountPaid.GreaterThanOrEqual(c.AmountDue) {
				c.Status = models.ContributionStatusPaid
			} else {
				c.Status = models.ContributionStatusPartial
			}
			if err := tx.Model(&models.Contribution{}).Where("id = ?", c.ID).
				Updates(map[string]interface{}{
					"amount_paid": c.AmountPaid,
					"status":      c.Status,
				}).Error; err != nil {
				return err
			}

			coverage := models.PaymentCoverage{
				PaymentID:      payment.ID,
				ContributionID: c.ID,
				AmountApplied:  apply,
			}
			if err := tx.Create(&coverage).Error; err != nil {
				return err
			}

			remaining = remaining.Sub(apply)
			if remaining.LessThanOrEqual(decimal.Zero) {
				break
			}
		}

		if remaining.GreaterThan(decimal.Zero) {
			return ErrOverpayment
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyReceipt(mahberID, userID, amountPaid, receiptURL)
	return &payment, nil
}

// outstandingForAllocation loads the member's payable periods ordered
// oldest first, bounded to periods starting before the next future term
// takes effect.
func (s *PaymentService) outstandingForAllocation(tx *gorm.DB, mahberID, userID uint) ([]models.Contribution, error) {
	query := tx.Where("mahber_id = ? AND user_id = ? AND status IN ?",
		mahberID, userID,
		[]models.ContributionStatus{models.ContributionStatusUnpaid, models.ContributionStatusPartial})

	var nextTerm models.ContributionTerm
	err := tx.Where("mahber_id = ? AND effective_from > ?", mahberID, time.Now()).
		Order("effective_from asc").First(&nextTerm).Error
	if err == nil {
		query = query.Where("period_start_date < ?", nextTerm.EffectiveFrom)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var contributions []models.Contribution
	if err := query.Order("period_number asc").Find(&contributions).Error; err != nil {
		return nil, err
	}
	return contributions, nil
}

// GetOutstandingContributions returns the member's unpaid and partial
// periods in period order. Read only.
func (s *PaymentService) GetOutstandingContributions(mahberID, userID uint) ([]models.Contribution, error) {
	var contributions []models.Contribution
	err := s.db.Where("mahber_id = ? AND user_id = ? AND status IN ?",
		mahberID, userID,
		[]models.ContributionStatus{models.ContributionStatusUnpaid, models.ContributionStatusPartial}).
		Order("period_number asc").
		Find(&contributions).Error
	if err != nil {
		return nil, err
	}
	return contributions, nil
}

// GetPaymentHistory returns the member's payments, newest first
func (s *PaymentService) GetPaymentHistory(mahberID, userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.Where("mahber_id = ? AND user_id = ?", mahberID, userID).
		Order("created_at desc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// GetPaymentCoverage returns the coverage ledger of one payment
func (s *PaymentService) GetPaymentCoverage(paymentID uint) ([]models.PaymentCoverage, error) {
	var coverages []models.PaymentCoverage
	err := s.db.Preload("Contribution").
		Where("payment_id = ?", paymentID).
		Order("id asc").
		Find(&coverages).Error
	if err != nil {
		return nil, err
	}
	return coverages, nil
}

// CheckActiveSession checks if there is an active checkout session for the
// given contribution. Returns nil without error when none exists.
func (s *PaymentService) CheckActiveSession(contributionID uint) (*models.PaymentSession, error) {
	var existingSession models.PaymentSession
	err := s.db.Where("contribution_id = ? AND is_active = ?", contributionID, true).
		Order("created_at desc").First(&existingSession).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &existingSession, nil
}

// InitiatePaymentResult holds the result of an initiation attempt
type InitiatePaymentResult struct {
	Token       string
	RedirectURL string
	IsExisting  bool
}

// InitiatePayment starts or resumes a gateway checkout for a contribution.
// The contribution must have Mahber and User preloaded. An active pending
// session is reused unless forceNew cancels it; dead sessions are retired
// before creating a fresh one.
//
// The gateway carries whole currency units only, so the outstanding amount
// is charged exactly, never rounded: a rounded charge would settle for more
// than the ledger owes and the allocator would reject every delivery of the
// confirmation.
func (s *PaymentService) InitiatePayment(c *models.Contribution, forceNew bool, callbackURL string) (*InitiatePaymentResult, error) {
	outstanding := c.Outstanding()
	if !outstanding.IsInteger() {
		return nil, fmt.Errorf("%w: outstanding %s for contribution %d", ErrUnchargeableAmount, outstanding.String(), c.ID)
	}

	existingSession, err := s.CheckActiveSession(c.ID)
	if err != nil {
		return nil, err
	}

	if existingSession != nil {
		statusResp, err := s.midtransClient.CheckTransaction(existingSession.OrderID)
		if err == nil {
			switch statusResp.TransactionStatus {
			case "settlement", "capture":
				return nil, fmt.Errorf("payment already made")
			case "deny", "expire", "cancel", "failure":
				existingSession.IsActive = false
				s.db.Save(existingSession)
			default:
				// Still pending at the gateway
				if forceNew {
					if err := s.midtransClient.CancelTransaction(existingSession.OrderID); err != nil {
						log.Printf("Failed to cancel order %s: %v", existingSession.OrderID, err)
					}
					existingSession.IsActive = false
					s.db.Save(existingSession)
				} else {
					var midtransResp snap.Response
					if err := json.Unmarshal(existingSession.ResponseMetadata, &midtransResp); err == nil {
						return &InitiatePaymentResult{
							Token:       midtransResp.Token,
							RedirectURL: midtransResp.RedirectURL,
							IsExisting:  true,
						}, nil
					}
					// Stored response is unreadable, treat the session as broken
					existingSession.IsActive = false
					s.db.Save(existingSession)
				}
			}
		} else {
			// Status check failed, retire the local session
			existingSession.IsActive = false
			s.db.Save(existingSession)
		}
	}

	orderID := fmt.Sprintf("contribution-%d-%d", c.ID, time.Now().Unix())
	grossAmt := outstanding.IntPart()

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: grossAmt,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: c.User.Name,
			Email: c.User.Email,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    fmt.Sprintf("mahber-%d-period-%d", c.MahberID, c.PeriodNumber),
				Name:  fmt.Sprintf("Contribution for %s", c.Mahber.Name),
				Price: grossAmt,
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: callbackURL,
		},
	}

	resp, err := s.midtransClient.CreateTransaction(orderID, grossAmt, req)
	if err != nil {
		return nil, err
	}

	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)

	session := models.PaymentSession{
		MahberID:         c.MahberID,
		ContributionID:   c.ID,
		UserID:           c.UserID,
		PaymentGateway:   models.PaymentGatewayMidtrans,
		OrderID:          orderID,
		IsActive:         true,
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, err
	}

	return &InitiatePaymentResult{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		IsExisting:  false,
	}, nil
}

// GatewayNotification is the subset of the midtrans webhook payload the
// core consumes.
type GatewayNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}

// ProcessGatewayNotification is the webhook entry point. The raw payload is
// audited first, the signature verified, and on settlement the payment is
// allocated. Gateways redeliver notifications, so a transaction reference
// that was already allocated is acknowledged without reprocessing.
func (s *PaymentService) ProcessGatewayNotification(raw json.RawMessage, notif GatewayNotification) error {
	history := models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        notif.OrderID,
		Metadata:       raw,
	}
	if err := s.db.Create(&history).Error; err != nil {
		log.Printf("Failed to record callback history for order %s: %v", notif.OrderID, err)
	}

	if !s.midtransClient.VerifySignature(notif.OrderID, notif.StatusCode, notif.GrossAmount, notif.SignatureKey) {
		return fmt.Errorf("invalid signature for order %s", notif.OrderID)
	}

	var session models.PaymentSession
	if err := s.db.Where("order_id = ?", notif.OrderID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no payment session for order %s", notif.OrderID)
		}
		return err
	}

	switch notif.TransactionStatus {
	case "settlement", "capture":
		if notif.FraudStatus == "challenge" || notif.FraudStatus == "deny" {
			log.Printf("Order %s held by fraud status %s", notif.OrderID, notif.FraudStatus)
			return nil
		}

		// Redelivery of an already-allocated confirmation
		var existing models.Payment
		err := s.db.Where("external_payment_ref = ?", notif.TransactionID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		amount, err := decimal.NewFromString(notif.GrossAmount)
		if err != nil {
			return fmt.Errorf("invalid gross amount %q: %w", notif.GrossAmount, err)
		}

		if _, err := s.HandlePayment(session.MahberID, session.UserID, notif.TransactionID, amount, ""); err != nil {
			return err
		}

		session.IsActive = false
		s.db.Save(&session)
		return nil

	case "deny", "expire", "cancel", "failure":
		session.IsActive = false
		s.db.Save(&session)
		return nil
	}

	// pending and other intermediate states need no action
	return nil
}

// notifyReceipt queues a payment-success receipt. Fire and forget.
func (s *PaymentService) notifyReceipt(mahberID, userID uint, amount decimal.Decimal, receiptURL string) {
	var mahber models.Mahber
	if err := s.db.First(&mahber, mahberID).Error; err != nil {
		log.Printf("Failed to load mahber %d for receipt: %v", mahberID, err)
		return
	}
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		log.Printf("Failed to load user %d for receipt: %v", userID, err)
		return
	}

	args := NotificationArgs{
		Recipients: []NotificationRecipient{{
			UserID:     user.ID,
			Name:       user.Name,
			Email:      user.Email,
			Phone:      user.Phone,
			ReceiptURL: receiptURL,
		}},
		Template:   TemplateReceiptNotice,
		Subject:    fmt.Sprintf("Payment received for %s", mahber.Name),
		MahberName: mahber.Name,
		Amount:     amount.StringFixed(2),
	}
	if err := EnqueueNotification(s.db, args); err != nil {
		log.Printf("Failed to enqueue receipt for user %d: %v", userID, err)
	}
}
