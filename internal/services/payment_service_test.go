package services

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mahber_app_echo/internal/models"
)

func TestHandlePaymentOldestFirst(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(100), 1, models.TermUnitMonth, time.Now().AddDate(0, -3, 0), 1)
	svc := NewPaymentService(db, &MidtransService{})
	userID := fx.users[0].ID

	base := time.Now().AddDate(0, -3, 0)
	c1 := seedContribution(t, db, fx, userID, 1, decimal.NewFromInt(10), base)
	c2 := seedContribution(t, db, fx, userID, 2, decimal.NewFromInt(20), base.AddDate(0, 1, 0))
	c3 := seedContribution(t, db, fx, userID, 3, decimal.NewFromInt(5), base.AddDate(0, 2, 0))

	payment, err := svc.HandlePayment(fx.mahber.ID, userID, "txn-oldest-first", decimal.NewFromInt(15), "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)

	r1 := reloadContribution(t, db, c1.ID)
	r2 := reloadContribution(t, db, c2.ID)
	r3 := reloadContribution(t, db, c3.ID)

	assert.Equal(t, models.ContributionStatusPaid, r1.Status)
	assert.True(t, r1.AmountPaid.Equal(decimal.NewFromInt(10)))

	assert.Equal(t, models.ContributionStatusPartial, r2.Status)
	assert.True(t, r2.AmountPaid.Equal(decimal.NewFromInt(5)))

	assert.Equal(t, models.ContributionStatusUnpaid, r3.Status)
	assert.True(t, r3.AmountPaid.IsZero())

	// Coverage rows account for every cent of the payment
	var coverages []models.PaymentCoverage
	require.NoError(t, db.Where("payment_id = ?", payment.ID).Find(&coverages).Error)
	require.Len(t, coverages, 2)

	total := decimal.Zero
	for _, cov := range coverages {
		total = total.Add(cov.AmountApplied)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(15)))
}

func TestHandlePaymentExactSinglePeriod(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(100), 1, models.TermUnitMonth, time.Now().AddDate(0, 0, -1), 1)
	svc := NewPaymentService(db, &MidtransService{})
	userID := fx.users[0].ID

	c := seedContribution(t, db, fx, userID, 1, decimal.NewFromInt(100), time.Now().AddDate(0, 0, -1))

	payment, err := svc.HandlePayment(fx.mahber.ID, userID, "txn-exact", decimal.NewFromInt(100), "https://gateway/receipt/1")
	require.NoError(t, err)

	r := reloadContribution(t, db, c.ID)
	assert.Equal(t, models.ContributionStatusPaid, r.Status)
	assert.True(t, r.Outstanding().IsZero())

	var coverages []models.PaymentCoverage
	require.NoError(t, db.Where("payment_id = ?", payment.ID).Find(&coverages).Error)
	require.Len(t, coverages, 1)
	assert.Equal(t, c.ID, coverages[0].ContributionID)
	assert.True(t, coverages[0].AmountApplied.Equal(decimal.NewFromInt(100)))
}

func TestHandlePaymentOverpaymentRollsBack(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(100), 1, models.TermUnitMonth, time.Now().AddDate(0, -3, 0), 1)
	svc := NewPaymentService(db, &MidtransService{})
	userID := fx.users[0].ID

	base := time.Now().AddDate(0, -3, 0)
	c1 := seedContribution(t, db, fx, userID, 1, decimal.NewFromInt(10), base)
	c2 := seedContribution(t, db, fx, userID, 2, decimal.NewFromInt(20), base.AddDate(0, 1, 0))
	c3 := seedContribution(t, db, fx, userID, 3, decimal.NewFromInt(5), base.AddDate(0, 2, 0))

	// 40 against 35 outstanding: the whole allocation must roll back
	_, err := svc.HandlePayment(fx.mahber.ID, userID, "txn-overpay", decimal.NewFromInt(40), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverpayment))

	for _, id := range []uint{c1.ID, c2.ID, c3.ID} {
		r := reloadContribution(t, db, id)
		assert.Equal(t, models.ContributionStatusUnpaid, r.Status)
		assert.True(t, r.AmountPaid.IsZero())
	}

	var paymentCount, coverageCount int64
	db.Model(&models.Payment{}).Count(&paymentCount)
	db.Model(&models.PaymentCoverage{}).Count(&coverageCount)
	assert.EqualValues(t, 0, paymentCount)
	assert.EqualValues(t, 0, coverageCount)
}

func TestHandlePaymentStatusProgression(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(10), 1, models.TermUnitMonth, time.Now().AddDate(0, 0, -1), 1)
	svc := NewPaymentService(db, &MidtransService{})
	userID := fx.users[0].ID

	c := seedContribution(t, db, fx, userID, 1, decimal.NewFromInt(10), time.Now().AddDate(0, 0, -1))

	_, err := svc.HandlePayment(fx.mahber.ID, userID, "txn-part-1", decimal.NewFromInt(4), "")
	require.NoError(t, err)
	r := reloadContribution(t, db, c.ID)
	assert.Equal(t, models.ContributionStatusPartial, r.Status)
	assert.True(t, r.AmountPaid.Equal(decimal.NewFromInt(4)))

	_, err = svc.HandlePayment(fx.mahber.ID, userID, "txn-part-2", decimal.NewFromInt(6), "")
	require.NoError(t, err)
	r = reloadContribution(t, db, c.ID)
	assert.Equal(t, models.ContributionStatusPaid, r.Status)
	assert.True(t, r.AmountPaid.Equal(decimal.NewFromInt(10)))
}

func TestHandlePaymentStopsAtFutureTerm(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(10), 1, models.TermUnitMonth, time.Now().AddDate(0, 0, -1), 1)
	svc := NewPaymentService(db, &MidtransService{})
	userID := fx.users[0].ID

	c1 := seedContribution(t, db, fx, userID, 1, decimal.NewFromInt(10), time.Now().AddDate(0, 0, -1))
	// Pre-materialized period that starts after a scheduled term change
	c2 := seedContribution(t, db, fx, userID, 2, decimal.NewFromInt(10), time.Now().AddDate(0, 0, 15))

	require.NoError(t, db.Create(&models.ContributionTerm{
		MahberID:      fx.mahber.ID,
		Amount:        decimal.NewFromInt(15),
		Frequency:     1,
		Unit:          models.TermUnitMonth,
		EffectiveFrom: time.Now().AddDate(0, 0, 10),
		Status:        models.TermStatusActive,
	}).Error)

	// Covering both periods would pay period 2 at a superseded price, so
	// the allocation refuses to reach past the upcoming term boundary
	_, err := svc.HandlePayment(fx.mahber.ID, userID, "txn-boundary", decimal.NewFromInt(20), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverpayment))

	// Paying just the in-force period works
	_, err = svc.HandlePayment(fx.mahber.ID, userID, "txn-boundary-2", decimal.NewFromInt(10), "")
	require.NoError(t, err)

	r1 := reloadContribution(t, db, c1.ID)
	r2 := reloadContribution(t, db, c2.ID)
	assert.Equal(t, models.ContributionStatusPaid, r1.Status)
	assert.Equal(t, models.ContributionStatusUnpaid, r2.Status)
}

func TestGetOutstandingContributions(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(10), 1, models.TermUnitMonth, time.Now().AddDate(0, -2, 0), 1)
	svc := NewPaymentService(db, &MidtransService{})
	userID := fx.users[0].ID

	base := time.Now().AddDate(0, -2, 0)
	seedContribution(t, db, fx, userID, 1, decimal.NewFromInt(10), base)
	seedContribution(t, db, fx, userID, 2, decimal.NewFromInt(10), base.AddDate(0, 1, 0))

	_, err := svc.HandlePayment(fx.mahber.ID, userID, "txn-outstanding", decimal.NewFromInt(10), "")
	require.NoError(t, err)

	outstanding, err := svc.GetOutstandingContributions(fx.mahber.ID, userID)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, 2, outstanding[0].PeriodNumber)
}

func TestInitiatePaymentRejectsFractionalOutstanding(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(100), 1, models.TermUnitMonth, time.Now().AddDate(0, 0, -1), 1)
	svc := NewPaymentService(db, &MidtransService{})
	userID := fx.users[0].ID

	// 10.50 would round to an 11 charge at the gateway; the settlement
	// would then exceed the ledger outstanding and never allocate
	c := seedContribution(t, db, fx, userID, 1, decimal.RequireFromString("10.50"), time.Now().AddDate(0, 0, -1))

	_, err := svc.InitiatePayment(&c, false, "http://localhost:8080/p/x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnchargeableAmount))

	var sessionCount int64
	db.Model(&models.PaymentSession{}).Count(&sessionCount)
	assert.EqualValues(t, 0, sessionCount)
}

func TestInitiatePaymentFractionalAfterPartialPayment(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(10), 1, models.TermUnitMonth, time.Now().AddDate(0, 0, -1), 1)
	svc := NewPaymentService(db, &MidtransService{})
	userID := fx.users[0].ID

	c := seedContribution(t, db, fx, userID, 1, decimal.NewFromInt(10), time.Now().AddDate(0, 0, -1))

	// A fractional partial payment leaves 5.50 outstanding, which is just
	// as unchargeable as a fractional amount due
	_, err := svc.HandlePayment(fx.mahber.ID, userID, "txn-frac-part", decimal.RequireFromString("4.50"), "")
	require.NoError(t, err)

	r := reloadContribution(t, db, c.ID)
	_, err = svc.InitiatePayment(&r, false, "http://localhost:8080/p/x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnchargeableAmount))
}

func webhookSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func TestProcessGatewayNotificationRejectsBadSignature(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, &MidtransService{serverKey: "test-server-key"})

	notif := GatewayNotification{
		OrderID:           "contribution-1-1700000000",
		StatusCode:        "200",
		GrossAmount:       "10.00",
		SignatureKey:      "forged",
		TransactionStatus: "settlement",
		TransactionID:     "txn-forged",
	}
	raw, _ := json.Marshal(notif)

	err := svc.ProcessGatewayNotification(raw, notif)
	require.Error(t, err)

	// The raw payload is audited even when verification fails
	var historyCount int64
	db.Model(&models.PaymentCallbackHistory{}).Count(&historyCount)
	assert.EqualValues(t, 1, historyCount)

	var paymentCount int64
	db.Model(&models.Payment{}).Count(&paymentCount)
	assert.EqualValues(t, 0, paymentCount)
}

func TestProcessGatewayNotificationSettlementAllocates(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(10), 1, models.TermUnitMonth, time.Now().AddDate(0, 0, -1), 1)
	svc := NewPaymentService(db, &MidtransService{serverKey: "test-server-key"})
	userID := fx.users[0].ID

	c := seedContribution(t, db, fx, userID, 1, decimal.NewFromInt(10), time.Now().AddDate(0, 0, -1))

	session := models.PaymentSession{
		MahberID:       fx.mahber.ID,
		ContributionID: c.ID,
		UserID:         userID,
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        "contribution-1-1700000000",
		IsActive:       true,
	}
	require.NoError(t, db.Create(&session).Error)

	notif := GatewayNotification{
		OrderID:           session.OrderID,
		StatusCode:        "200",
		GrossAmount:       "10.00",
		TransactionStatus: "settlement",
		TransactionID:     "txn-settled-1",
		FraudStatus:       "accept",
	}
	notif.SignatureKey = webhookSignature(notif.OrderID, notif.StatusCode, notif.GrossAmount, "test-server-key")
	raw, _ := json.Marshal(notif)

	require.NoError(t, svc.ProcessGatewayNotification(raw, notif))

	r := reloadContribution(t, db, c.ID)
	assert.Equal(t, models.ContributionStatusPaid, r.Status)

	var reloaded models.PaymentSession
	require.NoError(t, db.First(&reloaded, session.ID).Error)
	assert.False(t, reloaded.IsActive)

	// Gateways redeliver; the second delivery must be acknowledged
	// without allocating twice
	require.NoError(t, svc.ProcessGatewayNotification(raw, notif))

	var paymentCount int64
	db.Model(&models.Payment{}).Count(&paymentCount)
	assert.EqualValues(t, 1, paymentCount)
}

func TestProcessGatewayNotificationExpiryRetiresSession(t *testing.T) {
	db := newTestDB(t)
	fx := seedMahber(t, db, decimal.NewFromInt(10), 1, models.TermUnitMonth, time.Now().AddDate(0, 0, -1), 1)
	svc := NewPaymentService(db, &MidtransService{serverKey: "test-server-key"})
	userID := fx.users[0].ID

	c := seedContribution(t, db, fx, userID, 1, decimal.NewFromInt(10), time.Now().AddDate(0, 0, -1))

	session := models.PaymentSession{
		MahberID:       fx.mahber.ID,
		ContributionID: c.ID,
		UserID:         userID,
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        "contribution-2-1700000001",
		IsActive:       true,
	}
	require.NoError(t, db.Create(&session).Error)

	notif := GatewayNotification{
		OrderID:           session.OrderID,
		StatusCode:        "407",
		GrossAmount:       "10.00",
		TransactionStatus: "expire",
		TransactionID:     "txn-expired-1",
	}
	notif.SignatureKey = webhookSignature(notif.OrderID, notif.StatusCode, notif.GrossAmount, "test-server-key")
	raw, _ := json.Marshal(notif)

	require.NoError(t, svc.ProcessGatewayNotification(raw, notif))

	var reloaded models.PaymentSession
	require.NoError(t, db.First(&reloaded, session.ID).Error)
	assert.False(t, reloaded.IsActive)

	r := reloadContribution(t, db, c.ID)
	assert.Equal(t, models.ContributionStatusUnpaid, r.Status)
}
