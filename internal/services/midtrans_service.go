package services

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// MidtransService wraps the payment gateway clients. Snap creates hosted
// checkout sessions; the core API is used for status checks, cancellation
// and webhook verification.
type MidtransService struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
	serverKey  string
}

func NewMidtransService() *MidtransService {
	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	clientKey := os.Getenv("MIDTRANS_CLIENT_KEY")
	envStr := os.Getenv("MIDTRANS_IS_PRODUCTION")

	env := midtrans.Sandbox
	if envStr == "true" {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	// Set Default Options
	midtrans.ServerKey = serverKey
	midtrans.ClientKey = clientKey
	midtrans.Environment = env

	return &MidtransService{
		SnapClient: s,
		CoreClient: c,
		serverKey:  serverKey,
	}
}

// CreateTransaction creates a Snap transaction and returns the redirect URL and token
func (s *MidtransService) CreateTransaction(orderID string, amount int64, param *snap.Request) (*snap.Response, error) {
	if param == nil {
		param = &snap.Request{
			TransactionDetails: midtrans.TransactionDetails{
				OrderID:  orderID,
				GrossAmt: amount,
			},
		}
	} else {
		// Ensure OrderID and Amount are set if passed explicitly
		if param.TransactionDetails.OrderID == "" {
			param.TransactionDetails.OrderID = orderID
		}
		if param.TransactionDetails.GrossAmt == 0 {
			param.TransactionDetails.GrossAmt = amount
		}
	}

	resp, err := s.SnapClient.CreateTransaction(param)
	if err != nil {
		return nil, fmt.Errorf("%w: create transaction: %v", ErrGateway, err)
	}

	return resp, nil
}

// CheckTransaction fetches the current gateway status of an order
func (s *MidtransService) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error) {
	resp, err := s.CoreClient.CheckTransaction(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: check transaction %s: %v", ErrGateway, orderID, err)
	}
	return resp, nil
}

// CancelTransaction cancels a pending order at the gateway
func (s *MidtransService) CancelTransaction(orderID string) error {
	_, err := s.CoreClient.CancelTransaction(orderID)
	if err != nil {
		return fmt.Errorf("%w: cancel transaction %s: %v", ErrGateway, orderID, err)
	}
	return nil
}

// VerifySignature checks a webhook notification's signature key.
// Signature = SHA512(order_id + status_code + gross_amount + server key).
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	return VerifyMidtransSignature(orderID, statusCode, grossAmount, s.serverKey, signatureKey)
}

// VerifyMidtransSignature is the key check split out so it can be tested
// without a configured client.
func VerifyMidtransSignature(orderID, statusCode, grossAmount, serverKey, signatureKey string) bool {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	return strings.EqualFold(expected, signatureKey)
}
