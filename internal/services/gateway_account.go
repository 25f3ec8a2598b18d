package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// GatewayAccountService queries the payment processor's partner API for the
// onboarding status of a Mahber's merchant account. The daily sync task
// uses it to move local account flags between pending and active.
type GatewayAccountService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewGatewayAccountService() *GatewayAccountService {
	url := os.Getenv("GATEWAY_PARTNER_BASE_URL")
	if url == "" {
		url = "https://partner.sandbox.midtrans.com"
	}
	return &GatewayAccountService{
		baseURL: url,
		apiKey:  os.Getenv("GATEWAY_PARTNER_API_KEY"),
		client:  &http.Client{},
	}
}

type gatewayAccountResponse struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status"` // "active", "pending", "deactivated"
}

// GetAccountStatus returns the gateway-side status string for an account
func (s *GatewayAccountService) GetAccountStatus(accountRef string) (string, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("%s/v1/accounts/%s", s.baseURL, accountRef), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: account status request: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: account status %d: %s", ErrGateway, resp.StatusCode, string(body))
	}

	var parsed gatewayAccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode account status: %w", err)
	}

	return parsed.Status, nil
}
