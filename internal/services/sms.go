package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// SMSService talks to the SMS gateway's HTTP API.
type SMSService struct {
	baseURL  string
	apiKey   string
	senderID string
	client   *http.Client
}

func NewSMSService() *SMSService {
	url := os.Getenv("SMS_BASE_URL")
	if url == "" {
		url = "http://sms-gateway:3000"
	}
	return &SMSService{
		baseURL:  url,
		apiKey:   os.Getenv("SMS_API_KEY"),
		senderID: os.Getenv("SMS_SENDER_ID"),
		client:   &http.Client{},
	}
}

func (s *SMSService) makeRequest(method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("%s%s", s.baseURL, endpoint), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// NormalizePhoneNumber standardizes phone numbers to E.164 without the plus
// sign, as the gateway expects. Local numbers starting with '0' get the
// default country code.
func NormalizePhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")

	// Strip separators people type into phone fields
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)

	countryCode := os.Getenv("SMS_DEFAULT_COUNTRY_CODE")
	if countryCode == "" {
		countryCode = "251"
	}

	if strings.HasPrefix(phone, "0") {
		phone = countryCode + strings.TrimPrefix(phone, "0")
	}

	return phone
}

// SendMessage sends a single text message to one phone number
func (s *SMSService) SendMessage(phone, text string) error {
	phone = NormalizePhoneNumber(phone)

	if err := s.makeRequest("POST", "/api/v1/messages", map[string]string{
		"to":     phone,
		"from":   s.senderID,
		"text":   text,
		"client": "default",
	}); err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}

	return nil
}
