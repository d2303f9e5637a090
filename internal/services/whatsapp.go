package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coursemarket/internal/models"
)

// WhatsAppConfig represents WhatsApp Business API configuration
type WhatsAppConfig struct {
	APIURL    string
	APIToken  string
	FromPhone string
}

// WhatsAppService sends booking confirmations through the WhatsApp
// Business API
type WhatsAppService struct {
	config WhatsAppConfig
	client *http.Client
}

// NewWhatsAppService creates a new WhatsApp service
func NewWhatsAppService(config WhatsAppConfig) *WhatsAppService {
	return &WhatsAppService{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type whatsAppMessageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             whatsAppTextBody `json:"text"`
}

type whatsAppTextBody struct {
	Body string `json:"body"`
}

type whatsAppErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SendBookingConfirmation messages the buyer's phone with the booking
// details. Orders without a contact phone are skipped without error.
func (s *WhatsAppService) SendBookingConfirmation(order *models.Order, booking *models.Booking) error {
	if s.config.APIToken == "" || s.config.APIURL == "" {
		return fmt.Errorf("whatsapp service is not configured")
	}
	if order.ContactPhone == "" {
		return nil
	}

	body := fmt.Sprintf(
		"Your booking is confirmed! Order #%d, booking #%d for %d attendee(s). See you there.",
		order.ID, booking.ID, booking.Attendees)

	request := whatsAppMessageRequest{
		MessagingProduct: "whatsapp",
		To:               order.ContactPhone,
		Type:             "text",
		Text:             whatsAppTextBody{Body: body},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", s.config.APIURL+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorResp whatsAppErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return fmt.Errorf("failed to send whatsapp message, status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to send whatsapp message: %s", errorResp.Error.Message)
	}

	return nil
}
