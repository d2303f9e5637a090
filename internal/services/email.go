package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"coursemarket/internal/models"
)

// ResendConfig represents Resend email service configuration
type ResendConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// ResendEmailService handles email sending via Resend API
type ResendEmailService struct {
	config ResendConfig
	client *http.Client
}

// NewResendEmailService creates a new Resend email service
func NewResendEmailService(config ResendConfig) *ResendEmailService {
	return &ResendEmailService{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ResendEmailRequest represents the request structure for Resend API
type ResendEmailRequest struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html,omitempty"`
	Text    string            `json:"text,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Tags    []ResendTag       `json:"tags,omitempty"`
}

// ResendTag represents a tag for email categorization
type ResendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ResendEmailResponse represents the response from Resend API
type ResendEmailResponse struct {
	ID string `json:"id"`
}

// ResendErrorResponse represents error response from Resend API
type ResendErrorResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// getFromField constructs the from field properly
func (s *ResendEmailService) getFromField() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}
	return s.config.FromEmail
}

// SendOrderConfirmation sends the order confirmation email with the item
// summary and any event booking details
func (s *ResendEmailService) SendOrderConfirmation(order *models.Order, items []*models.OrderItem, bookings []*models.Booking) error {
	var itemRows strings.Builder
	var itemLines strings.Builder
	for _, item := range items {
		itemRows.WriteString(fmt.Sprintf(
			`<tr><td style="padding: 8px; border-bottom: 1px solid #eee;">%s</td><td style="padding: 8px; border-bottom: 1px solid #eee; text-align: center;">%d</td><td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">%s</td></tr>`,
			html.EscapeString(item.Title), item.Quantity, formatAmount(item.Price*item.Quantity, order.Currency)))
		itemLines.WriteString(fmt.Sprintf("- %s x%d: %s\n",
			item.Title, item.Quantity, formatAmount(item.Price*item.Quantity, order.Currency)))
	}

	var bookingNote string
	if len(bookings) > 0 {
		bookingNote = fmt.Sprintf(
			`<p>Your order includes %d event booking(s). Your attendance is confirmed and your tickets are attached to this order.</p>`,
			len(bookings))
	}

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Order Confirmation</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #16A34A; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .total { font-weight: bold; font-size: 18px; }
        .footer { text-align: center; padding: 20px; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Thank you for your order!</h1></div>
        <div class="content">
            <p>Your payment was received and order #%d is confirmed.</p>
            <table style="width: 100%%; border-collapse: collapse;">
                <tr><th style="text-align: left; padding: 8px;">Item</th><th style="padding: 8px;">Qty</th><th style="text-align: right; padding: 8px;">Amount</th></tr>
                %s
            </table>
            <p class="total">Total: %s</p>
            %s
        </div>
        <div class="footer">If you did not place this order, please contact support.</div>
    </div>
</body>
</html>`, order.ID, itemRows.String(), formatAmount(order.TotalAmount, order.Currency), bookingNote)

	textContent := fmt.Sprintf(
		"Thank you for your order!\n\nOrder #%d is confirmed.\n\n%s\nTotal: %s\n",
		order.ID, itemLines.String(), formatAmount(order.TotalAmount, order.Currency))

	request := ResendEmailRequest{
		From:    s.getFromField(),
		To:      []string{order.ContactEmail},
		Subject: fmt.Sprintf("Order Confirmation #%d", order.ID),
		HTML:    htmlContent,
		Text:    textContent,
		Tags: []ResendTag{
			{Name: "category", Value: "order-confirmation"},
		},
	}

	return s.sendEmail(request)
}

func (s *ResendEmailService) sendEmail(request ResendEmailRequest) error {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorResp ResendErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return fmt.Errorf("failed to send email, status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to send email: %s", errorResp.Message)
	}

	var response ResendEmailResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// formatAmount renders integer minor units as a display amount
func formatAmount(amount int, currency string) string {
	return fmt.Sprintf("%s %.2f", strings.ToUpper(currency), float64(amount)/100)
}
