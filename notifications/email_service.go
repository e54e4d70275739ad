package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	config "github.com/ahmedfarouk/online_academy/configs"
)

// Sender is the mail transport. Delivery is best-effort everywhere: no caller
// may treat a send failure as fatal.
type Sender interface {
	Send(toName, toEmail, subject, htmlContent string) error
}

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
}

var Client Sender

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
	TextContent string              `json:"textContent,omitempty"`
}

func InitEmailService() {
	apiKey := config.Config("BREVO_API_KEY")
	senderEmail := config.Config("EMAIL_SENDER")
	senderName := config.Config("EMAIL_SENDER_NAME")

	if apiKey == "" || senderEmail == "" || senderName == "" {
		log.Println("⚠️ Email service not configured. Missing API Key, Sender Email, or Sender Name.")
		Client = nil
		return
	}

	Client = &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
	}
	log.Println("✅ Email service initialized successfully.")
}

func (s *BrevoService) Send(toName, toEmail, subject, htmlContent string) error {
	url := "https://api.brevo.com/v3/smtp/email"

	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
		TextContent: stripTags(htmlContent),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	client := &http.Client{
		Timeout: 10 * time.Second,
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to send email via Brevo: %s", string(bodyBytes))
	}

	return nil
}

// SendEmail delivers through the configured transport. Errors are logged and
// swallowed so that a mail outage never fails the operation that triggered it.
func SendEmail(toName, toEmail, subject, htmlContent string) {
	if Client == nil {
		log.Println("Email client not initialized, skipping email send.")
		return
	}

	if err := Client.Send(toName, toEmail, subject, htmlContent); err != nil {
		log.Printf("🔥 Failed to send email to %s: %v", toEmail, err)
		return
	}

	log.Printf("✅ Email sent successfully to %s", toEmail)
}

// stripTags produces the plaintext fallback for HTML mail. Crude but fine for
// the simple templates this service sends.
func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
