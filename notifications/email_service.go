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

	config "github.com/juniorcfabio/viralizaai-backend/configs"
)

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
}

var EmailClient *BrevoService

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

func InitEmailService() {
	apiKey := config.Config("BREVO_API_KEY")
	senderEmail := config.Config("EMAIL_SENDER")
	senderName := config.ConfigOr("EMAIL_SENDER_NAME", "Viraliza.ai")

	if apiKey == "" || senderEmail == "" {
		log.Println("⚠️ Email service not configured. Missing API Key or Sender Email.")
		EmailClient = nil
		return
	}

	EmailClient = &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
	}
	log.Println("✅ Email service initialized successfully.")
}

func (s *BrevoService) send(toEmail, toName, subject, htmlContent string) error {
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

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		log.Printf("Brevo API error: Status %d, Body: %s", resp.StatusCode, string(bodyBytes))
		return fmt.Errorf("failed to send email via Brevo: %s", string(bodyBytes))
	}

	return nil
}

func SendEmail(toName, toEmail, subject, htmlContent string) {
	if EmailClient == nil {
		log.Println("Email client not initialized, skipping email send.")
		return
	}

	err := EmailClient.send(toEmail, toName, subject, htmlContent)
	if err != nil {
		log.Printf("🔥 Failed to send email to %s: %v", toEmail, err)
		return
	}

	log.Printf("✅ Email sent successfully to %s", toEmail)
}

func SendEmailVerification(name, email, verifyURL string) {
	html := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; line-height: 1.5">
			<h2>Confirme seu e-mail</h2>
			<p>Olá <b>%s</b>,</p>
			<p>Para ativar sua conta, clique no botão abaixo:</p>
			<p style="margin: 24px 0">
				<a href="%s" style="background:#4F46E5;color:#fff;padding:12px 18px;border-radius:8px;text-decoration:none;display:inline-block">Confirmar e-mail</a>
			</p>
			<p>Se você não solicitou esse cadastro, ignore este e-mail.</p>
		</div>`, name, verifyURL)

	SendEmail(name, email, "Confirme seu e-mail - Viraliza.ai", html)
}

func SendPasswordReset(name, email, resetURL string) {
	html := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; line-height: 1.5">
			<h2>Redefinição de senha</h2>
			<p>Olá <b>%s</b>,</p>
			<p>Para escolher uma nova senha, clique no botão abaixo. O link expira em 1 hora.</p>
			<p style="margin: 24px 0">
				<a href="%s" style="background:#4F46E5;color:#fff;padding:12px 18px;border-radius:8px;text-decoration:none;display:inline-block">Redefinir senha</a>
			</p>
			<p>Se você não pediu a redefinição, ignore este e-mail.</p>
		</div>`, name, resetURL)

	SendEmail(name, email, "Redefina sua senha - Viraliza.ai", html)
}
