package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/micartera/backend/src/config"
	"github.com/username/micartera/backend/src/logger"
)

// NewEmailService picks the delivery backend from configuration. Incomplete
// provider configuration degrades to the mock instead of failing startup.
func NewEmailService() EmailService {
	if config.Cfg == nil {
		logger.L.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			SMTPServer:   config.Cfg.SMTPServer,
			SMTPPort:     config.Cfg.SMTPPort,
			SMTPUser:     config.Cfg.SMTPUser,
			SMTPPassword: config.Cfg.SMTPPassword,
			SenderEmail:  config.Cfg.SenderEmail,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{}
	}
}

func alertSubject(alert AlertNotification) string {
	if alert.Kind == "stop_loss" {
		return fmt.Sprintf("Stop-loss alert: %s at %.2f %s", alert.CompanyName, alert.Price, alert.Currency)
	}
	return fmt.Sprintf("Target price reached: %s at %.2f %s", alert.CompanyName, alert.Price, alert.Currency)
}

func alertPlainBody(username string, alert AlertNotification) string {
	direction := "risen above your target price"
	if alert.Kind == "stop_loss" {
		direction = "fallen below your stop-loss"
	}
	return fmt.Sprintf(`Hi %s,

%s has %s of %.2f %s.
Current price: %.2f %s.

You can review the position in your dashboard.

Thanks,
The MiCartera Team`, username, alert.CompanyName, direction, alert.Threshold, alert.Currency, alert.Price, alert.Currency)
}

type SMTPEmailService struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
}

func (s *SMTPEmailService) SendPriceAlertEmail(toEmail, username string, alert AlertNotification) error {
	from := s.SenderEmail
	to := []string{toEmail}
	subject := alertSubject(alert)
	body := alertPlainBody(username, alert)

	header := make(map[string]string)
	header["From"] = from
	header["To"] = toEmail
	header["Subject"] = subject
	header["MIME-version"] = "1.0"
	header["Content-Type"] = "text/plain; charset=\"UTF-8\""
	message := ""
	for k, v := range header {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + body
	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	err := smtp.SendMail(addr, auth, from, to, []byte(message))
	if err != nil {
		logger.L.Error("Failed to send price alert email via SMTP", "error", err, "to", toEmail)
		return fmt.Errorf("failed to send price alert email via SMTP: %w", err)
	}
	logger.L.Info("Price alert email sent successfully via SMTP", "to", toEmail, "company", alert.CompanyName)
	return nil
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) SendPriceAlertEmail(toEmail, username string, alert AlertNotification) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	subject := alertSubject(alert)
	recipient := toEmail

	plainTextBody := alertPlainBody(username, alert)

	kindLabel := "target price"
	if alert.Kind == "stop_loss" {
		kindLabel = "stop-loss"
	}
	htmlBody := fmt.Sprintf(`
	<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6;">
			<p>Hi %s,</p>
			<p><strong>%s</strong> has crossed your %s of <strong>%.2f %s</strong>.</p>
			<p>Current price: <strong>%.2f %s</strong>.</p>
			<p>You can review the position in your dashboard.</p>
			<p>Thanks,<br>The MiCartera Team</p>
		</body>
	</html>`, username, alert.CompanyName, kindLabel, alert.Threshold, alert.Currency, alert.Price, alert.Currency)

	message := s.mg.NewMessage(from, subject, plainTextBody, recipient)
	message.SetHtml(htmlBody)
	message.AddTag("price-alert")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send price alert email via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Price alert email sent successfully via Mailgun", "to", toEmail, "id", id, "mailgunResp", resp)
	return nil
}

type MockEmailService struct{}

func (m *MockEmailService) SendPriceAlertEmail(toEmail, username string, alert AlertNotification) error {
	logger.L.Info("MockEmailService: Would send price alert email.",
		"to", toEmail, "username", username, "company", alert.CompanyName,
		"kind", alert.Kind, "threshold", alert.Threshold, "price", alert.Price)
	return nil
}
