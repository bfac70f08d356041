package services

import (
	"fmt"
	"strconv"

	"coaching-module/config"
	"coaching-module/logger"

	"gopkg.in/gomail.v2"
)

// SendEmailDirect sends an email over SMTP. Called by the Kafka consumer
// after it receives an email.send event, never from request handlers.
func SendEmailDirect(to, subject, body string, attachment ...string) error {
	cfg := config.AppConfig

	from := cfg.EmailFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	if from == "" {
		return fmt.Errorf("email sender not configured (set EMAIL_FROM or SMTP_USER)")
	}
	if cfg.SMTPUser == "" || cfg.SMTPPass == "" {
		return fmt.Errorf("smtp credentials not configured (set SMTP_USER and SMTP_PASS)")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	if len(attachment) > 0 {
		m.Attach(attachment[0])
	}

	port := 587
	if v, err := strconv.Atoi(cfg.SMTPPort); err == nil {
		port = v
	}

	d := gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		logger.Error("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Info("Email sent to %s", to)
	return nil
}
