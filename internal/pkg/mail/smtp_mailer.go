// Package mail delivers the shop's transactional email (order
// confirmations, restock alerts) over plain SMTP.
package mail

import (
	"errors"
	"fmt"
	"net"
	"net/smtp"

	"github.com/gofiber/fiber/v2/log"

	"github.com/markora/shopcore/internal/pkg/env"
)

// ErrNotConfigured is returned when no SMTP relay is configured. Callers
// in the job queue treat it as non-retryable.
var ErrNotConfigured = errors.New("smtp relay not configured")

// SendMail sends one HTML message through the relay configured via
// SMTP_HOST / SMTP_PORT. Auth is optional: when SMTP_USERNAME and
// SMTP_PASSWORD are both set, PLAIN auth is used, otherwise the relay is
// assumed to accept unauthenticated submission (local dev, mailhog).
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	if host == "" {
		return ErrNotConfigured
	}
	addr := net.JoinHostPort(host, env.GetEnv("SMTP_PORT", "25"))

	sender := env.GetEnv("SMTP_SENDER", "")
	if sender == "" {
		sender = "no-reply@" + env.GetEnv("SHOP_DOMAIN", "shopcore.local")
	}

	var auth smtp.Auth
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		sender, to, subject, body,
	))

	if err := smtp.SendMail(addr, auth, sender, []string{to}, msg); err != nil {
		log.Errorf("[Mail] Send to %s via %s failed: %v", to, addr, err)
		return err
	}
	log.Infof("[Mail] Sent %q to %s", subject, to)
	return nil
}
