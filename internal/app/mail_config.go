package app

import (
	"strings"

	"github.com/charlesng35/groupdesk/pkg/mail"
)

// Settings converts the SMTP configuration into mailer settings.
func (c SMTPConfig) Settings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.Enabled,
		Host:     strings.TrimSpace(c.Host),
		Port:     c.Port,
		Username: strings.TrimSpace(c.Username),
		Password: c.Password,
		From:     strings.TrimSpace(c.From),
		UseTLS:   c.UseTLS,
		Timeout:  c.Timeout,
	}
}
