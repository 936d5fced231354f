package app

import "github.com/gfranca/barberhub/pkg/mail"

// SMTPSettings maps the email section of the config onto the mail package
// settings used to build the challenge mailer.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	s := c.SMTP
	return mail.SMTPSettings{
		Enabled:  s.Enabled,
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     s.From,
		UseTLS:   s.UseTLS,
		Timeout:  s.Timeout,
	}
}
