package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"

	gomail "github.com/go-mail/mail/v2"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	TemplateWelcome         = "welcome.tmpl"
	TemplatePasswordChanged = "password_changed.tmpl"
	TemplatePasswordReset   = "password_reset.tmpl"
)

// Mailer sends a templated message. data is passed to the template's
// subject, plainBody and htmlBody blocks.
type Mailer interface {
	Send(to, templateName string, data any) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	sender string
}

func NewSMTP(host string, port int, username, password, sender string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		sender: sender,
	}
}

func (m *SMTPMailer) Send(to, templateName string, data any) error {
	subject, plainBody, htmlBody, err := render(templateName, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("To", to)
	msg.SetHeader("From", m.sender)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plainBody)
	msg.AddAlternative("text/html", htmlBody)

	for i := 0; i < 3; i++ {
		err = m.dialer.DialAndSend(msg)
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("send %s to %s: %w", templateName, to, err)
}

// LogMailer renders messages and writes the subject to the log instead of
// sending. Used when no SMTP host is configured.
type LogMailer struct{}

func (LogMailer) Send(to, templateName string, data any) error {
	subject, _, _, err := render(templateName, data)
	if err != nil {
		return err
	}
	log.Printf("[INFO] mail (not sent, no SMTP host) to=%s subject=%q", to, subject)
	return nil
}

func render(templateName string, data any) (subject, plainBody, htmlBody string, err error) {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/"+templateName)
	if err != nil {
		return "", "", "", err
	}

	var buf bytes.Buffer
	if err = tmpl.ExecuteTemplate(&buf, "subject", data); err != nil {
		return "", "", "", err
	}
	subject = buf.String()

	buf.Reset()
	if err = tmpl.ExecuteTemplate(&buf, "plainBody", data); err != nil {
		return "", "", "", err
	}
	plainBody = buf.String()

	buf.Reset()
	if err = tmpl.ExecuteTemplate(&buf, "htmlBody", data); err != nil {
		return "", "", "", err
	}
	htmlBody = buf.String()

	return subject, plainBody, htmlBody, nil
}
