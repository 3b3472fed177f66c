package notifier

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/gammadia/freetier/acquirer"
	"github.com/samber/lo"
)

const DefaultSMTPServer = "smtp.gmail.com:587"

type EmailConfig struct {
	// host:port, STARTTLS is used when the server offers it
	Server   string
	Address  string
	Password string
	// Optional HTML template for created notifications
	Template string
}

// SendFunc has the signature of smtp.SendMail.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Email sends created and failed notifications to the operator, from and to
// the same address.
type Email struct {
	config  EmailConfig
	created *htmltemplate.Template
	send    SendFunc
	now     func() time.Time
}

var _ acquirer.Notifier = (*Email)(nil)

var emailKinds = []acquirer.NotificationKind{acquirer.NotificationCreated, acquirer.NotificationFailed}

func NewEmail(config EmailConfig, send SendFunc) (*Email, error) {
	if config.Server == "" {
		config.Server = DefaultSMTPServer
	}
	if send == nil {
		send = smtp.SendMail
	}

	created, err := loadCreatedTemplate(config.Template)
	if err != nil {
		return nil, err
	}

	return &Email{config: config, created: created, send: send, now: time.Now}, nil
}

func (e *Email) Notify(ctx context.Context, notification acquirer.Notification) error {
	if !lo.Contains(emailKinds, notification.Kind) {
		return nil
	}

	subject, contentType, body, err := e.render(notification)
	if err != nil {
		return err
	}

	host, _, err := net.SplitHostPort(e.config.Server)
	if err != nil {
		return fmt.Errorf("invalid smtp server '%s': %w", e.config.Server, err)
	}
	auth := smtp.PlainAuth("", e.config.Address, e.config.Password, host)
	message := compose(e.config.Address, subject, contentType, body)

	// net/smtp has no context support, the send runs until it returns
	done := make(chan error, 1)
	go func() {
		done <- e.send(e.config.Server, auth, e.config.Address, []string{e.config.Address}, message)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send email: %w", ctx.Err())
	}
}

func (e *Email) render(notification acquirer.Notification) (subject, contentType, body string, err error) {
	switch notification.Kind {
	case acquirer.NotificationCreated:
		if notification.Record == nil {
			return "", "", "", fmt.Errorf("created notification without instance")
		}
		var buf bytes.Buffer
		data := templateData{Notification: notification, Sent: e.now()}
		if err := e.created.Execute(&buf, data); err != nil {
			return "", "", "", fmt.Errorf("failed to render email: %w", err)
		}
		return "FREETIER: INSTANCE CREATED", "text/html", buf.String(), nil

	default:
		return "FREETIER: FAILED DUE TO AN ERROR", "text/plain", FailureReport(notification.Text), nil
	}
}

func compose(address, subject, contentType, body string) []byte {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", address)
	fmt.Fprintf(&msg, "To: %s\r\n", address)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}
