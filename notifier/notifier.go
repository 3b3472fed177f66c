// Package notifier implements the transports used to tell the operator how
// an acquisition is going.
package notifier

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/config"
)

// New builds the transports enabled by the configuration. Under CI, no
// transport is built unless explicitly allowed.
func New(notify config.Notify, logger *slog.Logger) (Multi, error) {
	if !notify.Enabled() {
		logger.Info("Running under CI, notifications are disabled")
		return nil, nil
	}

	var notifiers Multi
	if notify.DiscordWebhook != "" {
		notifiers = append(notifiers, NewDiscord(notify.DiscordWebhook, &http.Client{Timeout: 30 * time.Second}))
	}
	if notify.Email {
		email, err := NewEmail(EmailConfig{
			Server:   notify.SMTPServer,
			Address:  notify.EmailAddress,
			Password: notify.EmailPassword,
			Template: notify.EmailTemplate,
		}, nil)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, email)
	}

	logger.Debug("Notifications configured", "discord", notify.DiscordWebhook != "", "email", notify.Email)
	return notifiers, nil
}

// Logging wraps a notifier so that every notification is also logged.
func Logging(notifier acquirer.Notifier, logger *slog.Logger) acquirer.Notifier {
	return acquirer.NotifierFunc(func(ctx context.Context, notification acquirer.Notification) error {
		logger.Debug("Sending notification", "kind", notification.Kind, "text", notification.Text)
		return notifier.Notify(ctx, notification)
	})
}
