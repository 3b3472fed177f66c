package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gammadia/freetier/acquirer"
)

// Discord posts every notification to a webhook.
type Discord struct {
	webhook string
	client  *http.Client
}

var _ acquirer.Notifier = (*Discord)(nil)

func NewDiscord(webhook string, client *http.Client) *Discord {
	if client == nil {
		client = http.DefaultClient
	}
	return &Discord{webhook: webhook, client: client}
}

func (d *Discord) Notify(ctx context.Context, notification acquirer.Notification) error {
	payload, err := json.Marshal(map[string]string{"content": notification.Text})
	if err != nil {
		return fmt.Errorf("failed to encode discord message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return nil
}
