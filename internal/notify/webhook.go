package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultWebhookTimeout = 5 * time.Second

// Webhook POSTs each message as JSON to URL. When Types is non-empty only
// those notification types are delivered.
type Webhook struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Types   []string
	Client  *http.Client
}

type webhookBody struct {
	Type      string   `json:"type"`
	UserIDs   []string `json:"user_ids"`
	Message   string   `json:"message"`
	Link      string   `json:"link,omitempty"`
	CreatedBy string   `json:"created_by"`
}

func (w Webhook) accepts(typ string) bool {
	if len(w.Types) == 0 {
		return true
	}
	for _, t := range w.Types {
		if strings.TrimSpace(t) == typ {
			return true
		}
	}
	return false
}

func (w Webhook) Notify(ctx context.Context, msg Message) error {
	if !w.accepts(msg.Type) {
		return nil
	}
	data, err := json.Marshal(webhookBody{
		Type:      msg.Type,
		UserIDs:   msg.UserIDs,
		Message:   msg.Text,
		Link:      msg.Link,
		CreatedBy: msg.CreatedBy,
	})
	if err != nil {
		return err
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Volunteermatch-Notification", msg.Type)
	if strings.TrimSpace(w.Secret) != "" {
		req.Header.Set("X-Volunteermatch-Secret", w.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", w.URL, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("webhook %s: status %d: %s", w.URL, res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
