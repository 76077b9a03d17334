package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hamed0406/socdash/internal/domain"
)

// Webhook POSTs each alert record as JSON to a single URL. No retries.
type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *Webhook) Send(ctx context.Context, a domain.Alert) error {
	if w == nil || w.URL == "" {
		return errors.New("webhook disabled")
	}
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return post(ctx, w.Client, w.URL, body)
}
