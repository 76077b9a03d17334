package shipper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client posts matches to the dashboard /ingest endpoint as the form field
// "summary" holding a JSON object.
type Client struct {
	URL    string
	APIKey string
	Host   string
	HTTP   *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	host, _ := osHostname()
	return &Client{
		URL:    endpoint,
		APIKey: apiKey,
		Host:   host,
		HTTP:   &http.Client{Timeout: 3 * time.Second},
	}
}

type ingestSummary struct {
	Summary string `json:"summary"`
	TS      string `json:"ts"`
	Host    string `json:"host,omitempty"`
}

func (c *Client) Send(ctx context.Context, line string, at time.Time) error {
	body, err := json.Marshal(ingestSummary{
		Summary: line,
		TS:      at.Format("2006-01-02 15:04:05"),
		Host:    c.Host,
	})
	if err != nil {
		return err
	}
	form := url.Values{"summary": {string(body)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ingest: status %d", resp.StatusCode)
	}
	return nil
}
