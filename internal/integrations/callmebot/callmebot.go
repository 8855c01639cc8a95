package callmebot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Dan9191/pledge-service/internal/config"
	"github.com/sirupsen/logrus"
)

// Client sends WhatsApp text messages through the CallMeBot API
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new CallMeBot client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.CallMeBotURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Send delivers a WhatsApp message to the given phone number using the
// member's personal API key
func (c *Client) Send(ctx context.Context, phone, apiKey, message string) error {
	if apiKey == "" {
		return fmt.Errorf("missing CallMeBot API key")
	}

	q := url.Values{}
	q.Set("phone", phone)
	q.Set("apikey", apiKey)
	q.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.log.Debugf("CallMeBot response for %s: %s", phone, string(body))
	return nil
}
