// Package sms sends text messages through the Africa's Talking messaging API.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	liveURL    = "https://api.africastalking.com/version1/messaging"
	sandboxURL = "https://api.sandbox.africastalking.com/version1/messaging"
)

// Recipient is the per-number outcome of a send.
type Recipient struct {
	Number     string `json:"number"`
	Status     string `json:"status"`
	Cost       string `json:"cost"`
	MessageID  string `json:"messageId"`
	StatusCode int    `json:"statusCode"`
}

// SendResult is the decoded messaging response.
type SendResult struct {
	Message    string      `json:"Message"`
	Recipients []Recipient `json:"Recipients"`
}

type sendResponse struct {
	SMSMessageData SendResult `json:"SMSMessageData"`
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, to []string, message string, bulk bool) (SendResult, error)
}

// Client is an Africa's Talking messaging client.
type Client struct {
	http     *http.Client
	endpoint string
	username string
	apiKey   string
	senderID string
}

// Options configures a Client.
type Options struct {
	Username string
	APIKey   string
	SenderID string
	// Endpoint overrides the messaging URL. Empty selects live or sandbox
	// from the username.
	Endpoint string
	Timeout  time.Duration
}

// NewClient creates a messaging client.
func NewClient(opts Options) *Client {
	if opts.Username == "" {
		opts.Username = "sandbox"
	}
	if opts.Endpoint == "" {
		opts.Endpoint = liveURL
		if opts.Username == "sandbox" {
			opts.Endpoint = sandboxURL
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: opts.Timeout},
		endpoint: opts.Endpoint,
		username: opts.Username,
		apiKey:   opts.APIKey,
		senderID: opts.SenderID,
	}
}

// Send delivers message to every number in to. bulk enqueues the message on
// the provider side.
func (c *Client) Send(ctx context.Context, to []string, message string, bulk bool) (SendResult, error) {
	if len(to) == 0 {
		return SendResult{}, fmt.Errorf("no recipients")
	}
	if message == "" {
		return SendResult{}, fmt.Errorf("empty message")
	}

	form := url.Values{
		"username": {c.username},
		"to":       {strings.Join(to, ",")},
		"message":  {message},
	}
	if c.senderID != "" {
		form.Set("from", c.senderID)
	}
	if bulk {
		form.Set("enqueue", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{}, fmt.Errorf("sms provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out sendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return SendResult{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.SMSMessageData, nil
}
