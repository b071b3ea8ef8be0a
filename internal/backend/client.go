// Package backend is the REST client for the INKINGI Rescue backend API.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/thebtf/inkingi-ussd/pkg/models"
)

// DefaultTimeout is the per-call budget when none is configured.
const DefaultTimeout = 10 * time.Second

// Endpoints relative to the backend base URL.
const (
	pathReportEmergency = "/ussd/report-emergency"
	pathEmergencies     = "/ussd/emergencies"
	pathEmergency       = "/ussd/emergency/"
	pathUserEmergencies = "/ussd/user-emergencies"
	pathDistress        = "/ussd/distress"
	pathPosts           = "/ussd/posts"
	pathPost            = "/ussd/posts/"
)

var (
	// ErrNotFound is returned when the backend answers 404.
	ErrNotFound = errors.New("backend: not found")
	// ErrTimeout is returned when a call exceeds its budget.
	ErrTimeout = errors.New("backend: timeout")
)

// APIError is a non-2xx backend answer.
type APIError struct {
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// EmergencyPage is a list of emergencies with its total.
type EmergencyPage struct {
	Emergencies []models.Emergency
	Total       int
}

// PostPage is a list of posts with its total.
type PostPage struct {
	Posts []models.Post
	Total int
}

// Client calls the backend API.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a client for baseURL with a per-call timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope is the {data: ...} wrapper used by every backend response.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("method", method).Str("path", path).Msg("Backend request failed")
		if isTimeout(err) {
			return fmt.Errorf("%s %s: %w", method, path, ErrTimeout)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Backend response")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Message = env.Message
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	// Responses are wrapped in {data: ...}; fall back to the bare body.
	payload := json.RawMessage(raw)
	var env envelope
	if json.Unmarshal(raw, &env) == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		payload = env.Data
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func filterQuery(f models.ListFilter) url.Values {
	q := url.Values{}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	return q
}

// ReportEmergency submits an emergency report.
func (c *Client) ReportEmergency(ctx context.Context, report models.EmergencyReport) (models.Created, error) {
	var out models.Created
	err := c.do(ctx, http.MethodPost, pathReportEmergency, nil, report, &out)
	return out, err
}

// GetEmergencies lists emergencies.
func (c *Client) GetEmergencies(ctx context.Context, filter models.ListFilter) (EmergencyPage, error) {
	var list []models.Emergency
	if err := c.do(ctx, http.MethodGet, pathEmergencies, filterQuery(filter), nil, &list); err != nil {
		return EmergencyPage{}, err
	}
	return EmergencyPage{Emergencies: list, Total: len(list)}, nil
}

// GetEmergencyByID fetches one emergency.
func (c *Client) GetEmergencyByID(ctx context.Context, id string) (models.Emergency, error) {
	var out models.Emergency
	err := c.do(ctx, http.MethodGet, pathEmergency+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// GetUserEmergencies lists the emergencies reported from phone.
func (c *Client) GetUserEmergencies(ctx context.Context, phone string) (EmergencyPage, error) {
	var list []models.Emergency
	q := url.Values{"phoneNumber": {phone}}
	if err := c.do(ctx, http.MethodGet, pathUserEmergencies, q, nil, &list); err != nil {
		return EmergencyPage{}, err
	}
	return EmergencyPage{Emergencies: list, Total: len(list)}, nil
}

// TriggerDistress raises a distress alert.
func (c *Client) TriggerDistress(ctx context.Context, alert models.DistressAlert) (models.Created, error) {
	var out models.Created
	err := c.do(ctx, http.MethodPost, pathDistress, nil, alert, &out)
	return out, err
}

// GetPosts lists community posts.
func (c *Client) GetPosts(ctx context.Context, filter models.ListFilter) (PostPage, error) {
	var list []models.Post
	if err := c.do(ctx, http.MethodGet, pathPosts, filterQuery(filter), nil, &list); err != nil {
		return PostPage{}, err
	}
	return PostPage{Posts: list, Total: len(list)}, nil
}

// GetPostByID fetches one post.
func (c *Client) GetPostByID(ctx context.Context, id string) (models.Post, error) {
	var out models.Post
	err := c.do(ctx, http.MethodGet, pathPost+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
