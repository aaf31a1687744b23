// Package webhook adapts any REST endpoint speaking the small Trafego
// webhook contract into a DNS provider.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Wire types of the webhook contract.

// RecordRequest is the body of create requests.
type RecordRequest struct {
	Hostname string   `json:"hostname"`
	Type     string   `json:"type"`
	Value    string   `json:"value"`
	TTL      int      `json:"ttl"`
	SRV      *SRVData `json:"srv,omitempty"`
}

// UpdateRequest is the body of update requests: the record to replace and
// its new shape.
type UpdateRequest struct {
	Hostname string        `json:"hostname"`
	Type     string        `json:"type"`
	Old      RecordRequest `json:"old"`
	New      RecordRequest `json:"new"`
}

// SRVData carries the SRV tuple on the wire.
type SRVData struct {
	Priority uint16 `json:"priority"`
	Weight   uint16 `json:"weight"`
	Port     uint16 `json:"port"`
}

// DeleteRequest is the body of delete requests.
type DeleteRequest struct {
	Hostname string `json:"hostname"`
	Type     string `json:"type,omitempty"`
}

// RecordResponse is one record in a /list response.
type RecordResponse struct {
	Hostname string   `json:"hostname"`
	Type     string   `json:"type"`
	Value    string   `json:"value"`
	TTL      int      `json:"ttl,omitempty"`
	ID       string   `json:"id,omitempty"`
	SRV      *SRVData `json:"srv,omitempty"`
}

// ErrorResponse is the error shape webhooks are expected to return.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Client talks to one webhook endpoint.
type Client struct {
	baseURL    string
	authHeader string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
	retries    int
	retryDelay time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetries sets how many times transient failures are re-attempted.
func WithRetries(retries int) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.retries = retries
		}
	}
}

// WithRetryDelay sets the base backoff delay.
func WithRetryDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

// NewClient builds a client for baseURL, optionally attaching a custom
// auth header to every request.
func NewClient(baseURL string, timeout time.Duration, authHeader, authToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authHeader: authHeader,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isRetryable marks the transient status codes worth another attempt.
func isRetryable(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// doRequest runs one call with exponential backoff on network errors and
// retryable statuses. A seekable body is rewound per attempt.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, []byte, error) {
	reqURL := c.baseURL + path

	c.logger.Debug("making webhook request",
		slog.String("method", method),
		slog.String("url", reqURL),
	)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			if seeker, ok := body.(io.Seeker); ok {
				_, _ = seeker.Seek(0, io.SeekStart)
			}
			bodyReader = body
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
		if err != nil {
			return nil, nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.authHeader != "" && c.authToken != "" {
			req.Header.Set(c.authHeader, c.authToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("executing request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if isRetryable(resp.StatusCode) && attempt < c.retries {
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
			continue
		}

		return resp, respBody, nil
	}

	return nil, nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// checkStatus validates the response status against the accepted set,
// surfacing the webhook's own error message when it sent one.
func checkStatus(op string, resp *http.Response, body []byte, accepted ...int) error {
	for _, status := range accepted {
		if resp.StatusCode == status {
			return nil
		}
	}
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("%s failed: %s", op, errResp.Error)
	}
	return fmt.Errorf("%s failed: unexpected status %d", op, resp.StatusCode)
}

// sendJSON marshals body and runs one mutating call.
func (c *Client) sendJSON(ctx context.Context, op, method, path string, body any, accepted ...int) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	resp, respBody, err := c.doRequest(ctx, method, path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return checkStatus(op, resp, respBody, accepted...)
}

// Ping expects 200 from GET /ping.
func (c *Client) Ping(ctx context.Context) error {
	resp, _, err := c.doRequest(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// List expects a JSON array of records from GET /list.
func (c *Client) List(ctx context.Context) ([]RecordResponse, error) {
	resp, body, err := c.doRequest(ctx, http.MethodGet, "/list", nil)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	if err := checkStatus("list", resp, body, http.StatusOK); err != nil {
		return nil, err
	}

	var records []RecordResponse
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("parsing list response: %w", err)
	}

	c.logger.Debug("listed records from webhook", slog.Int("count", len(records)))
	return records, nil
}

// Create posts a plain record to /create; 200, 201, and 204 all count as
// success.
func (c *Client) Create(ctx context.Context, hostname, recordType, value string, ttl int) error {
	err := c.sendJSON(ctx, "create", http.MethodPost, "/create",
		RecordRequest{Hostname: hostname, Type: recordType, Value: value, TTL: ttl},
		http.StatusOK, http.StatusCreated, http.StatusNoContent,
	)
	if err != nil {
		return err
	}

	c.logger.Info("created record via webhook",
		slog.String("hostname", hostname),
		slog.String("type", recordType),
		slog.String("value", value),
		slog.Int("ttl", ttl),
	)
	return nil
}

// CreateSRV posts an SRV record with its tuple to /create.
func (c *Client) CreateSRV(ctx context.Context, hostname string, priority, weight, port uint16, target string, ttl int) error {
	err := c.sendJSON(ctx, "create SRV", http.MethodPost, "/create",
		RecordRequest{
			Hostname: hostname,
			Type:     "SRV",
			Value:    target,
			TTL:      ttl,
			SRV:      &SRVData{Priority: priority, Weight: weight, Port: port},
		},
		http.StatusOK, http.StatusCreated, http.StatusNoContent,
	)
	if err != nil {
		return err
	}

	c.logger.Info("created SRV record via webhook",
		slog.String("hostname", hostname),
		slog.Uint64("port", uint64(port)),
		slog.String("target", target),
		slog.Int("ttl", ttl),
	)
	return nil
}

// Update posts an old/new pair to /update so the endpoint can swap the
// record in place.
func (c *Client) Update(ctx context.Context, hostname, recordType, oldValue, newValue string, ttl int) error {
	err := c.sendJSON(ctx, "update", http.MethodPost, "/update",
		UpdateRequest{
			Hostname: hostname,
			Type:     recordType,
			Old:      RecordRequest{Hostname: hostname, Type: recordType, Value: oldValue},
			New:      RecordRequest{Hostname: hostname, Type: recordType, Value: newValue, TTL: ttl},
		},
		http.StatusOK, http.StatusNoContent,
	)
	if err != nil {
		return err
	}

	c.logger.Info("updated record via webhook",
		slog.String("hostname", hostname),
		slog.String("type", recordType),
		slog.String("old_value", oldValue),
		slog.String("new_value", newValue),
	)
	return nil
}

// UpdateSRV posts an old/new SRV pair to /update.
func (c *Client) UpdateSRV(ctx context.Context, hostname string,
	oldPriority, oldWeight, oldPort uint16, oldTarget string,
	newPriority, newWeight, newPort uint16, newTarget string, ttl int) error {
	err := c.sendJSON(ctx, "update SRV", http.MethodPost, "/update",
		UpdateRequest{
			Hostname: hostname,
			Type:     "SRV",
			Old: RecordRequest{
				Hostname: hostname, Type: "SRV", Value: oldTarget,
				SRV: &SRVData{Priority: oldPriority, Weight: oldWeight, Port: oldPort},
			},
			New: RecordRequest{
				Hostname: hostname, Type: "SRV", Value: newTarget, TTL: ttl,
				SRV: &SRVData{Priority: newPriority, Weight: newWeight, Port: newPort},
			},
		},
		http.StatusOK, http.StatusNoContent,
	)
	if err != nil {
		return err
	}

	c.logger.Info("updated SRV record via webhook",
		slog.String("hostname", hostname),
		slog.String("new_target", newTarget),
	)
	return nil
}

// Delete posts to /delete; 404 counts as success so deletes stay
// idempotent.
func (c *Client) Delete(ctx context.Context, hostname, recordType string) error {
	err := c.sendJSON(ctx, "delete", http.MethodDelete, "/delete",
		DeleteRequest{Hostname: hostname, Type: recordType},
		http.StatusOK, http.StatusNoContent, http.StatusNotFound,
	)
	if err != nil {
		return err
	}

	c.logger.Info("deleted record via webhook",
		slog.String("hostname", hostname),
		slog.String("type", recordType),
	)
	return nil
}
