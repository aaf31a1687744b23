// Package cloudflare implements the Trafego provider interface for
// Cloudflare DNS.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trafegodns/trafego/pkg/httputil"
	"github.com/trafegodns/trafego/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the Cloudflare API v4 base URL.
	DefaultAPIEndpoint = "https://api.cloudflare.com/client/v4"

	// DefaultTimeout bounds one API round trip.
	DefaultTimeout = 30 * time.Second

	// listPageSize is the per_page value used when walking record pages.
	listPageSize = 100
)

// Cloudflare error codes for "this record already exists".
const (
	errCodeHostExists      = 81053
	errCodeIdenticalExists = 81058
)

// apiError is one error entry in a Cloudflare response envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// apiResponse is the envelope every Cloudflare v4 response uses.
type apiResponse struct {
	Success    bool            `json:"success"`
	Errors     []apiError      `json:"errors"`
	Messages   []string        `json:"messages"`
	Result     json.RawMessage `json:"result"`
	ResultInfo *resultInfo     `json:"result_info"`
}

// resultInfo carries pagination state.
type resultInfo struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// zoneResult is one zone in a zone listing.
type zoneResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// srvData is Cloudflare's structured SRV payload.
type srvData struct {
	Priority uint16 `json:"priority"`
	Weight   uint16 `json:"weight"`
	Port     uint16 `json:"port"`
	Target   string `json:"target"`
}

// dnsRecord is a record as Cloudflare returns it.
type dnsRecord struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Content string   `json:"content"`
	TTL     int      `json:"ttl"`
	Proxied bool     `json:"proxied"`
	Comment string   `json:"comment,omitempty"`
	ZoneID  string   `json:"zone_id"`
	Data    *srvData `json:"data,omitempty"`
}

// recordPayload is the request body for record creates and updates.
type recordPayload struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Content string   `json:"content,omitempty"`
	TTL     int      `json:"ttl"`
	Proxied bool     `json:"proxied"`
	Comment string   `json:"comment,omitempty"`
	Data    *srvData `json:"data,omitempty"`
}

// Client is a typed client over the handful of Cloudflare endpoints the
// engine uses: token verification, zone lookup, and record CRUD.
type Client struct {
	apiEndpoint string
	token       string
	httpClient  *http.Client
	logger      *slog.Logger
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

// WithAPIEndpoint points the client at a different base URL, used by tests.
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.apiEndpoint = endpoint }
}

// NewClient builds a client authenticated with the given API token. The
// default transport retries connection failures and 5xx responses before
// the provider-level retry policy ever sees them.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		token:       token,
		httpClient:  httputil.NewRetryingClient(&httputil.ClientConfig{Timeout: DefaultTimeout}, 2),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// classifyStatus maps an HTTP status onto the engine's error taxonomy.
func classifyStatus(status int, retryAfter string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.ErrUnauthorized
	case status == http.StatusTooManyRequests:
		rl := &provider.RateLimitedError{}
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			rl.RetryAfter = time.Duration(seconds) * time.Second
		}
		return rl
	case status >= 500:
		return provider.ErrProviderUnavailable
	default:
		return nil
	}
}

// doRequest performs one API call and unwraps the response envelope,
// translating Cloudflare's error vocabulary into the provider taxonomy.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	c.logger.Debug("making API request",
		slog.String("method", method),
		slog.String("path", path),
	)

	req, err := http.NewRequestWithContext(ctx, method, c.apiEndpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var apiResp apiResponse
	parseErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parseErr == nil && len(apiResp.Errors) > 0 {
			first := apiResp.Errors[0]
			if first.Code == errCodeHostExists || first.Code == errCodeIdenticalExists {
				return nil, provider.ErrConflict
			}
			if classified := classifyStatus(resp.StatusCode, resp.Header.Get("Retry-After")); classified != nil {
				return nil, fmt.Errorf("%w: %s (code: %d)", classified, first.Message, first.Code)
			}
			return nil, fmt.Errorf("API error: %s (code: %d)", first.Message, first.Code)
		}
		if classified := classifyStatus(resp.StatusCode, resp.Header.Get("Retry-After")); classified != nil {
			return nil, classified
		}
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	if parseErr != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", parseErr)
	}
	if !apiResp.Success {
		if len(apiResp.Errors) > 0 {
			return nil, fmt.Errorf("API error: %s (code: %d)", apiResp.Errors[0].Message, apiResp.Errors[0].Code)
		}
		return nil, fmt.Errorf("API request failed with unknown error")
	}

	return &apiResp, nil
}

// Ping verifies the token with the lightweight verify endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/user/tokens/verify", nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// GetZoneID resolves the zone containing domain by stripping leading
// labels until a zone name matches.
func (c *Client) GetZoneID(ctx context.Context, domain string) (string, error) {
	parts := strings.Split(domain, ".")
	for i := 0; i < len(parts)-1; i++ {
		zoneName := strings.Join(parts[i:], ".")
		params := url.Values{}
		params.Set("name", zoneName)
		params.Set("status", "active")

		resp, err := c.doRequest(ctx, http.MethodGet, "/zones?"+params.Encode(), nil)
		if err != nil {
			continue
		}

		var zones []zoneResult
		if err := json.Unmarshal(resp.Result, &zones); err != nil {
			continue
		}
		if len(zones) > 0 {
			c.logger.Debug("found zone",
				slog.String("domain", domain),
				slog.String("zone", zoneName),
				slog.String("zone_id", zones[0].ID),
			)
			return zones[0].ID, nil
		}
	}

	return "", fmt.Errorf("no zone found for domain %s", domain)
}

// ListRecords returns every record of recordType in the zone, walking
// pagination until the last page.
func (c *Client) ListRecords(ctx context.Context, zoneID string, recordType string) ([]dnsRecord, error) {
	var all []dnsRecord

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("type", recordType)
		params.Set("per_page", strconv.Itoa(listPageSize))
		params.Set("page", strconv.Itoa(page))

		path := fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, params.Encode())
		resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, fmt.Errorf("listing records: %w", err)
		}

		var records []dnsRecord
		if err := json.Unmarshal(resp.Result, &records); err != nil {
			return nil, fmt.Errorf("parsing records response: %w", err)
		}
		all = append(all, records...)

		if resp.ResultInfo == nil || resp.ResultInfo.Page >= resp.ResultInfo.TotalPages {
			break
		}
	}

	c.logger.Debug("listed records",
		slog.String("zone_id", zoneID),
		slog.String("type", recordType),
		slog.Int("count", len(all)),
	)
	return all, nil
}

// CreateRecord creates a record and returns Cloudflare's view of it,
// including the assigned ID.
func (c *Client) CreateRecord(ctx context.Context, zoneID string, payload recordPayload) (*dnsRecord, error) {
	path := fmt.Sprintf("/zones/%s/dns_records", zoneID)
	resp, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, fmt.Errorf("creating record: %w", err)
	}

	var created dnsRecord
	if err := json.Unmarshal(resp.Result, &created); err != nil {
		return nil, fmt.Errorf("parsing create response: %w", err)
	}

	c.logger.Info("created DNS record",
		slog.String("zone_id", zoneID),
		slog.String("type", payload.Type),
		slog.String("name", payload.Name),
		slog.String("content", payload.Content),
		slog.Int("ttl", payload.TTL),
		slog.Bool("proxied", payload.Proxied),
	)
	return &created, nil
}

// UpdateRecord overwrites a record in place by ID.
func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID string, payload recordPayload) error {
	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	if _, err := c.doRequest(ctx, http.MethodPut, path, payload); err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	c.logger.Info("updated DNS record",
		slog.String("zone_id", zoneID),
		slog.String("record_id", recordID),
		slog.String("name", payload.Name),
	)
	return nil
}

// DeleteRecord removes a record by ID.
func (c *Client) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	c.logger.Info("deleted DNS record",
		slog.String("zone_id", zoneID),
		slog.String("record_id", recordID),
	)
	return nil
}

// FindRecord looks one record up by type and name; nil when absent.
func (c *Client) FindRecord(ctx context.Context, zoneID, recordType, name string) (*dnsRecord, error) {
	params := url.Values{}
	params.Set("type", recordType)
	params.Set("name", name)

	path := fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, params.Encode())
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("finding record: %w", err)
	}

	var records []dnsRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("parsing records response: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}
