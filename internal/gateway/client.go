// Package gateway is the HTTP client for the remote order API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/millsync/internal/ledger"
)

const (
	// DefaultTimeout bounds each round trip.
	DefaultTimeout = 15 * time.Second

	// DefaultUserAgent identifies the processor to the API.
	DefaultUserAgent = "millsync/1.0"

	// maxErrorBody caps how much of a rejected response is kept.
	maxErrorBody = 4096
)

// Endpoints holds the three API URLs.
type Endpoints struct {
	List   string
	Create string
	Update string
}

// Client talks to the order API.
type Client struct {
	endpoints  Endpoints
	userAgent  string
	httpClient *http.Client
	loc        *time.Location
	logger     *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLocation sets the location wire timestamps are read and written in.
func WithLocation(loc *time.Location) ClientOption {
	return func(c *Client) {
		c.loc = loc
	}
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new order API client.
func NewClient(endpoints Endpoints, opts ...ClientOption) *Client {
	c := &Client{
		endpoints:  endpoints,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		loc:        time.Local,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches every order. Orders that cannot be parsed are logged and
// left out of the result.
func (c *Client) List(ctx context.Context) ([]ledger.Order, error) {
	env, _, err := c.do(ctx, "list", http.MethodGet, c.endpoints.List, nil)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if len(bytes.TrimSpace(env.Data)) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, fmt.Errorf("list: decode data: %w", err)
		}
	}

	orders := make([]ledger.Order, 0, len(raw))
	for i, r := range raw {
		var w wireOrder
		if err := json.Unmarshal(r, &w); err != nil {
			c.logger.Warn("skipping undecodable order", "index", i, "error", err)
			continue
		}
		o, err := w.toOrder(c.loc)
		if err != nil {
			c.logger.Warn("skipping order", "index", i, "error", err)
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// Create submits a new order. The returned order is nil when the API
// acknowledged the create without echoing an order body, and carries only
// the order code when the echo could not be decoded in full.
func (c *Client) Create(ctx context.Context, r ledger.CreateRequest) (*ledger.Order, error) {
	p := newCreatePayload(r, c.loc)
	c.logger.Debug("create order",
		"orderer", p.Orderer,
		"work_start", p.WorkStartTime,
		"result", p.Result,
		"total_minutes", formatMinutes(p.TotalWorkTime))

	env, _, err := c.do(ctx, "create", http.MethodPost, c.endpoints.Create, p)
	if err != nil {
		return nil, err
	}
	return c.echo("create", env.Data), nil
}

// Update completes an in-progress order addressed by orderer and start time.
func (c *Client) Update(ctx context.Context, r ledger.UpdateRequest) (*ledger.Order, error) {
	p := newUpdatePayload(r, c.loc)
	c.logger.Debug("update order",
		"orderer", p.Orderer,
		"work_start", p.WorkStartTime,
		"work_end", p.WorkEndTime,
		"total_minutes", formatMinutes(p.TotalWorkTime))

	env, _, err := c.do(ctx, "update", http.MethodPost, c.endpoints.Update, p)
	if err != nil {
		return nil, err
	}
	return c.echo("update", env.Data), nil
}

// echo decodes the order body of an accepted write. The write already
// succeeded, so an unreadable body is logged and reduced to its code.
func (c *Client) echo(op string, raw json.RawMessage) *ledger.Order {
	o, err := decodeOrder(raw, c.loc)
	if err == nil {
		return o
	}
	code := echoedCode(raw)
	c.logger.Warn("order echo unreadable", "op", op, "order_code", code, "error", err)
	if code == "" {
		return nil
	}
	return &ledger.Order{OrderCode: code}
}

// do performs one request and unwraps the response envelope.
func (c *Client) do(ctx context.Context, op, method, url string, body any) (envelope, int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return envelope{}, 0, fmt.Errorf("%s: encode payload: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return envelope{}, 0, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, 0, &ConnectivityError{Op: op, URL: url, Kind: classify(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, resp.StatusCode, &ConnectivityError{Op: op, URL: url, Kind: classify(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
		var env envelope
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message = env.Message
		}
		return envelope{}, resp.StatusCode, apiErr
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, resp.StatusCode, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if !env.Success {
		return envelope{}, resp.StatusCode, &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    env.Message,
			Body:       truncate(string(data), maxErrorBody),
		}
	}
	return env, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
