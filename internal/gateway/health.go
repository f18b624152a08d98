package gateway

import (
	"context"
	"time"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/ledger"
)

// HealthCheckOrderer marks the dummy order written by write probes.
const HealthCheckOrderer = "API_HEALTH_CHECK"

// ProbeResult is the outcome of probing one endpoint.
type ProbeResult struct {
	Endpoint   string        `json:"endpoint"`
	URL        string        `json:"url"`
	OK         bool          `json:"ok"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	Orders     int           `json:"orders,omitempty"`
	Error      string        `json:"error,omitempty"`
	Kind       string        `json:"kind,omitempty"`
}

// Health probes the list endpoint and, when writes is true, the create and
// update endpoints with a dummy order.
func (c *Client) Health(ctx context.Context, writes bool) []ProbeResult {
	results := []ProbeResult{c.probe(ctx, "list", c.endpoints.List, func(ctx context.Context) (int, error) {
		orders, err := c.List(ctx)
		return len(orders), err
	})}
	if !writes {
		return results
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, c.loc)
	end := start.Add(time.Hour)
	minutes := 60

	results = append(results, c.probe(ctx, "create", c.endpoints.Create, func(ctx context.Context) (int, error) {
		_, err := c.Create(ctx, ledger.CreateRequest{
			EquipmentModel: "TEST-" + HealthCheckOrderer,
			Orderer:        HealthCheckOrderer,
			WorkStart:      start,
			Result:         job.StatusInProgress,
		})
		return 0, err
	}))
	results = append(results, c.probe(ctx, "update", c.endpoints.Update, func(ctx context.Context) (int, error) {
		_, err := c.Update(ctx, ledger.UpdateRequest{
			Orderer:      HealthCheckOrderer,
			WorkStart:    start,
			WorkEnd:      end,
			TotalMinutes: &minutes,
		})
		return 0, err
	}))
	return results
}

func (c *Client) probe(ctx context.Context, endpoint, url string, fn func(context.Context) (int, error)) ProbeResult {
	began := time.Now()
	n, err := fn(ctx)
	r := ProbeResult{Endpoint: endpoint, URL: url, Latency: time.Since(began), Orders: n}
	if err == nil {
		r.OK = true
		c.logger.Info("probe ok", "endpoint", endpoint, "latency_ms", r.Latency.Milliseconds())
		return r
	}

	r.Error = err.Error()
	r.StatusCode = StatusCode(err)
	if ce, ok := asConnectivity(err); ok {
		r.Kind = string(ce.Kind)
	}
	c.logger.Error("probe failed", "endpoint", endpoint, "url", url, "status", r.StatusCode, "kind", r.Kind, "error", err)
	return r
}
