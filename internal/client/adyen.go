// Package client provides the upstream HTTP client for the Adyen Checkout API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adyen-session-proxy/internal/config"
	"adyen-session-proxy/internal/metrics"
	"adyen-session-proxy/internal/model"
)

const (
	sessionsEndpoint = "/sessions"
	apiKeyHeader     = "X-API-Key"
	userAgent        = "adyen-session-proxy/1.0"
)

// AdyenClient sends requests to the Adyen Checkout API with the server-side API key.
type AdyenClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewAdyenClient creates an AdyenClient with connection pooling.
// A zero upstream.timeout_seconds leaves the client without an overall timeout;
// the inbound request context still bounds each call.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewAdyenClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *AdyenClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &AdyenClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.Adyen.BaseURL, "/"),
		apiKey:  cfg.Adyen.APIKey,
		logger:  logger.With("component", "adyen_client"),
		metrics: m,
	}
}

// CreateSession posts body to <base_url>/sessions and returns the fully read response.
// Any HTTP status is returned without error; err is non-nil only when no
// response was received.
func (c *AdyenClient) CreateSession(ctx context.Context, body *model.UpstreamSessionRequest) (*model.UpstreamResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}
	return c.post(ctx, sessionsEndpoint, payload)
}

func (c *AdyenClient) post(ctx context.Context, endpoint string, payload []byte) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(apiKeyHeader, c.apiKey)

	c.logger.Debug("upstream request", "endpoint", endpoint)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	c.observe(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// observe records latency, and the response status when one was received.
func (c *AdyenClient) observe(endpoint string, status int, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	if status != 0 {
		c.metrics.UpstreamResponses.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}
}
