package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient is a minimal wrapper around *http.Client for talking to
// facilitators. Deliberately no retry or backoff layer: verify and settle
// are non-idempotent from this server's view (a retried settle risks a
// double charge), so the facilitator is treated as the source of truth and
// ambiguous outcomes are logged, never re-sent.
type httpClient struct {
	inner   *http.Client
	baseURL string
}

// Option configures an httpClient.
type Option func(*httpClient)

// WithTimeout sets the client's request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.inner.Timeout = d }
}

func newHTTPClient(baseURL string, opts ...Option) *httpClient {
	c := &httpClient{inner: &http.Client{Timeout: 10 * time.Second}, baseURL: baseURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) postJSON(ctx context.Context, path string, body any, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("payment: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.inner.Do(req)
	if err != nil {
		return 0, fmt.Errorf("payment: facilitator request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("payment: read facilitator response: %w", err)
	}

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("payment: decode facilitator response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// Verification gates the client's visible response so it stays short;
// settlement happens post-response so it can afford to wait longer.
const (
	VerifyTimeout = 3 * time.Second
	SettleTimeout = 15 * time.Second
)
