package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return e.Status + ": " + e.Body
}

// HTTPClient performs JSON requests with an optional retry policy. Only
// transport errors and 5xx/429 responses are retried.
type HTTPClient struct {
	client *http.Client
	retry  RetryPolicy
}

func NewHTTPClient(timeout time.Duration, retry RetryPolicy) *HTTPClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout}, retry: retry}
}

// GetJSON issues a GET to rawURL and decodes the JSON body into out.
// Transport errors never carry the query string, which may hold a key.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	return c.retry.Retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			var uerr *url.Error
			if errors.As(err, &uerr) {
				uerr.URL = stripQuery(uerr.URL)
			}
			if ctx.Err() != nil {
				return Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// best-effort body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(b)}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return statusErr
			}
			return Permanent(statusErr)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}

func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<redacted>"
	}
	u.RawQuery = ""
	return u.String()
}
