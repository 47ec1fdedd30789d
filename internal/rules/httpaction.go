package rules

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPActionTimeout  = 10 * time.Second
	maxHTTPActionResponseSize = int64(1 << 16) // 16KB; responses are discarded, just bounded
)

// HTTPActionClient issues a rule's HTTP action over the network. Modeled
// on the Home Assistant tool client's bounded-body request pattern: a
// fixed timeout, explicit method/headers, and a response body read under
// a hard size cap so a misbehaving endpoint can't stall or exhaust memory.
type HTTPActionClient struct {
	client *http.Client
}

// NewHTTPActionClient creates an HTTPActionClient with the given timeout,
// defaulting to 10s.
func NewHTTPActionClient(timeout time.Duration) *HTTPActionClient {
	if timeout <= 0 {
		timeout = defaultHTTPActionTimeout
	}
	return &HTTPActionClient{client: &http.Client{Timeout: timeout}}
}

func (c *HTTPActionClient) Do(ctx context.Context, method, url string, headers map[string]string, body string) error {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("rules: HTTP action requires a url")
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("rules: create HTTP action request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("rules: HTTP action request failed: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxHTTPActionResponseSize)); err != nil {
		return fmt.Errorf("rules: read HTTP action response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("rules: HTTP action returned status %s", resp.Status)
	}
	return nil
}

var _ HTTPRequester = (*HTTPActionClient)(nil)
