package drivers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paygate/internal/circuitbreaker"
)

// apiClient is the shared HTTP client for vendor APIs. Every call runs
// through the provider's circuit breaker and respects the context deadline.
type apiClient struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	breaker    *circuitbreaker.Breaker
}

func newAPIClient(baseURL, secretKey string, breaker *circuitbreaker.Breaker) *apiClient {
	return &apiClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		breaker:   breaker,
	}
}

// getJSON performs a GET and decodes the JSON response into out.
func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// postJSON performs a POST with a JSON body and decodes the response into out.
func (c *apiClient) postJSON(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(jsonData), out)
}

// postForm performs a POST with a form-encoded body and decodes the response
// into out. Stripe's API is form-encoded on writes.
func (c *apiClient) postForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), out)
}

// putJSON performs a PUT with a JSON body and decodes the response into out.
func (c *apiClient) putJSON(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPut, path, "application/json", bytes.NewReader(jsonData), out)
}

func (c *apiClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	return c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}
