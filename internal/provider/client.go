package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	defaultAttempts    = 3
	defaultRetryDelay  = 200 * time.Millisecond

	// maxResponseBody caps how much of an upstream response is read.
	maxResponseBody = 1 << 20
)

// httpClient wraps an *http.Client with bounded retries for provider
// API calls. Network failures and 5xx responses are retried; any 4xx
// response is terminal and surfaces as ErrInvalidCredential.
type httpClient struct {
	client *http.Client
}

func newHTTPClient() *httpClient {
	return &httpClient{
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// getJSON fetches rawURL and decodes the response body into dest.
func (c *httpClient) getJSON(ctx context.Context, rawURL string, dest any) error {
	return c.getJSONWithHeaders(ctx, rawURL, nil, dest)
}

func (c *httpClient) getJSONWithHeaders(ctx context.Context, rawURL string, headers map[string]string, dest any) error {
	return c.doJSON(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}, headers, dest)
}

// postForm posts an application/x-www-form-urlencoded body and decodes
// the response into dest. Extra headers apply to every attempt.
func (c *httpClient) postForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string, dest any) error {
	body := form.Encode()
	return c.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, headers, dest)
}

// postJSON posts a JSON body and decodes the response into dest.
func (c *httpClient) postJSON(ctx context.Context, rawURL string, payload any, dest any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(raw)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, nil, dest)
}

func (c *httpClient) doJSON(ctx context.Context, newReq func() (*http.Request, error), headers map[string]string, dest any) error {
	err := retry.New(
		retry.Attempts(defaultAttempts),
		retry.Delay(defaultRetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	).Do(func() error {
		req, err := newReq()
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return fmt.Errorf("%w: read response: %v", ErrUpstreamUnavailable, err)
		}

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
		case resp.StatusCode >= 400:
			return retry.Unrecoverable(fmt.Errorf("%w: status %d", ErrInvalidCredential, resp.StatusCode))
		}

		if dest == nil {
			return nil
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			return retry.Unrecoverable(fmt.Errorf("%w: decode response: %v", ErrUpstreamUnavailable, err))
		}
		return nil
	})
	return err
}
