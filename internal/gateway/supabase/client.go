// Package supabase implements the gateway contract against a hosted
// Supabase project: PostgREST for rows, GoTrue for auth and Realtime for
// the change feed.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
)

// Client is a thin HTTP client for the project's REST and auth endpoints.
// It sends the public API key on every request, adds a bearer token when
// one is given, and retries with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	maxRetries int
	log        *zap.Logger
}

// NewClient creates a client for the project at baseURL
// (e.g. https://abcd.supabase.co).
func NewClient(baseURL, anonKey string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		log:        log,
	}
}

// request describes one call. A zero token authenticates with the API key.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	header http.Header
	token  string
	body   any
	result any
}

// do builds the request, handles auth headers and rate limiting, and maps
// failures onto the gateway error types.
func (c *Client) do(ctx context.Context, r request) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var data []byte
	if r.body != nil {
		var err error
		data, err = json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if data != nil {
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, r.method, u, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		token := r.token
		if token == "" {
			token = c.anonKey
		}
		req.Header.Set("apikey", c.anonKey)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, vs := range r.header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &gateway.TransportError{Op: r.op, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return &gateway.TransportError{
				Op:         r.op,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("reading response body: %w", readErr),
			}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfterDuration(resp, attempt)
			lastErr = &gateway.TransportError{
				Op:         r.op,
				StatusCode: resp.StatusCode,
				Err:        errors.New("rate limited"),
			}
			c.log.Debug("rate limited",
				zap.String("op", r.op),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
			if attempt == c.maxRetries {
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(r.op, resp.StatusCode, respBody)
		}

		// No content to parse (e.g. 204).
		if r.result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, r.result); err != nil {
			return &gateway.TransportError{
				Op:         r.op,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("unmarshaling response: %w", err),
			}
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// statusError maps a non-2xx response. 401 and 403 mean the session or
// credentials were rejected; 400 from the token endpoint is an invalid
// grant and is treated the same way by the callers that care.
func statusError(op string, status int, body []byte) error {
	var apiErr apiError
	msg := ""
	if json.Unmarshal(body, &apiErr) == nil {
		msg = apiErr.text()
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &gateway.AuthError{Op: op, Message: msg}
	}
	return &gateway.TransportError{Op: op, StatusCode: status, Err: errors.New(msg)}
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
