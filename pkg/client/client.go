// Package client provides a Go SDK for the cracklab HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error %d", e.StatusCode)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is the cracklab SDK entry point.
type Client struct {
	base        string
	httpClient  *http.Client
	adminSecret string

	// admin token state, guarded by mu
	mu          sync.Mutex
	bearerToken string
	tokenExpiry time.Time // zero = token was set manually (no auto-refresh)
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithAdminToken attaches a pre-obtained admin token to admin requests.
// The token is treated as long-lived and will not be auto-refreshed.
func WithAdminToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		c.tokenExpiry = time.Time{}
		return nil
	}
}

// WithAdminSecret makes the client exchange secret for an admin token on
// the first admin call and again shortly before each token expires.
func WithAdminSecret(secret string) Option {
	return func(c *Client) error {
		if secret == "" {
			return errors.New("admin secret is empty")
		}
		c.adminSecret = secret
		return nil
	}
}

// New creates a new Client for the API served at base, e.g.
// "https://lab.example.edu".
func New(base string, opts ...Option) (*Client, error) {
	if base == "" {
		return nil, errors.New("API base URL is empty")
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// AdminToken exchanges secret for an admin token, caches it, and returns it.
func (c *Client) AdminToken(ctx context.Context, secret string) (string, error) {
	token, expiry, err := c.fetchTokenRaw(ctx, secret)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.bearerToken = token
	c.tokenExpiry = expiry
	c.mu.Unlock()
	return token, nil
}

func (c *Client) fetchTokenRaw(ctx context.Context, secret string) (token string, expiry time.Time, err error) {
	var payload struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	status, body, err := c.send(ctx, http.MethodPost, "/api/v1/admin/token", "", map[string]string{"secret": secret})
	if err != nil {
		return "", time.Time{}, err
	}
	if err := decodeOK(status, body, &payload); err != nil {
		return "", time.Time{}, fmt.Errorf("admin token: %w", err)
	}

	// Refresh 60 s before actual expiry to avoid clock-skew failures.
	const refreshBuffer = 60 * time.Second
	exp := time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - refreshBuffer)
	return payload.Token, exp, nil
}

// ensureToken returns a valid admin token, exchanging the configured secret
// when the cached token is absent or approaching expiry.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bearerToken != "" && (c.tokenExpiry.IsZero() || time.Now().Before(c.tokenExpiry)) {
		return c.bearerToken, nil
	}
	if c.adminSecret == "" {
		return "", errors.New("admin credentials not configured")
	}

	token, expiry, err := c.fetchTokenRaw(ctx, c.adminSecret)
	if err != nil {
		return "", err
	}
	c.bearerToken = token
	c.tokenExpiry = expiry
	return token, nil
}

// admin performs an authenticated admin call and decodes a 2xx body into out.
func (c *Client) admin(ctx context.Context, method, path string, in, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return fmt.Errorf("obtain admin token: %w", err)
	}
	status, body, err := c.send(ctx, method, path, token, in)
	if err != nil {
		return err
	}
	return decodeOK(status, body, out)
}

// send executes one request and returns the raw status and body.
func (c *Client) send(ctx context.Context, method, path, token string, in any) (int, []byte, error) {
	var bodyReader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// decodeOK turns a non-2xx response into an *APIError and otherwise decodes
// body into out (when out is non-nil).
func decodeOK(status int, body []byte, out any) error {
	if status < 200 || status >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: status, Message: msg}
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
