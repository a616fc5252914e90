// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/localagentweaver/weaver/internal/metrics"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the backend client.
type Config struct {
	// BaseURL is the backend root URL (default: http://127.0.0.1:8000)
	BaseURL string

	// Token is the bearer token sent with every request (optional)
	Token string

	// Timeout for a single request (default: 30s)
	Timeout time.Duration

	// RequestsPerSecond caps the client-side request rate (0 = unlimited)
	RequestsPerSecond float64

	// UserAgent sent with every request
	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "http://127.0.0.1:8000",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 20,
		UserAgent:         "weaver",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the LocalAgentWeaver REST API.
//
// The Client is safe for concurrent use.
type Client struct {
	config  *Config
	rc      *resty.Client
	limiter *rate.Limiter

	mu    sync.RWMutex
	token string
}

// NewClient creates a client. Zero values in config are filled with defaults.
func NewClient(config *Config) *Client {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	limit := rate.Inf
	burst := 1
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
		burst = int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	c := &Client{
		config:  config,
		limiter: rate.NewLimiter(limit, burst),
		token:   config.Token,
	}

	c.rc = resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", config.UserAgent)

	c.rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		r.SetHeader("X-Request-ID", uuid.NewString())
		if tok := c.Token(); tok != "" {
			r.SetAuthToken(tok)
		}
		return nil
	})
	c.rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		metrics.ObserveAPIRequest(resp.Request.Method, resp.StatusCode(), float64(resp.Time().Milliseconds()))
		return nil
	})
	c.rc.OnError(func(r *resty.Request, _ error) {
		metrics.ObserveAPIRequest(r.Method, 0, 0)
	})

	return c
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return transportError(method, path, err)
	}

	req := c.rc.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	return c.handle(method, path, resp, err, out)
}

// handle converts a resty result into the package's error model.
func (c *Client) handle(method, path string, resp *resty.Response, err error, out interface{}) error {
	if err != nil {
		return transportError(method, path, err)
	}

	if resp.IsError() {
		msg := detailMessage(resp.Body())
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return &APIError{
			Kind:    kindForStatus(resp.StatusCode()),
			Status:  resp.StatusCode(),
			Method:  method,
			Path:    path,
			Message: msg,
		}
	}

	if out == nil || len(resp.Body()) == 0 || resp.StatusCode() == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &APIError{
			Kind:    KindInvalidResponse,
			Status:  resp.StatusCode(),
			Method:  method,
			Path:    path,
			Message: "failed to decode response",
			Cause:   err,
		}
	}
	return nil
}

// Ping checks that the backend answers on its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
