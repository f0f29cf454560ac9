// Package api provides an HTTP client for the marketplace REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matmarket/market-cli/internal/config"
	"github.com/matmarket/market-cli/internal/observability"
	"github.com/matmarket/market-cli/internal/output"
	"github.com/matmarket/market-cli/internal/version"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	maxJitter         = 100 * time.Millisecond
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is an HTTP client for the marketplace API.
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
	language   string
	cache      *Cache
	hooks      observability.Hooks
	maxRetries int
	baseDelay  time.Duration
}

// Response wraps an API response.
type Response struct {
	Data       json.RawMessage
	StatusCode int
	Headers    http.Header
	FromCache  bool
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	return json.Unmarshal(r.Data, v)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHooks installs observability hooks.
func WithHooks(h observability.Hooks) Option {
	return func(c *Client) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithCache enables the ETag response cache for GET requests.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithRetry sets the attempt budget and the base backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxRetries = maxAttempts
		}
		c.baseDelay = baseDelay
	}
}

// NewClient creates a new API client.
func NewClient(cfg *config.Config, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tokens:     tokens,
		baseURL:    config.NormalizeBaseURL(cfg.BaseURL),
		language:   cfg.Language,
		hooks:      observability.NopHooks{},
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
	}
	if cfg.CacheEnabled && cfg.CacheDir != "" {
		c.cache = NewCache(cfg.CacheDir)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Language returns the configured content language.
func (c *Client) Language() string { return c.language }

// Hooks returns the installed observability hooks.
func (c *Client) Hooks() observability.Hooks { return c.hooks }

// Get performs a GET request with query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.buildURL(path, query), nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, c.buildURL(path, nil), body)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPatch, c.buildURL(path, nil), body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, c.buildURL(path, nil), nil)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
	}

	// One key per logical request so a retried POST cannot create twice.
	var idempotencyKey string
	if method == http.MethodPost {
		idempotencyKey = uuid.NewString()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.singleRequest(ctx, method, rawURL, payload, idempotencyKey, attempt)
		if err == nil {
			return resp, nil
		}

		var apiErr *output.Error
		if !errors.As(err, &apiErr) || !apiErr.Retryable {
			return nil, err
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}

		c.hooks.OnRetry(ctx, observability.RequestInfo{Method: method, URL: rawURL, Attempt: attempt}, attempt+1, err)

		select {
		case <-ctx.Done():
			return nil, output.ErrNetwork(ctx.Err())
		case <-time.After(c.backoffDelay(attempt)):
		}
	}

	return nil, lastErr
}

func (c *Client) singleRequest(ctx context.Context, method, rawURL string, payload []byte, idempotencyKey string, attempt int) (*Response, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	var cacheKey string
	if method == http.MethodGet && c.cache != nil {
		cacheKey = c.cache.Key(rawURL, c.language, token)
		if etag := c.cache.GetETag(cacheKey); etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
	}

	info := observability.RequestInfo{Method: method, URL: rawURL, Attempt: attempt}
	ctx = c.hooks.OnRequestStart(ctx, info)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		netErr := output.ErrNetwork(err)
		c.hooks.OnRequestEnd(ctx, info, observability.RequestResult{Duration: time.Since(start), Retryable: true, Error: netErr})
		return nil, netErr
	}
	defer resp.Body.Close()

	result, apiErr := c.handleResponse(resp, method, rawURL, cacheKey)
	rr := observability.RequestResult{StatusCode: resp.StatusCode, Duration: time.Since(start), Error: apiErr}
	if result != nil {
		rr.FromCache = result.FromCache
	}
	var oe *output.Error
	if errors.As(apiErr, &oe) {
		rr.Retryable = oe.Retryable
	}
	c.hooks.OnRequestEnd(ctx, info, rr)

	if apiErr == nil && c.cache != nil && (method == http.MethodPatch || method == http.MethodDelete) {
		c.dropCached(rawURL, token)
	}

	return result, apiErr
}

// dropCached removes the cached GET bodies of an item URL, both the plain
// form and the one localized resources fetch with ?lang=.
func (c *Client) dropCached(rawURL, token string) {
	urls := []string{rawURL}
	if c.language != "" {
		urls = append(urls, rawURL+"?"+url.Values{"lang": {c.language}}.Encode())
	}
	for _, u := range urls {
		_ = c.cache.Invalidate(c.cache.Key(u, c.language, token))
	}
}

func (c *Client) handleResponse(resp *http.Response, method, rawURL, cacheKey string) (*Response, error) {
	switch {
	case resp.StatusCode == http.StatusNotModified:
		if cacheKey != "" {
			if cached := c.cache.GetBody(cacheKey); cached != nil {
				return &Response{Data: cached, StatusCode: http.StatusOK, Headers: resp.Header, FromCache: true}, nil
			}
		}
		return nil, output.ErrAPI(http.StatusNotModified, "304 received but no cached response available")

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, output.ErrNetwork(fmt.Errorf("failed to read response: %w", err))
		}
		if cacheKey != "" {
			if etag := resp.Header.Get("ETag"); etag != "" {
				_ = c.cache.Set(cacheKey, respBody, etag) // Best-effort cache write
			}
		}
		return &Response{Data: respBody, StatusCode: resp.StatusCode, Headers: resp.Header}, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := ServerMessage(respBody)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return nil, output.ErrValidation(resp.StatusCode, orDefault(msg, FallbackMessage(resp.StatusCode)))

	case http.StatusUnauthorized:
		return nil, output.ErrAuth(orDefault(msg, "Authentication failed"))

	case http.StatusForbidden:
		return nil, output.ErrForbidden(orDefault(msg, "Access denied"))

	case http.StatusNotFound:
		if msg != "" {
			return nil, &output.Error{Code: output.CodeNotFound, Message: msg, HTTPStatus: http.StatusNotFound}
		}
		return nil, output.ErrNotFound("Resource", pathOf(rawURL))

	case http.StatusTooManyRequests:
		return nil, output.ErrRateLimit(parseRetryAfter(resp.Header.Get("Retry-After")))

	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, &output.Error{
			Code:       output.CodeAPI,
			Message:    fmt.Sprintf("Gateway error (%d)", resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			Retryable:  true,
		}

	default:
		return nil, output.ErrAPI(resp.StatusCode, orDefault(msg, FallbackMessage(resp.StatusCode)))
	}
}

// FallbackMessage is used when an error body carries no usable message.
func FallbackMessage(status int) string {
	return fmt.Sprintf("Request failed (HTTP %d)", status)
}

// ServerMessage extracts a human message from an error body. The server
// sends `message` as a string or as a list of validation messages, and
// sometimes only a terse `error` reason phrase.
func ServerMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}

	if len(payload.Message) > 0 {
		var s string
		if json.Unmarshal(payload.Message, &s) == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		var list []string
		if json.Unmarshal(payload.Message, &list) == nil {
			var parts []string
			for _, m := range list {
				if m = strings.TrimSpace(m); m != "" {
					parts = append(parts, m)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
	}
	return strings.TrimSpace(payload.Error)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

func (c *Client) buildURL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.baseDelay <= 0 {
		return 0
	}
	// Exponential backoff: base * 2^(attempt-1)
	delay := c.baseDelay * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int64N(int64(maxJitter))) //nolint:gosec // G404: Jitter doesn't need crypto rand
	return delay + jitter
}

// parseRetryAfter parses the Retry-After header value.
func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return seconds
	}
	return 0
}
