package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	pkgerrs "github.com/graywind/snoo/pkg/errors"
)

// Client performs authenticated HTTP calls against the reddit API with
// inter-request throttling, rate-limit bookkeeping and bounded retry.
// Session state (token, quota counters, throttle timer) is owned exclusively
// by one Client instance; there is no process-wide state.
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string
	tokens    TokenSource
	logger    *slog.Logger
	warnings  bool
	debug     bool

	// limiter is the throttle gate: every dispatch waits on it before
	// issuing, guaranteeing a minimum delay between request starts. Waiters
	// are not served FIFO. A nil limiter disables throttling.
	limiter *rate.Limiter

	retryCodes             map[int]struct{}
	maxRetryAttempts       int
	continueAfterRatelimit bool

	mu           sync.Mutex
	remaining    float64
	hasRemaining bool
	resetAt      time.Time
}

// ClientConfig carries the request-core knobs consumed from the public
// configuration surface.
type ClientConfig struct {
	// RequestDelay is the minimum time between request dispatches. Zero
	// disables the throttle gate.
	RequestDelay time.Duration
	// RetryErrorCodes is the set of HTTP status codes that trigger a retry.
	RetryErrorCodes []int
	// MaxRetryAttempts bounds how many times a failed request is reissued.
	MaxRetryAttempts int
	// ContinueAfterRatelimitError selects delay-and-continue over fail-fast
	// when the quota is exhausted.
	ContinueAfterRatelimitError bool
	// Warnings and Debug gate emission on the injected logger.
	Warnings bool
	Debug    bool
}

// NewClient returns a request core targeting baseURL. If httpClient is nil,
// http.DefaultClient is used.
func NewClient(httpClient *http.Client, tokens TokenSource, baseURL, userAgent string, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: "new client", Err: err}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	var limiter *rate.Limiter
	if cfg.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}

	codes := make(map[int]struct{}, len(cfg.RetryErrorCodes))
	for _, code := range cfg.RetryErrorCodes {
		codes[code] = struct{}{}
	}

	return &Client{
		client:                 httpClient,
		BaseURL:                parsedURL,
		UserAgent:              userAgent,
		tokens:                 tokens,
		logger:                 logger,
		warnings:               cfg.Warnings,
		debug:                  cfg.Debug,
		limiter:                limiter,
		retryCodes:             codes,
		maxRetryAttempts:       cfg.MaxRetryAttempts,
		continueAfterRatelimit: cfg.ContinueAfterRatelimitError,
	}, nil
}

// Get issues a GET request with params encoded into the query string.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, params)
}

// Post issues a POST request with params form-encoded into the body.
func (c *Client) Post(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, params)
}

// Put issues a PUT request with params form-encoded into the body.
func (c *Client) Put(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodPut, path, params)
}

// Patch issues a PATCH request with params form-encoded into the body.
func (c *Client) Patch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodPatch, path, params)
}

// Delete issues a DELETE request with params encoded into the query string.
func (c *Client) Delete(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodDelete, path, params)
}

// GetJSON issues a GET request and decodes the response body into v.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, v any) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &pkgerrs.ParseError{Operation: "GET " + path, Err: err}
	}
	return nil
}

// Do performs one logical request, retrying on configured status codes up to
// the retry limit. Each retry is itself a full dispatch: it re-checks the
// quota and passes through the throttle gate again.
func (c *Client) Do(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, status, err := c.dispatch(ctx, method, path, params)
		if err == nil {
			return body, nil
		}

		if _, retryable := c.retryCodes[status]; !retryable || attempt >= c.maxRetryAttempts {
			return nil, err
		}
		c.warnf("retrying request", "method", method, "path", path, "status", status, "attempt", attempt+1)
	}
}

// dispatch performs a single HTTP call: quota check, throttle gate, token
// attach, issue, rate-header bookkeeping. The returned status is zero when
// the request never reached the server.
func (c *Client) dispatch(ctx context.Context, method, path string, params url.Values) ([]byte, int, error) {
	if err := c.awaitQuota(ctx); err != nil {
		return nil, 0, err
	}

	if c.limiter != nil {
		// Reserves the next slot before issuing, so no two dispatches start
		// closer together than the configured delay.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, &pkgerrs.RequestError{Operation: method + " " + path, Err: err}
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, 0, err
	}

	req, err := c.newRequest(ctx, method, path, params, token)
	if err != nil {
		return nil, 0, err
	}

	c.debugf("dispatching request", "method", method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, &pkgerrs.RequestError{Operation: method + " " + path, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	// Quota headers are read on every response regardless of status.
	c.applyRateHeaders(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &pkgerrs.RequestError{Operation: method + " " + path, URL: req.URL.String(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &pkgerrs.APIError{StatusCode: resp.StatusCode, URL: req.URL.String(), Message: apiErrorMessage(body)}
	}

	return body, resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, token string) (*http.Request, error) {
	u, err := c.BaseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: method + " " + path, Err: err}
	}

	var body io.Reader
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		if params == nil {
			params = url.Values{}
		}
		body = strings.NewReader(params.Encode())
	default:
		if len(params) > 0 {
			q := u.Query()
			for key, vals := range params {
				for _, val := range vals {
					q.Add(key, val)
				}
			}
			u.RawQuery = q.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: method + " " + path, Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return req, nil
}

// awaitQuota enforces the rate-limit bookkeeping before a dispatch: if the
// remaining quota is exhausted and the window has not reset, either block
// until the reset (with a warning) or fail fast, per configuration.
func (c *Client) awaitQuota(ctx context.Context) error {
	c.mu.Lock()
	exhausted := c.hasRemaining && c.remaining < 1
	resetAt := c.resetAt
	c.mu.Unlock()

	if !exhausted || !time.Now().Before(resetAt) {
		return nil
	}

	if !c.continueAfterRatelimit {
		return &pkgerrs.RateLimitError{ResetAt: resetAt}
	}

	wait := time.Until(resetAt)
	c.warnf("ratelimit quota exhausted, waiting for reset", "wait", wait.Round(time.Millisecond).String())

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &pkgerrs.RequestError{Operation: "ratelimit wait", Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

// applyRateHeaders updates the quota counters from the X-Ratelimit response
// headers.
func (c *Client) applyRateHeaders(resp *http.Response) {
	remainingHeader := resp.Header.Get("X-Ratelimit-Remaining")
	resetHeader := resp.Header.Get("X-Ratelimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, 64)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, 64)
	if errRemaining != nil || errReset != nil || resetSeconds < 0 {
		return
	}

	c.mu.Lock()
	c.remaining = remaining
	c.hasRemaining = true
	c.resetAt = time.Now().Add(time.Duration(resetSeconds * float64(time.Second)))
	c.mu.Unlock()
}

// RateLimitRemaining reports the quota left in the current window, and
// whether any quota information has been observed yet.
func (c *Client) RateLimitRemaining() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, c.hasRemaining
}

// RateLimitResetAt reports when the current quota window resets.
func (c *Client) RateLimitResetAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetAt
}

// Warnf emits a warning through the injected logger when warnings are
// enabled. Exposed so collaborators (e.g. unbounded listing fetches) share
// the same gate.
func (c *Client) Warnf(msg string, args ...any) {
	c.warnf(msg, args...)
}

func (c *Client) warnf(msg string, args ...any) {
	if c.logger != nil && c.warnings {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) debugf(msg string, args ...any) {
	if c.logger != nil && c.debug {
		c.logger.Debug(msg, args...)
	}
}

// apiErrorMessage pulls a human-readable message out of an error body when
// reddit provides one.
func apiErrorMessage(body []byte) string {
	var errObj struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(body, &errObj); err != nil {
		return ""
	}
	if errObj.Message != "" && errObj.Reason != "" {
		return fmt.Sprintf("%s (%s)", errObj.Message, errObj.Reason)
	}
	if errObj.Message != "" {
		return errObj.Message
	}
	return errObj.Reason
}
