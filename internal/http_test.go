package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgerrs "github.com/graywind/snoo/pkg/errors"
)

// staticTokenSource supplies a fixed token without hitting any endpoint.
type staticTokenSource string

func (s staticTokenSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

func newCoreClient(t *testing.T, srv *httptest.Server, cfg ClientConfig) *Client {
	t.Helper()
	client, err := NewClient(srv.Client(), staticTokenSource("test-token"), srv.URL, "test-agent", cfg, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func newHTTPTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestRequestHeadersAndEncoding(t *testing.T) {
	t.Parallel()

	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("User-Agent = %q", got)
		}

		switch r.Method {
		case http.MethodGet:
			if got := r.URL.Query().Get("limit"); got != "25" {
				t.Errorf("query limit = %q, want 25", got)
			}
		case http.MethodPost:
			if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
				t.Errorf("Content-Type = %q", got)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("ParseForm: %v", err)
			}
			if got := r.PostForm.Get("api_type"); got != "json" {
				t.Errorf("form api_type = %q, want json", got)
			}
		}
		fmt.Fprint(w, `{}`)
	})
	client := newCoreClient(t, srv, ClientConfig{})

	params := map[string][]string{"limit": {"25"}}
	if _, err := client.Get(context.Background(), "r/golang/hot", params); err != nil {
		t.Fatalf("Get: %v", err)
	}

	form := map[string][]string{"api_type": {"json"}}
	if _, err := client.Post(context.Background(), "api/morechildren", form); err != nil {
		t.Fatalf("Post: %v", err)
	}
}

func TestThrottleGateEnforcesMinimumDelay(t *testing.T) {
	t.Parallel()

	const delay = 120 * time.Millisecond

	var mu sync.Mutex
	var arrivals []time.Time
	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		fmt.Fprint(w, `{}`)
	})
	client := newCoreClient(t, srv, ClientConfig{RequestDelay: delay})

	for i := 0; i < 3; i++ {
		if _, err := client.Get(context.Background(), "hot", nil); err != nil {
			t.Fatalf("Get %d: %v", i+1, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(arrivals) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(arrivals))
	}
	// Allow a little scheduling slack below the configured delay.
	const tolerance = 20 * time.Millisecond
	for i := 1; i < len(arrivals); i++ {
		if gap := arrivals[i].Sub(arrivals[i-1]); gap < delay-tolerance {
			t.Errorf("requests %d and %d started %v apart, want at least %v", i, i+1, gap, delay)
		}
	}
}

func TestRateLimitFailFast(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("X-Ratelimit-Remaining", "0")
		w.Header().Set("X-Ratelimit-Reset", "60")
		fmt.Fprint(w, `{}`)
	})
	client := newCoreClient(t, srv, ClientConfig{})

	if _, err := client.Get(context.Background(), "hot", nil); err != nil {
		t.Fatalf("first Get: %v", err)
	}

	_, err := client.Get(context.Background(), "hot", nil)
	if err == nil {
		t.Fatal("expected ratelimit error on exhausted quota")
	}
	var rlErr *pkgerrs.RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected *RateLimitError, got %T: %v", err, err)
	}
	if !rlErr.ResetAt.After(time.Now()) {
		t.Errorf("ResetAt = %v, want a future time", rlErr.ResetAt)
	}
	// The second request never reached the server.
	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 server request, got %d", got)
	}
}

func TestRateLimitContinueWaitsForReset(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("X-Ratelimit-Remaining", "0")
			w.Header().Set("X-Ratelimit-Reset", "0.2")
		} else {
			w.Header().Set("X-Ratelimit-Remaining", "599")
			w.Header().Set("X-Ratelimit-Reset", "600")
		}
		fmt.Fprint(w, `{}`)
	})
	client := newCoreClient(t, srv, ClientConfig{ContinueAfterRatelimitError: true})

	if _, err := client.Get(context.Background(), "hot", nil); err != nil {
		t.Fatalf("first Get: %v", err)
	}

	start := time.Now()
	if _, err := client.Get(context.Background(), "hot", nil); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("second request issued after %v, expected to wait out the quota window", elapsed)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("expected 2 server requests, got %d", got)
	}
}

func TestRateLimitWaitHonorsContext(t *testing.T) {
	t.Parallel()

	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Remaining", "0")
		w.Header().Set("X-Ratelimit-Reset", "60")
		fmt.Fprint(w, `{}`)
	})
	client := newCoreClient(t, srv, ClientConfig{ContinueAfterRatelimitError: true})

	if _, err := client.Get(context.Background(), "hot", nil); err != nil {
		t.Fatalf("first Get: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Get(ctx, "hot", nil)
	if err == nil {
		t.Fatal("expected error when context expires during quota wait")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline in error chain, got %v", err)
	}
}

func TestRetryOnConfiguredStatusCodes(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"ok": true}`)
	})
	client := newCoreClient(t, srv, ClientConfig{
		RetryErrorCodes:  []int{502, 503, 504, 522},
		MaxRetryAttempts: 3,
	})

	body, err := client.Get(context.Background(), "hot", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != `{"ok": true}` {
		t.Errorf("unexpected body %q", body)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests (2 failures + success), got %d", got)
	}
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	client := newCoreClient(t, srv, ClientConfig{
		RetryErrorCodes:  []int{502},
		MaxRetryAttempts: 2,
	})

	_, err := client.Get(context.Background(), "hot", nil)
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	var apiErr *pkgerrs.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusBadGateway)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests (initial + 2 retries), got %d", got)
	}
}

func TestNoRetryOnNonRetryableStatus(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found", "reason": "banned"}`)
	})
	client := newCoreClient(t, srv, ClientConfig{
		RetryErrorCodes:  []int{502, 503},
		MaxRetryAttempts: 3,
	})

	_, err := client.Get(context.Background(), "r/banned/hot", nil)
	var apiErr *pkgerrs.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.Message != "Not Found (banned)" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}

func TestRateHeaderBookkeeping(t *testing.T) {
	t.Parallel()

	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Quota headers arrive even on failures and must be recorded.
		w.Header().Set("X-Ratelimit-Remaining", "42.0")
		w.Header().Set("X-Ratelimit-Reset", "240")
		w.WriteHeader(http.StatusNotFound)
	})
	client := newCoreClient(t, srv, ClientConfig{})

	if _, hasInfo := client.RateLimitRemaining(); hasInfo {
		t.Error("expected no quota info before the first response")
	}

	if _, err := client.Get(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected 404 error")
	}

	remaining, hasInfo := client.RateLimitRemaining()
	if !hasInfo {
		t.Fatal("expected quota info after a response")
	}
	if remaining != 42 {
		t.Errorf("remaining = %v, want 42", remaining)
	}
	if resetAt := client.RateLimitResetAt(); !resetAt.After(time.Now()) {
		t.Errorf("resetAt = %v, want a future time", resetAt)
	}
}

func TestMalformedRateHeadersIgnored(t *testing.T) {
	t.Parallel()

	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Remaining", "not-a-number")
		w.Header().Set("X-Ratelimit-Reset", "60")
		fmt.Fprint(w, `{}`)
	})
	client := newCoreClient(t, srv, ClientConfig{})

	if _, err := client.Get(context.Background(), "hot", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, hasInfo := client.RateLimitRemaining(); hasInfo {
		t.Error("malformed quota headers should not update the counters")
	}
}

func TestGetJSON(t *testing.T) {
	t.Parallel()

	srv := newHTTPTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"kind": "Listing"}`)
	})
	client := newCoreClient(t, srv, ClientConfig{})

	var payload struct {
		Kind string `json:"kind"`
	}
	if err := client.GetJSON(context.Background(), "hot", nil, &payload); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if payload.Kind != "Listing" {
		t.Errorf("Kind = %q, want Listing", payload.Kind)
	}
}
