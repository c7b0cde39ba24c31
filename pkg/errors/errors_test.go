package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "config error with field",
			err:  &ConfigError{Field: "ClientID", Message: "required"},
			want: "config error in field ClientID: required",
		},
		{
			name: "argument error",
			err:  &ArgumentError{Argument: "amount", Message: "must be non-negative"},
			want: "invalid argument amount: must be non-negative",
		},
		{
			name: "auth error with status",
			err:  &AuthError{StatusCode: 401, Body: `{"error":"invalid_client"}`},
			want: `auth error: status code 401, body: "{\"error\":\"invalid_client\"}"`,
		},
		{
			name: "api error with message",
			err:  &APIError{StatusCode: 404, Message: "Not Found"},
			want: "API request failed with status 404: Not Found",
		},
		{
			name: "api error without message",
			err:  &APIError{StatusCode: 502},
			want: "API request failed with status 502",
		},
		{
			name: "request error",
			err:  &RequestError{Operation: "GET hot", Err: errors.New("boom")},
			want: "request error during GET hot: boom",
		},
		{
			name: "parse error with wrapped cause",
			err:  &ParseError{Operation: "listing page", Err: errors.New("unexpected EOF")},
			want: "parse error during listing page: unexpected EOF",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	t.Parallel()

	err := &RateLimitError{ResetAt: time.Now().Add(30 * time.Second)}
	if msg := err.Error(); !strings.HasPrefix(msg, "ratelimit exceeded: quota resets in") {
		t.Errorf("Error() = %q", msg)
	}

	past := &RateLimitError{ResetAt: time.Now().Add(-time.Second)}
	if msg := past.Error(); msg != "ratelimit exceeded" {
		t.Errorf("Error() = %q", msg)
	}
}

func TestUnwrapChains(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")

	testCases := []struct {
		name string
		err  error
	}{
		{name: "auth error", err: &AuthError{Err: cause}},
		{name: "request error", err: &RequestError{Operation: "GET hot", Err: cause}},
		{name: "parse error", err: &ParseError{Operation: "decode", Err: cause}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			if !errors.Is(wrapped, cause) {
				t.Errorf("errors.Is failed to reach the cause through %T", tc.err)
			}
		})
	}
}

func TestErrorsAsTargets(t *testing.T) {
	t.Parallel()

	var apiErr *APIError
	err := fmt.Errorf("request failed: %w", &APIError{StatusCode: 503})
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.As failed for *APIError")
	}
	if apiErr.StatusCode != 503 {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
}
