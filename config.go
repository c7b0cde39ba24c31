package snoo

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgerrs "github.com/graywind/snoo/pkg/errors"
)

const (
	// DefaultBaseURL is the default reddit API host.
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the default reddit OAuth host.
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultUserAgent identifies the library when the caller supplies none.
	DefaultUserAgent = "snoo/0.1"
	// DefaultRequestTimeout bounds a single HTTP round trip.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultMaxRetryAttempts bounds how many times a retryable failure is
	// reissued.
	DefaultMaxRetryAttempts = 3
)

// DefaultRetryErrorCodes is the set of HTTP statuses retried by default.
var DefaultRetryErrorCodes = []int{502, 503, 504, 522}

// Duration wraps time.Duration so config files can spell durations as
// "500ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds credentials and behavior knobs for a Client.
//
// ClientID and ClientSecret are always required. Additionally provide either
// Username+Password (password grant), a RefreshToken (refresh grant), an
// AccessToken (pre-issued token), or nothing further for application-only
// auth.
type Config struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	RefreshToken string `yaml:"refresh_token"`
	AccessToken  string `yaml:"access_token"`

	// UserAgent identifies the application to reddit. Format:
	// "platform:app-name:version by /u/username".
	UserAgent string `yaml:"user_agent"`

	// BaseURL and AuthURL rarely need to be changed outside of tests.
	BaseURL string `yaml:"base_url"`
	AuthURL string `yaml:"auth_url"`

	// RequestDelay is the minimum time between request dispatches. Zero
	// disables throttling.
	RequestDelay Duration `yaml:"request_delay"`
	// RequestTimeout bounds a single HTTP round trip. Ignored when a custom
	// HTTPClient is supplied.
	RequestTimeout Duration `yaml:"request_timeout"`

	// ContinueAfterRatelimitError makes the client sleep through an
	// exhausted quota window (with a warning) instead of failing fast with
	// a RateLimitError.
	ContinueAfterRatelimitError bool `yaml:"continue_after_ratelimit_error"`
	// RetryErrorCodes is the set of HTTP statuses that trigger a retry.
	RetryErrorCodes []int `yaml:"retry_error_codes"`
	// MaxRetryAttempts bounds how many times a retryable failure is
	// reissued.
	MaxRetryAttempts int `yaml:"max_retry_attempts"`

	// Warnings and Debug gate what the injected Logger emits.
	Warnings bool `yaml:"warnings"`
	Debug    bool `yaml:"debug"`

	// HTTPClient to use for requests. Defaults to a client with
	// RequestTimeout.
	HTTPClient *http.Client `yaml:"-"`
	// Logger for structured diagnostics. Nil means silent.
	Logger *slog.Logger `yaml:"-"`
}

// LoadConfig reads a YAML config file. Defaults are applied later by
// NewClient.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills in zero-valued optional fields.
func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if c.MaxRetryAttempts == 0 {
		c.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if c.RetryErrorCodes == nil {
		c.RetryErrorCodes = DefaultRetryErrorCodes
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.RequestTimeout.Std()}
	}
}

// validate rejects missing or contradictory credential combinations. These
// errors are fatal and never retried.
func (c *Config) validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return &pkgerrs.ConfigError{Field: "ClientID/ClientSecret", Message: "client id and secret are required"}
	}
	if (c.Username == "") != (c.Password == "") {
		return &pkgerrs.ConfigError{Field: "Username/Password", Message: "username and password must be provided together"}
	}
	if c.Username != "" && c.RefreshToken != "" {
		return &pkgerrs.ConfigError{Field: "RefreshToken", Message: "cannot combine password credentials with a refresh token"}
	}
	return nil
}
