package snoo

import (
	"context"
	"net/url"

	"github.com/graywind/snoo/internal"
)

// Client is a reddit API client presenting the REST API as a graph of
// typed, lazily-populated entities. Each Client owns its own session state
// (token, quota counters, throttle timer); instances are independent.
type Client struct {
	config   *Config
	http     *internal.Client
	auth     *internal.Authenticator
	builders map[string]entityBuilder
}

// NewClient validates the configuration and builds a client. Credential
// errors are fatal and reported immediately; no network call is made until
// the first request needs a token.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = &Config{}
	}
	cfg := *config
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	auth, err := internal.NewAuthenticator(cfg.HTTPClient, internal.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Username:     cfg.Username,
		Password:     cfg.Password,
		RefreshToken: cfg.RefreshToken,
		AccessToken:  cfg.AccessToken,
	}, cfg.UserAgent, cfg.AuthURL, cfg.Logger)
	if err != nil {
		return nil, err
	}

	httpClient, err := internal.NewClient(cfg.HTTPClient, auth, cfg.BaseURL, cfg.UserAgent, internal.ClientConfig{
		RequestDelay:                cfg.RequestDelay.Std(),
		RetryErrorCodes:             cfg.RetryErrorCodes,
		MaxRetryAttempts:            cfg.MaxRetryAttempts,
		ContinueAfterRatelimitError: cfg.ContinueAfterRatelimitError,
		Warnings:                    cfg.Warnings,
		Debug:                       cfg.Debug,
	}, cfg.Logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config: &cfg,
		http:   httpClient,
		auth:   auth,
	}
	c.builders = defaultBuilders()
	return c, nil
}

// Get issues an authenticated, throttled GET against an API path. This and
// the other verb primitives are the contract the endpoint-mapping layer
// builds on.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.http.Get(ctx, path, params)
}

// Post issues an authenticated, throttled POST with a form-encoded body.
func (c *Client) Post(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.http.Post(ctx, path, params)
}

// Put issues an authenticated, throttled PUT with a form-encoded body.
func (c *Client) Put(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.http.Put(ctx, path, params)
}

// Patch issues an authenticated, throttled PATCH with a form-encoded body.
func (c *Client) Patch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.http.Patch(ctx, path, params)
}

// Delete issues an authenticated, throttled DELETE.
func (c *Client) Delete(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.http.Delete(ctx, path, params)
}

// NewListing returns a lazy, unfetched Listing over a paged endpoint. The
// query values are held constant across pages.
func (c *Client) NewListing(uri string, query url.Values) *Listing {
	return newListing(c, listingSpec{uri: uri, query: query})
}

// Front returns the front page as a lazy Listing, sorted by the given sort
// ("hot", "new", "top", ...).
func (c *Client) Front(sort string) *Listing {
	if sort == "" {
		sort = "hot"
	}
	return c.NewListing(sort, nil)
}

// GetSubmission fetches a submission and its comment tree eagerly.
func (c *Client) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	s := c.SubmissionByID(id)
	if err := s.Fetch(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// RateLimitRemaining reports the API quota left in the current window, and
// whether any quota information has been observed yet.
func (c *Client) RateLimitRemaining() (float64, bool) {
	return c.http.RateLimitRemaining()
}
