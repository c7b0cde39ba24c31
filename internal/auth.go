package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	pkgerrs "github.com/graywind/snoo/pkg/errors"
)

const defaultTokenEndpointPath = "api/v1/access_token"

// expiryMargin is how close to expiry a token may get before the next
// dispatch refreshes it.
const expiryMargin = 10 * time.Second

// seededTokenLifetime is assumed for access tokens supplied directly by the
// caller, whose real expiry is unknown.
const seededTokenLifetime = time.Hour

// Grant types supported by the token endpoint.
const (
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// TokenSource supplies a valid access token for a dispatch, refreshing it
// when missing or about to expire.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Credentials holds everything needed to obtain and renew access tokens.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	// AccessToken optionally seeds the authenticator with an existing token.
	AccessToken string
}

// GrantType returns the OAuth grant implied by the credential combination.
func (c Credentials) GrantType() string {
	switch {
	case c.RefreshToken != "":
		return GrantRefreshToken
	case c.Username != "" && c.Password != "":
		return GrantPassword
	default:
		return GrantClientCredentials
	}
}

// Authenticator retrieves and caches access tokens from the reddit token
// endpoint. Refreshes are serialized behind a mutex so concurrent dispatches
// that find an expired token share a single refresh call.
type Authenticator struct {
	client    *http.Client
	creds     Credentials
	userAgent string
	tokenURL  *url.URL
	logger    *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewAuthenticator creates an authenticator for the given credentials.
// authURL is the OAuth host (not the API host); the token endpoint path is
// resolved against it.
func NewAuthenticator(httpClient *http.Client, creds Credentials, userAgent, authURL string, logger *slog.Logger) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(authURL)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to parse auth URL: %w", err)}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	tokenURL, err := parsedURL.Parse(defaultTokenEndpointPath)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to resolve token endpoint: %w", err)}
	}

	a := &Authenticator{
		client:    httpClient,
		creds:     creds,
		userAgent: userAgent,
		tokenURL:  tokenURL,
		logger:    logger,
	}

	if creds.AccessToken != "" {
		a.token = creds.AccessToken
		a.expiresAt = time.Now().Add(seededTokenLifetime)
	}

	return a, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`
}

// Token returns the cached access token, performing a blocking refresh first
// if no token exists or it expires within the safety margin.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Until(a.expiresAt) > expiryMargin {
		return a.token, nil
	}

	if err := a.refreshLocked(ctx); err != nil {
		return "", err
	}
	return a.token, nil
}

// ExpiresAt reports when the current token expires.
func (a *Authenticator) ExpiresAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expiresAt
}

func (a *Authenticator) refreshLocked(ctx context.Context) error {
	form := url.Values{}
	grant := a.creds.GrantType()
	form.Set("grant_type", grant)
	switch grant {
	case GrantPassword:
		form.Set("username", a.creds.Username)
		form.Set("password", a.creds.Password)
	case GrantRefreshToken:
		form.Set("refresh_token", a.creds.RefreshToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return &pkgerrs.AuthError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}

	// The token endpoint is the one call authenticated with basic auth
	// rather than a bearer token.
	req.SetBasicAuth(a.creds.ClientID, a.creds.ClientSecret)
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return &pkgerrs.AuthError{Err: fmt.Errorf("failed to execute token request: %w", err)}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &pkgerrs.AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(bodyBytes, &tok); err != nil {
		return &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(bodyBytes), Err: fmt.Errorf("failed to unmarshal token response: %w", err)}
	}
	if tok.AccessToken == "" {
		return &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(bodyBytes), Err: fmt.Errorf("access token was empty in response")}
	}

	a.token = tok.AccessToken
	a.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.RefreshToken != "" {
		a.creds.RefreshToken = tok.RefreshToken
	}

	if a.logger != nil {
		a.logger.Debug("access token refreshed", "grant_type", grant, "expires_in", tok.ExpiresIn)
	}

	return nil
}
