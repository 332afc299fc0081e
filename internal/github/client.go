// Package github holds the app credentials and a small client for the
// GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	acceptHeader     = "application/vnd.github.v3+json"
	defaultUserAgent = "octox"
	defaultTimeout   = 10 * time.Second
)

// TokenSource provides the bearer token used to authenticate as the app.
type TokenSource interface {
	AppToken() (string, error)
}

// App is the subset of GET /app the client decodes.
type App struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// APIError is returned when GitHub answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("github api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("github api returned status %d: %s", e.StatusCode, body)
}

// Client calls the GitHub API as the app.
type Client struct {
	host   Host
	tokens TokenSource
	http   *resty.Client
}

// ClientOption configures a Client.
type ClientOption func(*resty.Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *resty.Client) { c.SetHeader("User-Agent", ua) }
}

// NewClient creates a client for host that authenticates with tokens.
func NewClient(host Host, tokens TokenSource, opts ...ClientOption) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(string(host), "/")).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", acceptHeader).
		SetHeader("User-Agent", defaultUserAgent)
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{host: host, tokens: tokens, http: rc}
}

// App fetches the authenticated app.
func (c *Client) App(ctx context.Context) (*App, error) {
	token, err := c.tokens.AppToken()
	if err != nil {
		return nil, fmt.Errorf("get app token: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("/app")
	if err != nil {
		return nil, fmt.Errorf("call %s/app: %w", c.host, err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	// Decoded here rather than through SetResult, which silently skips
	// responses without a JSON Content-Type.
	var app App
	if err := json.Unmarshal(resp.Body(), &app); err != nil {
		return nil, fmt.Errorf("decode %s/app response: %w", c.host, err)
	}
	return &app, nil
}

// CheckApp verifies that GitHub accepts the app's credentials.
func (c *Client) CheckApp(ctx context.Context) error {
	_, err := c.App(ctx)
	return err
}
