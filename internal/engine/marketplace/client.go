package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"listforge/internal/engine/domain"
	"listforge/pkg/config"
	"listforge/pkg/logger"
)

const userAgent = "listforge/1.0"

// APIError is a non-2xx marketplace response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace API error: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the response indicates a transient condition.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable reports whether err is worth retrying with backoff: rate-limit
// and server-side responses, and transport-level failures that were not caused
// by the caller cancelling.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Client is a rate-limit-aware marketplace API client. It refreshes its OAuth
// access token transparently on 401 responses; callers wrap their own backoff
// around transient failures.
type Client struct {
	cfg        config.MarketplaceConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time

	staticImageIDs []string
}

// NewClient validates the required credentials and builds a client. Missing
// credentials are a configuration error, fatal before any design is processed.
func NewClient(cfg config.MarketplaceConfig) (*Client, error) {
	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		return nil, domain.NewConfigError(
			fmt.Sprintf("missing required environment variables: %s", strings.Join(missing, ", ")), nil)
	}

	return &Client{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		limiter:      rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), 1),
		logger:       logger.WithField("component", "marketplace-client"),
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
	}, nil
}

// ShopID returns the configured shop identifier.
func (c *Client) ShopID() string { return c.cfg.ShopID }

// Call makes an authenticated JSON request against the marketplace API,
// honoring the configured call-rate ceiling. A 401 triggers one transparent
// token refresh and retry; every other non-2xx status surfaces as an APIError.
func (c *Client) Call(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	return c.call(ctx, method, endpoint, payload, false)
}

func (c *Client) call(ctx context.Context, method, endpoint string, payload any, refreshed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !refreshed {
		c.logger.Warn("unauthorized response, refreshing access token", "endpoint", endpoint)
		if err := c.refreshAccessToken(ctx); err != nil {
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}
		return c.call(ctx, method, endpoint, payload, true)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	return respBody, nil
}

func (c *Client) setHeaders(req *http.Request) {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("User-Agent", userAgent)
}

// refreshAccessToken exchanges the refresh token for a new access token.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.APIKey},
		"refresh_token": {c.refreshTokenValue()},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return fmt.Errorf("failed to parse token response: %w", err)
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.refreshToken = token.RefreshToken
	}
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	c.mu.Unlock()

	c.logger.Info("access token refreshed")
	return nil
}

func (c *Client) refreshTokenValue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken
}

// TestConnection verifies credentials against the shop endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Call(ctx, http.MethodGet, "/application/shops/"+c.cfg.ShopID, nil)
	if err != nil {
		return fmt.Errorf("marketplace connection test failed: %w", err)
	}
	c.logger.Info("marketplace connection verified", "shopId", c.cfg.ShopID)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
