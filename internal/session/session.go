// Package session resolves the acting user identity from the auth service.
// Lookup failures are soft: callers fall back to the anonymous sentinel and
// telemetry keeps flowing.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client talks to the auth collaborator
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.RWMutex
	accessToken string
}

// userResponse is the auth service's current-user payload
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NewClient creates a session client
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SetAccessToken stores the session token forwarded by the extension.
// An empty token clears the session (logout).
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// HasSession reports whether a session token is currently held
func (c *Client) HasSession() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken != ""
}

// CurrentUserID resolves the acting user id. Any failure, including a
// missing or rejected token, is returned as an error for the caller to
// degrade to the anonymous sentinel.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()

	if token == "" {
		return "", fmt.Errorf("no active session")
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("session service not configured")
	}

	url := fmt.Sprintf("%s/auth/v1/user", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("session lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("session lookup returned status %d: %s", resp.StatusCode, string(body))
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("failed to parse user response: %w", err)
	}
	if user.ID == "" {
		return "", fmt.Errorf("session response carried no user id")
	}

	c.logger.Debug("Resolved session user", zap.String("user_id", user.ID))
	return user.ID, nil
}
