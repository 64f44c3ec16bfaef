package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client talks to the verification API server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: http.DefaultClient,
	}
}

// FetchResult mirrors the fetch-verification response body.
type FetchResult struct {
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	WasUnread bool   `json:"wasUnread"`
}

type connectResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type defaultCredentials struct {
	HasDefault bool    `json:"hasDefault"`
	Email      *string `json:"email"`
}

// Connect establishes a server-side session. Empty credentials ask the
// server to use its configured default identity.
func (c *Client) Connect(ctx context.Context, email, password string) (string, error) {
	var res connectResult
	err := c.post(ctx, "/api/connect-email", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", fmt.Errorf("connect rejected: %s", res.Message)
	}
	return res.SessionID, nil
}

// FetchVerification performs one fetch poll. A Success false result is
// a normal "not found" outcome, not an error.
func (c *Client) FetchVerification(ctx context.Context, sessionID string) (FetchResult, error) {
	var res FetchResult
	err := c.post(ctx, "/api/fetch-verification", map[string]string{"sessionId": sessionID}, &res)
	return res, err
}

// Logout tears the session down.
func (c *Client) Logout(ctx context.Context, sessionID string) error {
	var res connectResult
	return c.post(ctx, "/api/logout", map[string]string{"sessionId": sessionID}, &res)
}

// HasDefaultCredentials reports whether the server holds a default
// identity, and which address it is.
func (c *Client) HasDefaultCredentials(ctx context.Context) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/has-default-credentials", nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	var creds defaultCredentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if !creds.HasDefault || creds.Email == nil {
		return "", false, nil
	}
	return *creds.Email, true, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var failure struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&failure) == nil && failure.Message != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, failure.Message)
		}
		return fmt.Errorf("server error (%d) on %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
