package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// Config holds the configuration for the upstream profile backend client.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8080",
		Timeout:    15 * time.Second,
		RetryCount: 3,
	}
}

// Client talks to the profile backend that durably stores avatar records.
// Every call is best-effort from the session's perspective: failures are
// reported, never allowed to block a session from completing.
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a new backend client.
func NewClient(config Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

type updateAvatarBody struct {
	RPMURL        string                     `json:"rpmUrl"`
	Configuration domain.AvatarConfiguration `json:"configuration"`
}

// UpdateAvatar pushes a completed avatar to the user's profile.
func (c *Client) UpdateAvatar(ctx context.Context, req *domain.UpdateAvatarRequest) error {
	if req == nil {
		return fmt.Errorf("nil update request")
	}

	body := updateAvatarBody{
		RPMURL:        req.RPMURL,
		Configuration: req.Configuration,
	}

	if err := c.doRequestWithRetry(ctx, http.MethodPost, "/users/me/avatar/update", body); err != nil {
		return domain.ErrBackendSyncFailed.WithError(err)
	}
	return nil
}

// maxBackoff caps the retry backoff duration.
const maxBackoff = 30 * time.Second

// calculateBackoff returns 1s, 2s, 4s, 8s, etc. up to maxBackoff.
func calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	seconds := 1
	for i := 1; i < attempt && i < 6; i++ {
		seconds *= 2
	}
	return time.Duration(seconds) * time.Second
}

// doRequestWithRetry executes the request, retrying server-side failures
// with exponential backoff. Client errors (4xx) are not retried.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = c.doRequest(ctx, method, path, body)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if isClientError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("backend unavailable: %w", lastErr)
}

// isClientError checks if the error is a 4xx client error.
func isClientError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for status := 400; status < 500; status++ {
		if strings.Contains(errStr, fmt.Sprintf("status %d", status)) {
			return true
		}
	}
	return false
}

// doRequest executes a single HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	url := c.config.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
