// Package syncapi implements the remote system-of-record client used to
// submit validated result groups.
package syncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
	"github.com/hxinn/amazon-listing-ai-assistant/pkg/metrics"
)

// Client submits sync groups to the remote endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	log        *zap.Logger
}

// NewClient creates a new sync client.
func NewClient(apiKey, baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		baseURL:    baseURL,
		log:        log,
	}
}

// SubmitGroup posts one group to the remote system. Any non-2xx response is
// a failure.
func (c *Client) SubmitGroup(ctx context.Context, group *domain.SyncGroup) error {
	if group == nil || group.PropertyName == "" {
		return domain.ErrInvalidRequest
	}

	payload, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("failed to encode sync group: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/attributes/sync", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("failure")
		return fmt.Errorf("%w: %v", domain.ErrSyncFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.observe("failure")
		return fmt.Errorf("%w: status %d: %s", domain.ErrSyncFailure, resp.StatusCode, string(body))
	}

	c.observe("success")
	c.log.Debug("sync group submitted",
		zap.String("property", group.PropertyName),
		zap.Int("sites", len(group.Sites)))
	return nil
}

func (c *Client) observe(status string) {
	if metrics.SyncSubmissionsTotal != nil {
		metrics.SyncSubmissionsTotal.WithLabelValues(status).Inc()
	}
}
