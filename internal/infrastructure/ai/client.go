// Package ai implements the AI text-generation backend client. The
// response is raw text the caller must repair and validate; this client
// only handles transport, throttling and retries.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
	"github.com/hxinn/amazon-listing-ai-assistant/pkg/metrics"
)

const maxAttempts = 3

// Client handles communication with the generation backend.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	log         *zap.Logger
}

// NewClient creates a new generation client. requestsPerMinute bounds the
// request rate toward the backend independently of any caller-side
// concurrency limit.
func NewClient(apiKey, baseURL string, timeout time.Duration, requestsPerMinute int, log *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 20
	}
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: limiter,
		log:         log,
	}
}

type generateRequest struct {
	Property    string             `json:"property"`
	Schema      *domain.SchemaNode `json:"-"`
	RawSchema   json.RawMessage    `json:"schema,omitempty"`
	Exemplar    string             `json:"exemplar,omitempty"`
	Marketplace string             `json:"marketplace,omitempty"`
	LanguageTag string             `json:"languageTag,omitempty"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Generate asks the backend for candidate values for one attribute.
// Transient failures and throttling responses are retried with exponential
// backoff, honoring a server-provided Retry-After delay when present.
func (c *Client) Generate(ctx context.Context, req *domain.GenerationRequest) (string, error) {
	if req == nil || req.Property == "" {
		return "", domain.ErrInvalidRequest
	}

	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		return "", fmt.Errorf("failed to encode schema fragment: %w", err)
	}
	payload, err := json.Marshal(generateRequest{
		Property:    req.Property,
		RawSchema:   schemaJSON,
		Exemplar:    req.Exemplar,
		Marketplace: req.Marketplace,
		LanguageTag: req.LanguageTag,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode generation request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/generate", c.baseURL)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		start := time.Now()
		text, retryAfter, err := c.doGenerate(ctx, reqURL, payload)
		if metrics.GenerationDuration != nil {
			metrics.GenerationDuration.Observe(time.Since(start).Seconds())
		}
		if err == nil {
			return text, nil
		}
		lastErr = err

		c.log.Warn("generation call failed",
			zap.String("property", req.Property),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}
		delay := retryAfter
		if delay == 0 {
			// Exponential backoff: 1s, 2s, 4s...
			delay = time.Duration(1<<(attempt-1)) * time.Second
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

func (c *Client) doGenerate(ctx context.Context, reqURL string, payload []byte) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", parseRetryAfter(resp), fmt.Errorf("%w: status 429", domain.ErrRateLimited)
	default:
		return "", 0, fmt.Errorf("%w: status %d: %s", domain.ErrGenerationFailure, resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		// Some deployments return the raw text body directly.
		return string(body), 0, nil
	}
	return genResp.Text, 0, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
