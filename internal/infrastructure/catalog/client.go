// Package catalog implements the read-only catalog service client:
// attribute discovery, applicability lookup, exemplar lookup, and schema
// document retrieval.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
)

// Client handles communication with the catalog service.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	log        *zap.Logger
}

// NewClient creates a new catalog client.
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

// getJSON executes a GET request with bounded retries and decodes the
// response body into out.
func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrCatalogAPIFailure, err)
			c.log.Warn("catalog request error",
				zap.String("url", reqURL), zap.Int("attempt", attempt), zap.Error(err))
			if !sleepCtx(ctx, time.Duration(attempt)*500*time.Millisecond) {
				return lastErr
			}
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%w: status %d: %s", domain.ErrCatalogAPIFailure, resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				// Client errors other than throttling will not heal on retry.
				return lastErr
			}
			c.log.Warn("catalog API error",
				zap.String("url", reqURL), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
			if !sleepCtx(ctx, time.Duration(attempt)*500*time.Millisecond) {
				return lastErr
			}
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode catalog response: %w", err)
		}
		return nil
	}
	return lastErr
}

// ListAttributes returns the ordered list of attribute names to verify.
func (c *Client) ListAttributes(ctx context.Context) ([]string, error) {
	var resp struct {
		Attributes []string `json:"attributes"`
	}
	reqURL := fmt.Sprintf("%s/v1/attributes", c.baseURL)
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	return resp.Attributes, nil
}

// GetApplicability returns the site -> productType mapping for one attribute.
func (c *Client) GetApplicability(ctx context.Context, property string) (map[string]string, error) {
	var resp struct {
		Applicability map[string]string `json:"applicability"`
	}
	reqURL := fmt.Sprintf("%s/v1/attributes/%s/applicability", c.baseURL, url.PathEscape(property))
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	return resp.Applicability, nil
}

// GetExemplars returns prior exemplar values for one attribute, tagged by site.
func (c *Client) GetExemplars(ctx context.Context, property string) ([]domain.Exemplar, error) {
	var resp struct {
		Exemplars []domain.Exemplar `json:"exemplars"`
	}
	reqURL := fmt.Sprintf("%s/v1/attributes/%s/exemplars", c.baseURL, url.PathEscape(property))
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	return resp.Exemplars, nil
}

// GetSchemaURL returns the schema document location for a site/productType pair.
func (c *Client) GetSchemaURL(ctx context.Context, site, productType string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	params := url.Values{}
	params.Add("site", site)
	params.Add("productType", productType)
	reqURL := fmt.Sprintf("%s/v1/schemas/locate?%s", c.baseURL, params.Encode())
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("%w: empty schema URL for %s/%s", domain.ErrCatalogAPIFailure, site, productType)
	}
	return resp.URL, nil
}

// FetchSchema downloads and decodes a schema document. The document carries
// a properties map, a $defs definitions tree, and default locale/market tags.
func (c *Client) FetchSchema(ctx context.Context, schemaURL string) (*domain.SchemaDocument, error) {
	var raw map[string]interface{}
	if err := c.getJSON(ctx, schemaURL, &raw); err != nil {
		return nil, err
	}
	return decodeSchemaDocument(raw)
}

func decodeSchemaDocument(raw map[string]interface{}) (*domain.SchemaDocument, error) {
	props, ok := raw["properties"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: schema document has no properties map", domain.ErrCatalogAPIFailure)
	}

	doc := &domain.SchemaDocument{
		Properties: make(map[string]*domain.SchemaNode, len(props)),
		Raw:        raw,
	}
	for name, sub := range props {
		m, ok := sub.(map[string]interface{})
		if !ok {
			continue
		}
		doc.Properties[name] = domain.ParseSchemaNode(m)
	}

	// Default locale/market tags live under the definitions tree.
	defs, _ := raw["$defs"].(map[string]interface{})
	if defs == nil {
		defs, _ = raw["definitions"].(map[string]interface{})
	}
	doc.Marketplace = defaultString(defs, "marketplace_id")
	doc.LanguageTag = defaultString(defs, "language_tag")
	return doc, nil
}

func defaultString(defs map[string]interface{}, name string) string {
	if defs == nil {
		return ""
	}
	def, _ := defs[name].(map[string]interface{})
	if def == nil {
		return ""
	}
	if v, ok := def["default"].(string); ok {
		return v
	}
	return ""
}

// sleepCtx sleeps for d unless the context is done first. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
