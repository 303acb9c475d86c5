// Package n8n implements the platform API boundary: reading workflows from
// an installation and writing them to another. Calls are synchronous; a
// rejection is reported to the caller as an opaque error, retries and
// timeouts beyond the HTTP client's own are deliberately absent.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/workflow"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	apiPrefix     = "/api/v1"
	apiKeyHeader  = "X-N8N-API-KEY"
	defaultLimit  = 100
	clientTimeout = 30 * time.Second
)

type Client struct {
	logger  *zap.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client for one installation. The API key is a JWT
// issued by the installation; it is parsed unverified here only to warn the
// operator about an expired key before the run burns time on 401s.
func NewClient(logger *zap.Logger, baseURL, apiKey string) *Client {
	client := &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: clientTimeout},
	}
	client.warnIfKeyExpired()
	return client
}

func (c *Client) warnIfKeyExpired() {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(c.apiKey, claims)
	if err != nil {
		// some installations issue opaque keys, nothing to inspect
		return
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return
	}
	if expiry.Before(time.Now()) {
		c.logger.Warn("API key appears to be expired",
			zap.String("base_url", c.baseURL),
			zap.Time("expired_at", expiry.Time))
	}
}

type listResponse struct {
	Data       []workflow.Workflow `json:"data"`
	NextCursor string              `json:"nextCursor"`
}

// List fetches every workflow of the installation, following cursor
// pagination until exhausted.
func (c *Client) List(ctx context.Context) ([]workflow.Workflow, error) {
	var all []workflow.Workflow
	cursor := ""
	for {
		query := url.Values{}
		query.Set("limit", fmt.Sprintf("%d", defaultLimit))
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, "/workflows?"+query.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list workflows: %w", err)
		}

		all = append(all, page.Data...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return all, nil
}

// Get fetches a single workflow by its id.
func (c *Client) Get(ctx context.Context, id string) (workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodGet, "/workflows/"+url.PathEscape(id), nil, &wf); err != nil {
		return workflow.Workflow{}, fmt.Errorf("failed to get workflow %s: %w", id, err)
	}
	return wf, nil
}

// Create creates a workflow; the installation assigns it a brand-new id.
// The payload must already be sanitized of destination-assigned fields.
func (c *Client) Create(ctx context.Context, wf workflow.Workflow) (workflow.Workflow, error) {
	var created workflow.Workflow
	if err := c.do(ctx, http.MethodPost, "/workflows", wf, &created); err != nil {
		return workflow.Workflow{}, fmt.Errorf("failed to create workflow %q: %w", wf.Name, err)
	}
	return created, nil
}

// Update replaces a workflow's definition under its existing id.
func (c *Client) Update(ctx context.Context, id string, wf workflow.Workflow) (workflow.Workflow, error) {
	var updated workflow.Workflow
	if err := c.do(ctx, http.MethodPut, "/workflows/"+url.PathEscape(id), wf, &updated); err != nil {
		return workflow.Workflow{}, fmt.Errorf("failed to update workflow %s: %w", id, err)
	}
	return updated, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return internal.ErrWorkflowNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", internal.ErrUnexpectedResponse, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
