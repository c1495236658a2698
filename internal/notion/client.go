// Package notion is a minimal Notion API client plus the loader that turns
// pages into raw documents for the ingestion pipeline.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the Notion API endpoint.
	DefaultBaseURL = "https://api.notion.com"
	// APIVersion is the Notion-Version header value.
	APIVersion = "2022-06-28"

	requestTimeout = 30 * time.Second
	maxPageSize    = 100 // maximum allowed by the Notion API
)

// ErrTokenMissing indicates the client was constructed without a token.
var ErrTokenMissing = errors.New("notion token is required")

// Client is a lightweight Notion API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint. Tests point this at a local server.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Notion API client for the given integration token
// (format: "ntn_***").
func NewClient(token string, logger *slog.Logger, opts ...ClientOption) (*Client, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With("component", "notion"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search returns all pages accessible to the integration that match query
// (empty query returns everything). Pagination is handled internally;
// database objects mixed into the results are skipped.
func (c *Client) Search(ctx context.Context, query string) ([]Page, error) {
	var allPages []Page
	startCursor := ""

	for {
		req := SearchRequest{
			Query:       query,
			Filter:      &SearchFilter{Property: "object", Value: "page"},
			StartCursor: startCursor,
			PageSize:    maxPageSize,
		}

		var resp SearchResponse
		if err := c.do(ctx, http.MethodPost, "/v1/search", req, &resp); err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}

		for _, raw := range resp.Results {
			var objCheck struct {
				Object string `json:"object"`
			}
			if err := json.Unmarshal(raw, &objCheck); err != nil {
				c.logger.Warn("skipping unreadable search result", "error", err)
				continue
			}
			if objCheck.Object != "page" {
				continue
			}

			var page Page
			if err := json.Unmarshal(raw, &page); err != nil {
				c.logger.Warn("skipping unparseable page", "error", err)
				continue
			}
			allPages = append(allPages, page)
		}

		if !resp.HasMore {
			break
		}
		startCursor = resp.NextCursor
	}

	c.logger.Debug("notion search completed", "query", query, "page_count", len(allPages))
	return allPages, nil
}

// GetBlockChildren retrieves all child blocks of a block (a page ID works),
// recursing into nested blocks and handling pagination.
func (c *Client) GetBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	startCursor := ""

	for {
		path := fmt.Sprintf("/v1/blocks/%s/children", blockID)
		if startCursor != "" {
			path += "?start_cursor=" + startCursor
		}

		var resp BlockChildrenResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("get block children failed: %w", err)
		}
		blocks = append(blocks, resp.Results...)

		if !resp.HasMore {
			break
		}
		startCursor = resp.NextCursor
	}

	var withChildren []Block
	for _, block := range blocks {
		withChildren = append(withChildren, block)
		if !block.HasChildren {
			continue
		}
		children, err := c.GetBlockChildren(ctx, block.ID)
		if err != nil {
			c.logger.Warn("skipping nested blocks", "block_id", block.ID, "error", err)
			continue
		}
		withChildren = append(withChildren, children...)
	}

	return withChildren, nil
}

// GetPage retrieves a single page by ID.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &page); err != nil {
		return nil, fmt.Errorf("get page failed: %w", err)
	}
	return &page, nil
}

// do executes one API request and decodes the response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notion API error (status %d): %s", resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response: %w", err)
		}
	}
	return nil
}
