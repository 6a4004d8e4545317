// Package wiki mirrors a Redmine project's wiki pages into a local directory.
//
// The mirror is strictly one-way: Redmine is the source of truth, local files
// are created, updated, or deleted to match it, and nothing is ever pushed
// back. The package shares no state with the variable resolution engine.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the Redmine JSON API for a single instance.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a client for the Redmine instance at baseURL,
// authenticating every request with the given API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PageStub identifies one wiki page in the project index.
type PageStub struct {
	Title  string `json:"title"`
	Parent *struct {
		Title string `json:"title"`
	} `json:"parent,omitempty"`
}

// Page is one wiki page with its content.
type Page struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	Version int    `json:"version"`
}

type indexResponse struct {
	WikiPages []PageStub `json:"wiki_pages"`
}

type pageResponse struct {
	WikiPage Page `json:"wiki_page"`
}

// Index fetches the list of all wiki pages in the project.
func (c *Client) Index(ctx context.Context, project string) ([]PageStub, error) {
	var resp indexResponse
	endpoint := fmt.Sprintf("%s/projects/%s/wiki/index.json", c.baseURL, url.PathEscape(project))
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.WikiPages, nil
}

// Page fetches one wiki page with its content included.
func (c *Client) Page(ctx context.Context, project, title string) (*Page, error) {
	var resp pageResponse
	endpoint := fmt.Sprintf("%s/projects/%s/wiki/%s.json?include=content",
		c.baseURL, url.PathEscape(project), url.PathEscape(title))
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp.WikiPage, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Redmine-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: unexpected status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}
