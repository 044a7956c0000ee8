// Package github provides a minimal GitHub REST v3 client used by the
// repository outline tool.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
)

const defaultBaseURL = "https://api.github.com"

var repoURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

// ParseRepoURL extracts owner and repo from a github.com URL.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	m := repoURLPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return "", "", core.ErrValidation("INVALID_REPO_URL",
			fmt.Sprintf("not a github.com repository URL: %s", repoURL))
	}
	return m[1], strings.TrimSuffix(m[2], ".git"), nil
}

// Client wraps the GitHub contents API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a GitHub client authenticated with token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ContentEntry is one entry of a repository contents listing.
type ContentEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ListContents fetches the root contents listing of a repository.
func (c *Client) ListContents(ctx context.Context, owner, repo string) ([]ContentEntry, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents", c.baseURL, owner, repo)
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.ErrNetwork("GITHUB_REQUEST_FAILED", "fetching repository contents").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.ErrNetwork("GITHUB_API_ERROR",
			fmt.Sprintf("GitHub API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	var entries []ContentEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding contents listing: %w", err)
	}
	return entries, nil
}

// FetchReadme fetches the repository README in raw form. Returns an
// empty string when the repository has no README.
func (c *Client) FetchReadme(ctx context.Context, owner, repo string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/readme", c.baseURL, owner, repo)
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3.raw")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", core.ErrNetwork("GITHUB_REQUEST_FAILED", "fetching readme").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", core.ErrNetwork("GITHUB_API_ERROR",
			fmt.Sprintf("GitHub API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading readme body: %w", err)
	}
	return string(body), nil
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("User-Agent", "Agent-WorkBench")
	return req, nil
}
