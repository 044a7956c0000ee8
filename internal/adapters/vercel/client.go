// Package vercel provides a minimal Vercel deployments API client used
// by the deployment listing tool.
package vercel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
)

const defaultBaseURL = "https://api.vercel.com"

// Client wraps the Vercel deployments API.
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

// NewClient creates a Vercel client authenticated with token.
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

// Deployment is one Vercel deployment.
type Deployment struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	State   string `json:"state"`
	Created int64  `json:"created"`
	Source  string `json:"source,omitempty"`
}

// ListDeployments fetches the account's recent deployments.
func (c *Client) ListDeployments(ctx context.Context) ([]Deployment, error) {
	url := c.baseURL + "/v6/deployments"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "Agent-WorkBench")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.ErrNetwork("VERCEL_REQUEST_FAILED", "fetching deployments").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.ErrNetwork("VERCEL_API_ERROR",
			fmt.Sprintf("Vercel API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	var payload struct {
		Deployments []Deployment `json:"deployments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding deployments: %w", err)
	}
	return payload.Deployments, nil
}
