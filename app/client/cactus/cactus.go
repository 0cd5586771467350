// Package cactus resolves chemical names through the NCI CACTUS
// chemical-structure service.
package cactus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StdInChIKey resolves a chemical name to its standard InChIKey.
// CACTUS answers plain text, optionally prefixed with "InChIKey=".
func (c *Client) StdInChIKey(ctx context.Context, name string) (string, error) {
	requestURL := fmt.Sprintf("%s/%s/stdinchikey", c.baseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cactus request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cactus returned %d for %q", resp.StatusCode, name)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read cactus response: %w", err)
	}

	key := strings.TrimSpace(string(body))
	key = strings.TrimPrefix(key, "InChIKey=")
	if key == "" {
		return "", fmt.Errorf("cactus returned empty body for %q", name)
	}

	return key, nil
}
