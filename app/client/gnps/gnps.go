// Package gnps converts SMILES structures to InChIKeys through the GNPS
// structure service.
package gnps

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

func (c *Client) InChIKey(ctx context.Context, smiles string) (string, error) {
	requestURL := fmt.Sprintf("%s/inchikey?smiles=%s", c.baseURL, url.QueryEscape(smiles))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gnps request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gnps returned %d for %q", resp.StatusCode, smiles)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gnps response: %w", err)
	}

	key := parseBody(body)
	if key == "" {
		return "", fmt.Errorf("gnps returned empty body for %q", smiles)
	}

	return key, nil
}

// parseBody accepts either a bare text key or a JSON-quoted one; the service
// has answered both over time.
func parseBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))

	if strings.HasPrefix(trimmed, `"`) {
		var quoted string
		if err := json.Unmarshal([]byte(trimmed), &quoted); err == nil {
			return strings.TrimSpace(quoted)
		}
	}

	return trimmed
}
