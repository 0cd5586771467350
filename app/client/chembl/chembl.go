// Package chembl looks up biological targets in the ChEMBL REST API.
package chembl

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const targetIRIPrefix = "http://rdf.ebi.ac.uk/resource/chembl/target/"

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

type targetsResponse struct {
	XMLName xml.Name `xml:"response"`
	Targets []struct {
		TargetChEMBLID string `xml:"target_chembl_id"`
		PrefName       string `xml:"pref_name"`
	} `xml:"targets>target"`
}

// FindTarget returns the IRI of the first target whose preferred name
// contains the given fragment.
func (c *Client) FindTarget(ctx context.Context, name string) (string, error) {
	requestURL := fmt.Sprintf("%s/target?pref_name__contains=%s", c.baseURL, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chembl request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chembl returned %d for %q", resp.StatusCode, name)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chembl response: %w", err)
	}

	var parsed targetsResponse
	if err = xml.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse chembl XML: %w", err)
	}

	if len(parsed.Targets) == 0 {
		return "", nil
	}

	return targetIRIPrefix + parsed.Targets[0].TargetChEMBLID, nil
}
