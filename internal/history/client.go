// Package history is a client for a remote Violation History Service.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"basey-transport/internal/models"
)

// Client reads violation history over HTTP. It satisfies penalty.HistorySource.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL. Callers bound each
// lookup through the context; timeout is a backstop for the transport.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool                     `json:"success"`
	Data    []models.ViolationRecord `json:"data"`
	Error   string                   `json:"error"`
}

// ViolationHistory fetches GET {base}/api/v1/vehicles/{plate}/violations
func (c *Client) ViolationHistory(ctx context.Context, plateNumber string) ([]models.ViolationRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/vehicles/%s/violations", c.baseURL, url.PathEscape(plateNumber))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}
	defer resp.Body.Close()

	var body envelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode history response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return nil, fmt.Errorf("history service returned %d: %s", resp.StatusCode, body.Error)
	}

	return body.Data, nil
}
