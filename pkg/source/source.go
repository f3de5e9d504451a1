// Package source pulls the raw tabular data from the upstream sheet
// endpoint. The endpoint is already authenticated by contract; this
// client only has to tolerate the sheet's active tab changing identity
// between runs, falling back to the most recent tab when the configured
// one is gone.
package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Table is one raw worksheet: a header row plus data rows, all strings.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Source is the upstream data dependency of the pipeline.
type Source interface {
	// Fetch returns the raw table and the name of the tab it came from.
	Fetch(ctx context.Context) (Table, string, error)
}

// Client fetches from an HTTP sheet endpoint exposing two routes:
// GET {base}/tabs (JSON list of tab names, oldest first) and
// GET {base}/data?tab={name} (CSV rows for one tab).
type Client struct {
	baseURL      string
	preferredTab string
	client       *http.Client
}

// NewClient creates a sheet client.
func NewClient(baseURL, preferredTab string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		preferredTab: preferredTab,
		client:       &http.Client{Timeout: timeout},
	}
}

// Fetch resolves the active tab and downloads its rows.
func (c *Client) Fetch(ctx context.Context) (Table, string, error) {
	tab, err := c.resolveTab(ctx)
	if err != nil {
		return Table{}, "", err
	}

	u := fmt.Sprintf("%s/data?tab=%s", c.baseURL, url.QueryEscape(tab))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Table{}, tab, fmt.Errorf("failed to create data request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Table{}, tab, fmt.Errorf("failed to fetch tab %q: %w", tab, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Table{}, tab, fmt.Errorf("tab %q fetch returned status %d", tab, resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return Table{}, tab, fmt.Errorf("failed to parse tab %q as CSV: %w", tab, err)
	}
	if len(rows) == 0 {
		return Table{}, tab, fmt.Errorf("tab %q is empty", tab)
	}

	return Table{Headers: rows[0], Rows: rows[1:]}, tab, nil
}

// resolveTab picks the configured tab when it still exists, otherwise
// the most recent one.
func (c *Client) resolveTab(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tabs", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create tab list request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to list tabs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tab list returned status %d", resp.StatusCode)
	}

	var tabs []string
	if err := json.NewDecoder(resp.Body).Decode(&tabs); err != nil {
		return "", fmt.Errorf("failed to decode tab list: %w", err)
	}
	if len(tabs) == 0 {
		return "", fmt.Errorf("sheet has no tabs")
	}

	if c.preferredTab != "" {
		for _, t := range tabs {
			if t == c.preferredTab {
				return t, nil
			}
		}
	}
	// Tabs arrive oldest first; the last one is the active partition.
	return tabs[len(tabs)-1], nil
}
