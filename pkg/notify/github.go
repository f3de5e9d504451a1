package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const githubAPI = "https://api.github.com"

// GitHub maintains the single marked dashboard comment on an issue and
// uploads chart assets through the contents API.
type GitHub struct {
	repo    string // "owner/repo"
	issue   string
	token   string
	marker  string
	baseURL string
	rawBase string
	client  *http.Client
}

// NewGitHub creates a GitHub dashboard collaborator.
func NewGitHub(repo, issue, token, marker string, timeout time.Duration) *GitHub {
	return &GitHub{
		repo:    repo,
		issue:   issue,
		token:   token,
		marker:  marker,
		baseURL: githubAPI,
		rawBase: "https://raw.githubusercontent.com",
		client:  &http.Client{Timeout: timeout},
	}
}

// UpdateDashboard finds the marked comment on the issue and patches it
// in place, or creates it when absent.
func (g *GitHub) UpdateDashboard(ctx context.Context, body string) error {
	commentID, err := g.findMarkedComment(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("failed to marshal comment body: %w", err)
	}

	var req *http.Request
	if commentID != 0 {
		url := fmt.Sprintf("%s/repos/%s/issues/comments/%d", g.baseURL, g.repo, commentID)
		req, err = http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	} else {
		url := fmt.Sprintf("%s/repos/%s/issues/%s/comments", g.baseURL, g.repo, g.issue)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	}
	if err != nil {
		return fmt.Errorf("failed to create comment request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post dashboard comment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("dashboard comment request returned status %d", resp.StatusCode)
	}
	return nil
}

// UploadAsset creates or updates a file in the repo via the contents
// API and returns its raw URL. An existing file's sha is looked up
// first so the PUT updates instead of conflicting.
func (g *GitHub) UploadAsset(ctx context.Context, pathInRepo string, content []byte, commitMsg string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/contents/%s", g.baseURL, g.repo, pathInRepo)

	payload := map[string]string{
		"message": commitMsg,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	if sha, err := g.assetSHA(ctx, url); err == nil && sha != "" {
		payload["sha"] = sha
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal asset payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create asset request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("asset upload returned status %d", resp.StatusCode)
	}
	return fmt.Sprintf("%s/%s/main/%s", g.rawBase, g.repo, pathInRepo), nil
}

func (g *GitHub) assetSHA(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}
	var meta struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", err
	}
	return meta.SHA, nil
}

func (g *GitHub) findMarkedComment(ctx context.Context) (int64, error) {
	url := fmt.Sprintf("%s/repos/%s/issues/%s/comments", g.baseURL, g.repo, g.issue)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create comment list request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to list issue comments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("comment list returned status %d", resp.StatusCode)
	}

	var comments []struct {
		ID   int64  `json:"id"`
		Body string `json:"body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&comments); err != nil {
		return 0, fmt.Errorf("failed to decode comment list: %w", err)
	}
	for _, c := range comments {
		if strings.Contains(c.Body, g.marker) {
			return c.ID, nil
		}
	}
	return 0, nil
}

func (g *GitHub) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "token "+g.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if req.Method == http.MethodPost || req.Method == http.MethodPatch || req.Method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}
}

// SetBaseURLs overrides the API and raw endpoints. Test hook.
func (g *GitHub) SetBaseURLs(api, raw string) {
	g.baseURL = api
	g.rawBase = raw
}
