// Package vcs posts scan reports to git hosting platforms.
package vcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// StatusContext names the commit status set by warden.
const StatusContext = "warden"

// maxStatusDescription is the longest description GitHub accepts.
const maxStatusDescription = 140

// apiClient holds what GitHub and Forgejo share: a repo-scoped JSON API with
// token auth, issue comments and commit statuses.
type apiClient struct {
	platform   string
	apiRoot    string
	authScheme string
	token      string
	owner      string
	repo       string
	httpClient *http.Client
}

type issueComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

func (c *apiClient) url(format string, args ...any) string {
	return fmt.Sprintf("%s/repos/%s/%s", c.apiRoot, c.owner, c.repo) + fmt.Sprintf(format, args...)
}

// do sends payload as JSON and decodes the response into out when non-nil.
// Any status other than want is an error.
func (c *apiClient) do(ctx context.Context, method, url string, payload any, want int, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("vcs: marshaling %s request: %w", c.platform, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("vcs: creating %s request: %w", c.platform, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.authScheme+" "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vcs: %s %s: %w", method, c.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("vcs: %s %s returned %d: %s", c.platform, req.URL.Path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("vcs: decoding %s response: %w", c.platform, err)
		}
	}
	return nil
}

// postComment creates a PR comment. When the body starts with an HTML comment
// marker line, an earlier comment with the same marker is edited instead.
func (c *apiClient) postComment(ctx context.Context, prRef, body string) error {
	payload := map[string]string{"body": body}

	if marker := commentMarker(body); marker != "" {
		var comments []issueComment
		if err := c.do(ctx, http.MethodGet, c.url("/issues/%s/comments?per_page=100", prRef), nil, http.StatusOK, &comments); err != nil {
			return err
		}
		for _, existing := range comments {
			if strings.HasPrefix(existing.Body, marker) {
				return c.do(ctx, http.MethodPatch, c.url("/issues/comments/%d", existing.ID), payload, http.StatusOK, nil)
			}
		}
	}

	return c.do(ctx, http.MethodPost, c.url("/issues/%s/comments", prRef), payload, http.StatusCreated, nil)
}

func (c *apiClient) setStatus(ctx context.Context, sha string, status interfaces.StatusState, description string) error {
	if len(description) > maxStatusDescription {
		description = description[:maxStatusDescription-3] + "..."
	}
	payload := map[string]string{
		"state":       statusState(status),
		"description": description,
		"context":     StatusContext,
	}
	return c.do(ctx, http.MethodPost, c.url("/statuses/%s", sha), payload, http.StatusCreated, nil)
}

// commentMarker returns the first line of body when it is an HTML comment.
func commentMarker(body string) string {
	line, _, _ := strings.Cut(body, "\n")
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "<!--") && strings.HasSuffix(line, "-->") {
		return line
	}
	return ""
}

// statusState maps interfaces.StatusState to the API status strings shared by
// GitHub and Forgejo.
func statusState(s interfaces.StatusState) string {
	switch s {
	case interfaces.StatusPending:
		return "pending"
	case interfaces.StatusSuccess:
		return "success"
	case interfaces.StatusFailure:
		return "failure"
	default:
		return "error"
	}
}

// splitRepository parses an "owner/repo" string.
func splitRepository(repository string) (string, string, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("vcs: invalid repository %q, expected owner/repo", repository)
	}
	return owner, repo, nil
}
