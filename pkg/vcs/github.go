package vcs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// GitHubProvider implements interfaces.VCSProvider for GitHub and GitHub Enterprise.
type GitHubProvider struct {
	client apiClient
}

// NewGitHubProvider creates a GitHub VCS provider.
// owner/repo identifies the repository. Token is used for authentication.
// If baseURL is empty, it defaults to https://api.github.com.
func NewGitHubProvider(owner, repo, token, baseURL string) *GitHubProvider {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &GitHubProvider{client: apiClient{
		platform:   "GitHub",
		apiRoot:    strings.TrimRight(baseURL, "/"),
		authScheme: "Bearer",
		token:      token,
		owner:      owner,
		repo:       repo,
		httpClient: &http.Client{},
	}}
}

// NewGitHubProviderFromEnv creates a GitHubProvider using standard environment variables.
func NewGitHubProviderFromEnv() (*GitHubProvider, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("vcs: GITHUB_TOKEN not set")
	}

	owner, repo, err := splitRepository(os.Getenv("GITHUB_REPOSITORY"))
	if err != nil {
		return nil, err
	}

	baseURL := "https://api.github.com"
	if host := os.Getenv("GH_HOST"); host != "" && host != "github.com" {
		baseURL = fmt.Sprintf("https://%s/api/v3", host)
	}
	if apiURL := os.Getenv("GITHUB_API_URL"); apiURL != "" {
		baseURL = apiURL
	}

	return NewGitHubProvider(owner, repo, token, baseURL), nil
}

// PostComment posts or updates the report comment on a pull request.
func (g *GitHubProvider) PostComment(ctx context.Context, prRef string, body string) error {
	return g.client.postComment(ctx, prRef, body)
}

// SetStatus sets a commit status on a given SHA.
func (g *GitHubProvider) SetStatus(ctx context.Context, sha string, status interfaces.StatusState, description string) error {
	return g.client.setStatus(ctx, sha, status, description)
}
