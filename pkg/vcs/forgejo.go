package vcs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// ForgejoProvider implements interfaces.VCSProvider for Forgejo and Gitea instances.
type ForgejoProvider struct {
	client apiClient
}

// NewForgejoProvider creates a Forgejo/Gitea VCS provider.
// baseURL should be the server URL (e.g., https://codeberg.org).
func NewForgejoProvider(owner, repo, token, baseURL string) *ForgejoProvider {
	return &ForgejoProvider{client: apiClient{
		platform:   "Forgejo",
		apiRoot:    strings.TrimRight(baseURL, "/") + "/api/v1",
		authScheme: "token",
		token:      token,
		owner:      owner,
		repo:       repo,
		httpClient: &http.Client{},
	}}
}

// NewForgejoProviderFromEnv creates a ForgejoProvider using standard environment variables.
func NewForgejoProviderFromEnv() (*ForgejoProvider, error) {
	token := os.Getenv("FORGEJO_TOKEN")
	if token == "" {
		token = os.Getenv("GITEA_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("vcs: FORGEJO_TOKEN or GITEA_TOKEN not set")
	}

	serverURL := os.Getenv("CI_SERVER_URL")
	if serverURL == "" {
		serverURL = os.Getenv("GITEA_SERVER_URL")
	}
	if serverURL == "" {
		serverURL = os.Getenv("GITHUB_SERVER_URL")
	}
	if serverURL == "" {
		return nil, fmt.Errorf("vcs: CI_SERVER_URL or GITEA_SERVER_URL not set")
	}

	// Forgejo Actions exposes GitHub-compatible repository variables.
	owner, repo, err := splitRepository(os.Getenv("GITHUB_REPOSITORY"))
	if err != nil {
		return nil, err
	}

	return NewForgejoProvider(owner, repo, token, serverURL), nil
}

// PostComment posts or updates the report comment on a pull request.
func (f *ForgejoProvider) PostComment(ctx context.Context, prRef string, body string) error {
	return f.client.postComment(ctx, prRef, body)
}

// SetStatus sets a commit status on a given SHA.
func (f *ForgejoProvider) SetStatus(ctx context.Context, sha string, status interfaces.StatusState, description string) error {
	return f.client.setStatus(ctx, sha, status, description)
}
