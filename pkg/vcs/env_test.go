package vcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearCIEnv blanks every variable DetectEnvironment and the providers read.
func clearCIEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FORGEJO_ACTIONS", "GITEA_ACTIONS", "GITHUB_ACTIONS", "GITLAB_CI",
		"GITHUB_REPOSITORY", "GITHUB_SHA", "GITHUB_REF", "GITHUB_TOKEN",
		"GITHUB_API_URL", "GITHUB_SERVER_URL", "GH_HOST",
		"FORGEJO_TOKEN", "GITEA_TOKEN", "CI_SERVER_URL", "GITEA_SERVER_URL",
		"CI_MERGE_REQUEST_IID", "CI_COMMIT_SHA", "CI_PROJECT_PATH",
	} {
		t.Setenv(k, "")
	}
}

func TestDetectEnvironment_GitHub(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITHUB_REPOSITORY", "acme/widgets")
	t.Setenv("GITHUB_SHA", "deadbeef")
	t.Setenv("GITHUB_REF", "refs/pull/17/merge")

	env := DetectEnvironment()
	assert.Equal(t, Environment{
		Platform: PlatformGitHub,
		PRNumber: "17",
		Owner:    "acme",
		Repo:     "widgets",
		SHA:      "deadbeef",
	}, env)
}

func TestDetectEnvironment_ForgejoWins(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("FORGEJO_ACTIONS", "true")
	t.Setenv("GITHUB_REF", "refs/heads/main")

	env := DetectEnvironment()
	assert.Equal(t, PlatformForgejo, env.Platform)
	assert.Empty(t, env.PRNumber)
}

func TestDetectEnvironment_GitLab(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITLAB_CI", "true")
	t.Setenv("CI_MERGE_REQUEST_IID", "8")
	t.Setenv("CI_COMMIT_SHA", "cafe")
	t.Setenv("CI_PROJECT_PATH", "group/project")

	env := DetectEnvironment()
	assert.Equal(t, PlatformGitLab, env.Platform)
	assert.Equal(t, "8", env.PRNumber)
	assert.Equal(t, "group", env.Owner)
	assert.Equal(t, "project", env.Repo)

	_, err := NewProvider(env)
	require.Error(t, err)
}

func TestDetectEnvironment_Generic(t *testing.T) {
	clearCIEnv(t)
	assert.Equal(t, Environment{Platform: PlatformGeneric}, DetectEnvironment())
}

func TestNewProvider_FromEnv(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITHUB_REPOSITORY", "acme/widgets")

	_, err := NewProvider(Environment{Platform: PlatformGitHub})
	require.ErrorContains(t, err, "GITHUB_TOKEN")

	t.Setenv("GITHUB_TOKEN", "tok")
	p, err := NewProvider(Environment{Platform: PlatformGitHub})
	require.NoError(t, err)
	assert.IsType(t, &GitHubProvider{}, p)

	_, err = NewProvider(Environment{Platform: PlatformForgejo})
	require.ErrorContains(t, err, "FORGEJO_TOKEN")

	t.Setenv("FORGEJO_TOKEN", "tok")
	_, err = NewProvider(Environment{Platform: PlatformForgejo})
	require.ErrorContains(t, err, "CI_SERVER_URL")

	t.Setenv("CI_SERVER_URL", "https://codeberg.org/")
	p, err = NewProvider(Environment{Platform: PlatformForgejo})
	require.NoError(t, err)
	fp := p.(*ForgejoProvider)
	assert.Equal(t, "https://codeberg.org/api/v1", fp.client.apiRoot)
}

func TestSplitRepository(t *testing.T) {
	owner, repo, err := splitRepository("a/b")
	require.NoError(t, err)
	assert.Equal(t, "a", owner)
	assert.Equal(t, "b", repo)

	for _, bad := range []string{"", "ab", "/b", "a/"} {
		_, _, err := splitRepository(bad)
		assert.Error(t, err, bad)
	}
}
