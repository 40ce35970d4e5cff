package vcs

import (
	"fmt"
	"os"
	"strings"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// CI platforms recognised by DetectEnvironment.
const (
	PlatformGitHub  = "github"
	PlatformForgejo = "forgejo"
	PlatformGitLab  = "gitlab"
	PlatformGeneric = "generic"
)

// Environment holds detected CI platform metadata.
type Environment struct {
	Platform string
	PRNumber string
	Owner    string
	Repo     string
	SHA      string
}

// DetectEnvironment inspects environment variables to determine the CI platform.
func DetectEnvironment() Environment {
	switch {
	case os.Getenv("FORGEJO_ACTIONS") == "true" || os.Getenv("GITEA_ACTIONS") == "true":
		return detectActions(PlatformForgejo)
	case os.Getenv("GITHUB_ACTIONS") == "true":
		return detectActions(PlatformGitHub)
	case os.Getenv("GITLAB_CI") == "true":
		return detectGitLab()
	default:
		return Environment{Platform: PlatformGeneric}
	}
}

// detectActions reads the GitHub-compatible variables that both GitHub
// Actions and Forgejo Actions export.
func detectActions(platform string) Environment {
	env := Environment{Platform: platform, SHA: os.Getenv("GITHUB_SHA")}
	env.Owner, env.Repo, _ = splitRepository(os.Getenv("GITHUB_REPOSITORY"))

	// pull_request events run on refs/pull/<n>/merge.
	if rest, ok := strings.CutPrefix(os.Getenv("GITHUB_REF"), "refs/pull/"); ok {
		env.PRNumber, _, _ = strings.Cut(rest, "/")
	}
	return env
}

func detectGitLab() Environment {
	env := Environment{
		Platform: PlatformGitLab,
		PRNumber: os.Getenv("CI_MERGE_REQUEST_IID"),
		SHA:      os.Getenv("CI_COMMIT_SHA"),
	}
	env.Owner, env.Repo, _ = splitRepository(os.Getenv("CI_PROJECT_PATH"))
	return env
}

// NewProvider creates the VCSProvider for a detected environment.
func NewProvider(env Environment) (interfaces.VCSProvider, error) {
	switch env.Platform {
	case PlatformGitHub:
		p, err := NewGitHubProviderFromEnv()
		if err != nil {
			return nil, err
		}
		return p, nil
	case PlatformForgejo:
		p, err := NewForgejoProviderFromEnv()
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("vcs: no provider for %s CI", env.Platform)
	}
}
