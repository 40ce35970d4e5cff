package interfaces

import "context"

// VCSProvider abstracts git platform operations (GitHub, Forgejo).
// It posts scan reports on pull requests and sets commit statuses.
type VCSProvider interface {
	// PostComment posts the report as a PR comment.
	PostComment(ctx context.Context, prRef string, body string) error

	// SetStatus sets the commit status check on a given SHA.
	SetStatus(ctx context.Context, sha string, status StatusState, description string) error
}
