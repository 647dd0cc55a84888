package interfaces

import (
	"context"

	"github.com/frappe/release/pkg/domain/model"
)

// GitBackend defines the hosting-side operations the release workflow needs.
// The only shipped implementation speaks the GitHub REST API; a local-clone
// backend could satisfy the same surface.
type GitBackend interface {
	// BranchExists checks that a branch exists on the repository
	BranchExists(ctx context.Context, ref model.GitRef, branch string) (bool, error)

	// ListBranches returns all branch names on the repository
	ListBranches(ctx context.Context, ref model.GitRef) ([]string, error)

	// LatestTagOn returns the name of the tag pointing at the head of the
	// given branch, or "" when the head carries no tag
	LatestTagOn(ctx context.Context, ref model.GitRef, branch string) (string, error)

	// CompareBranches returns the one-line messages of commits reachable
	// from head but not from base, newest first as reported upstream
	CompareBranches(ctx context.Context, ref model.GitRef, base, head string) ([]string, error)

	// GetPullRequest fetches title and body of one pull request
	GetPullRequest(ctx context.Context, ref model.GitRef, number string) (title, body string, err error)

	// ListOpenPullRequests returns numbers of open PRs targeting base
	ListOpenPullRequests(ctx context.Context, ref model.GitRef, base string) ([]int, error)

	// CreatePullRequest opens a PR merging head into base and returns its
	// HTML link
	CreatePullRequest(ctx context.Context, ref model.GitRef, title, body, head, base string) (string, error)

	// GetFileContent reads a file at the head of a branch
	GetFileContent(ctx context.Context, ref model.GitRef, path, branch string) (string, error)

	// UpdateFile replaces a file's content on a branch with a commit
	// attributed to the given author
	UpdateFile(ctx context.Context, ref model.GitRef, path, branch, message, content string, author model.CommitAuthor) error

	// CreateDraftRelease creates an unpublished release and returns its
	// HTML link
	CreateDraftRelease(ctx context.Context, ref model.GitRef, tagName, targetBranch, name, body string) (string, error)
}
