package interfaces

import (
	"context"

	"github.com/frappe/release/pkg/domain/model"
)

// ReleaseUseCase drives a release through its gated lifecycle
type ReleaseUseCase interface {
	// Create builds and stores a new Draft release
	Create(ctx context.Context, gitURL, stableBranch, preReleaseBranch string, releaseType model.ReleaseType) (*model.Release, error)

	// Validate re-checks the git URL and branch existence, and computes tag
	// and release name when absent
	Validate(ctx context.Context, releaseID string) (*model.Release, error)

	// ResetReleaseInfo recomputes tag and release name from the latest
	// stable tag
	ResetReleaseInfo(ctx context.Context, releaseID string) (*model.Release, error)

	// Get returns the stored release
	Get(ctx context.Context, releaseID string) (*model.Release, error)

	// ListBranches returns branch names of the release's repository
	ListBranches(ctx context.Context, releaseID string) ([]string, error)

	// ProcessPullRequests moves the release to "Processing PRs" and kicks
	// off asynchronous population of PullRequest records. It refuses to
	// start while a run is already outstanding.
	ProcessPullRequests(ctx context.Context, releaseID string) error

	// RaisePRForRelease creates the bump commit and the merge PR, both
	// idempotent via the release's workflow flags
	RaisePRForRelease(ctx context.Context, releaseID string, author model.CommitAuthor) (*model.Release, error)

	// Submit runs the submission gate and creates the draft GitHub release
	Submit(ctx context.Context, releaseID string) (*model.Release, error)

	// Cancel moves a pre-submission release to the terminal cancelled state
	Cancel(ctx context.Context, releaseID string) (*model.Release, error)

	// ComposeNotes renders the release summary in the given format
	ComposeNotes(ctx context.Context, releaseID string, format model.NotesFormat) (string, error)

	// ExportNotes writes the summary to a timestamped file in dir and
	// returns the file path
	ExportNotes(ctx context.Context, releaseID string, format model.NotesFormat, dir string) (string, error)

	// OnSiblingsSettled consumes the domain event raised when the last
	// editable pull request of a release is submitted
	OnSiblingsSettled(ctx context.Context, event model.SiblingsSettled) error
}

// PullRequestUseCase manages the per-release PullRequest records
type PullRequestUseCase interface {
	// Create adds a record manually; a duplicate link is a hard error here,
	// unlike the batch processing path which skips duplicates
	Create(ctx context.Context, releaseID string, meta model.PullMeta) (*model.PullRequest, error)

	// Get returns one record
	Get(ctx context.Context, id string) (*model.PullRequest, error)

	// ListByRelease returns all records of a release
	ListByRelease(ctx context.Context, releaseID string) ([]*model.PullRequest, error)

	// SetStatus records the manual-testing verdict
	SetStatus(ctx context.Context, id string, status model.TestStatus) (*model.PullRequest, error)

	// SetDescription replaces the record's description text
	SetDescription(ctx context.Context, id, description string) (*model.PullRequest, error)

	// Submit locks a record, gated on a Passed verdict; when no editable
	// sibling remains it emits SiblingsSettled to the release lifecycle
	Submit(ctx context.Context, id string) (*model.PullRequest, error)
}
