package interfaces

import (
	"context"

	"github.com/frappe/release/pkg/domain/model"
)

// ReleaseRepository persists Release records
type ReleaseRepository interface {
	Create(ctx context.Context, r *model.Release) error
	Get(ctx context.Context, id string) (*model.Release, error)
	Update(ctx context.Context, r *model.Release) error
}

// PullRequestRepository persists per-release PullRequest records and answers
// the filter checks the lifecycle gates depend on.
type PullRequestRepository interface {
	Create(ctx context.Context, pr *model.PullRequest) error
	Get(ctx context.Context, id string) (*model.PullRequest, error)
	Update(ctx context.Context, pr *model.PullRequest) error
	ListByRelease(ctx context.Context, releaseID string) ([]*model.PullRequest, error)

	// ExistsByLink reports whether a non-cancelled record with the same link
	// already exists (duplicate detection)
	ExistsByLink(ctx context.Context, link string) (bool, error)

	// AnyEditable reports whether any editable (not submitted, not
	// cancelled) record remains for the release
	AnyEditable(ctx context.Context, releaseID string) (bool, error)

	// AnyFailed reports whether any record for the release carries a Failed
	// manual-test verdict
	AnyFailed(ctx context.Context, releaseID string) (bool, error)
}
