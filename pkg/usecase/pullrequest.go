package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
)

type pullRequestUseCase struct {
	backend   interfaces.GitBackend
	releases  interfaces.ReleaseRepository
	pulls     interfaces.PullRequestRepository
	lifecycle interfaces.ReleaseUseCase

	now   func() time.Time
	newID func() string
}

// PullRequestOption adjusts pullRequestUseCase construction
type PullRequestOption func(*pullRequestUseCase)

// WithPullClock replaces the time source
func WithPullClock(now func() time.Time) PullRequestOption {
	return func(uc *pullRequestUseCase) { uc.now = now }
}

// WithPullIDSource replaces the record ID generator
func WithPullIDSource(newID func() string) PullRequestOption {
	return func(uc *pullRequestUseCase) { uc.newID = newID }
}

// NewPullRequest creates the pull request record use case. The lifecycle
// controller is wired in as the consumer of SiblingsSettled events.
func NewPullRequest(
	backend interfaces.GitBackend,
	releases interfaces.ReleaseRepository,
	pulls interfaces.PullRequestRepository,
	lifecycle interfaces.ReleaseUseCase,
	opts ...PullRequestOption,
) interfaces.PullRequestUseCase {
	uc := &pullRequestUseCase{
		backend:   backend,
		releases:  releases,
		pulls:     pulls,
		lifecycle: lifecycle,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Create adds a record manually. Unlike the batch processing path, a
// duplicate link here is a hard error surfaced to the caller.
func (uc *pullRequestUseCase) Create(ctx context.Context, releaseID string, meta model.PullMeta) (*model.PullRequest, error) {
	rel, err := uc.releases.Get(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	exists, err := uc.pulls.ExistsByLink(ctx, meta.Link)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, goerr.New("another pull request with the same link already exists",
			goerr.T(types.TagDuplicateEntry), goerr.V("link", meta.Link))
	}

	pr := model.NewPullRequest(uc.newID(), rel.ID, meta, uc.now())

	if pr.Description == "" && pr.Number != "" {
		if ref, err := rel.Ref(); err == nil {
			if _, body, err := uc.backend.GetPullRequest(ctx, ref, pr.Number); err == nil {
				pr.Description = body
			} else {
				ctxlog.From(ctx).Warn("Failed to fetch pull request body",
					"number", pr.Number, "error", err)
			}
		}
	}

	if err := uc.pulls.Create(ctx, pr); err != nil {
		return nil, err
	}

	return pr, nil
}

// Get returns one record
func (uc *pullRequestUseCase) Get(ctx context.Context, id string) (*model.PullRequest, error) {
	return uc.pulls.Get(ctx, id)
}

// ListByRelease returns all records of a release
func (uc *pullRequestUseCase) ListByRelease(ctx context.Context, releaseID string) ([]*model.PullRequest, error) {
	return uc.pulls.ListByRelease(ctx, releaseID)
}

// SetStatus records the manual-testing verdict
func (uc *pullRequestUseCase) SetStatus(ctx context.Context, id string, status model.TestStatus) (*model.PullRequest, error) {
	switch status {
	case model.TestUntested, model.TestPassed, model.TestFailed:
	default:
		return nil, goerr.New(fmt.Sprintf("unknown test status %q", status),
			goerr.T(types.TagValidation))
	}

	pr, err := uc.editablePull(ctx, id)
	if err != nil {
		return nil, err
	}

	pr.Status = status
	pr.UpdatedAt = uc.now()
	if err := uc.pulls.Update(ctx, pr); err != nil {
		return nil, err
	}

	return pr, nil
}

// SetDescription replaces the record's description text
func (uc *pullRequestUseCase) SetDescription(ctx context.Context, id, description string) (*model.PullRequest, error) {
	pr, err := uc.editablePull(ctx, id)
	if err != nil {
		return nil, err
	}

	pr.Description = description
	pr.UpdatedAt = uc.now()
	if err := uc.pulls.Update(ctx, pr); err != nil {
		return nil, err
	}

	return pr, nil
}

// Submit locks a record, gated on a Passed verdict. When no editable sibling
// remains, the SiblingsSettled event advances the parent release.
func (uc *pullRequestUseCase) Submit(ctx context.Context, id string) (*model.PullRequest, error) {
	pr, err := uc.editablePull(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := pr.CheckSubmittable(); err != nil {
		return nil, err
	}

	pr.DocState = model.DocSubmitted
	pr.UpdatedAt = uc.now()
	if err := uc.pulls.Update(ctx, pr); err != nil {
		return nil, err
	}

	remaining, err := uc.pulls.AnyEditable(ctx, pr.ReleaseID)
	if err != nil {
		return nil, err
	}
	if !remaining {
		event := model.SiblingsSettled{ReleaseID: pr.ReleaseID}
		if err := uc.lifecycle.OnSiblingsSettled(ctx, event); err != nil {
			ctxlog.From(ctx).Error("Failed to advance release after last pull request settled",
				"release", pr.ReleaseID, "error", err)
		}
	}

	return pr, nil
}

func (uc *pullRequestUseCase) editablePull(ctx context.Context, id string) (*model.PullRequest, error) {
	pr, err := uc.pulls.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr.DocState != model.DocEditable {
		return nil, goerr.New(
			fmt.Sprintf("pull request is %s and can no longer be modified", pr.DocState),
			goerr.T(types.TagPrecondition), goerr.V("pull_request", id))
	}
	return pr, nil
}
