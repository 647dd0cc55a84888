package model

import (
	"time"

	"github.com/frappe/release/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// TestStatus is the manual-testing verdict recorded against a pull request
type TestStatus string

const (
	TestUntested TestStatus = "Untested"
	TestPassed   TestStatus = "Passed"
	TestFailed   TestStatus = "Failed"
)

// PullRequest is the per-release record of one discovered pull request.
// Records are created during PR processing (or manually) and carry the
// manual-testing verdict that gates release submission.
type PullRequest struct {
	ID        string
	ReleaseID string

	Number      string
	Title       string
	Link        string
	Description string

	Status   TestStatus
	DocState DocState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPullRequest builds an Untested, editable record
func NewPullRequest(id, releaseID string, meta PullMeta, now time.Time) *PullRequest {
	return &PullRequest{
		ID:        id,
		ReleaseID: releaseID,
		Number:    meta.Number,
		Title:     meta.Title,
		Link:      meta.Link,
		Status:    TestUntested,
		DocState:  DocEditable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CheckSubmittable gates submission on a passed manual test
func (pr *PullRequest) CheckSubmittable() error {
	if pr.Status != TestPassed {
		return goerr.New("cannot submit a pull request which has not passed manual testing",
			goerr.T(types.TagPrecondition),
			goerr.V("pull_request", pr.ID), goerr.V("status", string(pr.Status)))
	}
	return nil
}

// SiblingsSettled is the domain event raised when a pull request submission
// leaves no editable sibling for its release. The lifecycle controller
// consumes it and advances the release to Ready.
type SiblingsSettled struct {
	ReleaseID string
}
