package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/frappe/release/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// ReleaseStatus is the lifecycle stage of a release
type ReleaseStatus string

const (
	StatusDraft             ReleaseStatus = "Draft"
	StatusProcessingPRs     ReleaseStatus = "Processing PRs"
	StatusPreReleaseTesting ReleaseStatus = "Pre Release Testing"
	StatusReady             ReleaseStatus = "Ready"
	StatusReleased          ReleaseStatus = "Released"
)

// DocState tracks whether a record is still editable, locked by submission,
// or cancelled. Cancellation is terminal and distinct from deletion: a
// submitted record is never erased.
type DocState string

const (
	DocEditable  DocState = "Editable"
	DocSubmitted DocState = "Submitted"
	DocCancelled DocState = "Cancelled"
)

// Release is the aggregate root of one release run: a pre-release branch
// tracked against a stable branch on one GitHub repository.
type Release struct {
	ID   string
	Name string // display name, date-suffixed after the release goes out

	GitURL           string
	StableBranch     string
	PreReleaseBranch string
	ReleaseType      ReleaseType

	// TagName and ReleaseName are set together or not at all
	TagName     string
	ReleaseName string

	// Human-verified checkpoints. PreReleaseMergedIntoStable is the operator
	// confirming the merge PR actually landed on the stable branch; the draft
	// release is cut from stable, so cutting it before the merge would tag
	// the wrong tree.
	PassedManualTesting        bool
	PostedOnDiscuss            bool
	ReadyForRelease            bool
	PreReleaseMergedIntoStable bool

	// Workflow flags, set only on confirmed upstream success
	RaisedPRForRelease bool
	BumpCommitCreated  bool

	Status   ReleaseStatus
	DocState DocState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRelease builds a Release in Draft state. The git URL is resolved and
// validated; the display name follows the "Month Year: owner/repo - Branch"
// convention.
func NewRelease(id, gitURL, stableBranch, preReleaseBranch string, releaseType ReleaseType, now time.Time) (*Release, error) {
	ref, err := ResolveGitRef(gitURL)
	if err != nil {
		return nil, err
	}
	if stableBranch == "" || preReleaseBranch == "" {
		return nil, goerr.New("stable and pre-release branch names are required",
			goerr.T(types.TagValidation))
	}

	r := &Release{
		ID:               id,
		GitURL:           gitURL,
		StableBranch:     stableBranch,
		PreReleaseBranch: preReleaseBranch,
		ReleaseType:      releaseType,
		Status:           StatusDraft,
		DocState:         DocEditable,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.Name = displayName(ref, stableBranch, now)
	return r, nil
}

func displayName(ref GitRef, stableBranch string, now time.Time) string {
	words := strings.Fields(strings.ReplaceAll(stableBranch, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return fmt.Sprintf("%s %d: %s - %s", now.Month().String(), now.Year(), ref.Path(), strings.Join(words, " "))
}

// Ref resolves the release's git URL
func (r *Release) Ref() (GitRef, error) {
	return ResolveGitRef(r.GitURL)
}

// SetReleaseInfo assigns the computed tag and the derived release name
// together, preserving the invariant that neither is set without the other.
func (r *Release) SetReleaseInfo(tagName string) {
	r.TagName = tagName
	r.ReleaseName = "Release " + tagName
}

// HasReleaseInfo reports whether tag and release name have been computed
func (r *Release) HasReleaseInfo() bool {
	return r.TagName != "" && r.ReleaseName != ""
}

// CheckSubmittable verifies every submission precondition that is intrinsic
// to the record. Unmet conditions are collected and reported by name in a
// single error so the operator sees the full list at once.
func (r *Release) CheckSubmittable() error {
	var unmet []string
	if !r.PassedManualTesting {
		unmet = append(unmet, "'Passed Manual Testing' not checked")
	}
	if !r.PostedOnDiscuss {
		unmet = append(unmet, "'Posted on Discuss' not checked")
	}
	if !r.ReadyForRelease {
		unmet = append(unmet, "'Ready for Release' not checked")
	}
	if !r.PreReleaseMergedIntoStable {
		unmet = append(unmet, "'Pre Release Merged Into Stable Branch' not checked")
	}
	if !r.HasReleaseInfo() {
		unmet = append(unmet, "release information (tag and release name) not set")
	}
	if !r.RaisedPRForRelease {
		unmet = append(unmet, "PR for release not raised")
	}
	if !r.BumpCommitCreated {
		unmet = append(unmet, "bump commit not created")
	}

	if len(unmet) > 0 {
		return goerr.New("cannot submit release: "+strings.Join(unmet, "; "),
			goerr.T(types.TagPrecondition), goerr.V("release", r.ID))
	}
	return nil
}

// MarkUpdated refreshes the update timestamp; once the release is out, the
// display name gains a date suffix on every subsequent update as an
// append-only audit trail.
func (r *Release) MarkUpdated(now time.Time) {
	r.UpdatedAt = now
	if r.Status == StatusReleased {
		r.Name = fmt.Sprintf("%s on %s", r.Name, now.Format("02-01-2006"))
	}
}

// Cancel moves the release to the terminal cancelled state. Submitted
// releases cannot be cancelled.
func (r *Release) Cancel() error {
	if r.DocState == DocSubmitted {
		return goerr.New("cannot cancel a submitted release",
			goerr.T(types.TagPrecondition), goerr.V("release", r.ID))
	}
	r.DocState = DocCancelled
	return nil
}
