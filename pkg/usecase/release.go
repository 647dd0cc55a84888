package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
	"github.com/frappe/release/pkg/utils/async"
)

type releaseUseCase struct {
	backend  interfaces.GitBackend
	releases interfaces.ReleaseRepository
	pulls    interfaces.PullRequestRepository
	notifier interfaces.Notifier
	policy   model.Policy

	now      func() time.Time
	newID    func() string
	dispatch func(ctx context.Context, handler func(context.Context) error)

	// mu guards the caches map and serializes the status check that keeps
	// "Processing PRs" from starting twice for one release. Each cache
	// carries its own lock for the refresh sequence.
	mu     sync.Mutex
	caches map[string]*model.ReleaseCache
}

// ReleaseOption adjusts releaseUseCase construction
type ReleaseOption func(*releaseUseCase)

// WithClock replaces the time source
func WithClock(now func() time.Time) ReleaseOption {
	return func(uc *releaseUseCase) { uc.now = now }
}

// WithIDSource replaces the record ID generator
func WithIDSource(newID func() string) ReleaseOption {
	return func(uc *releaseUseCase) { uc.newID = newID }
}

// WithSyncDispatch runs the PR-processing step inline instead of in a
// goroutine. Tests use it to observe completion deterministically.
func WithSyncDispatch() ReleaseOption {
	return func(uc *releaseUseCase) {
		uc.dispatch = func(ctx context.Context, handler func(context.Context) error) {
			if err := handler(ctx); err != nil {
				ctxlog.From(ctx).Error("error in sync dispatch", "error", err)
			}
		}
	}
}

// NewRelease creates the release lifecycle controller
func NewRelease(
	backend interfaces.GitBackend,
	releases interfaces.ReleaseRepository,
	pulls interfaces.PullRequestRepository,
	notifier interfaces.Notifier,
	policy model.Policy,
	opts ...ReleaseOption,
) interfaces.ReleaseUseCase {
	uc := &releaseUseCase{
		backend:  backend,
		releases: releases,
		pulls:    pulls,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
		newID:    uuid.NewString,
		dispatch: async.Dispatch,
		caches:   make(map[string]*model.ReleaseCache),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Create builds and stores a new Draft release
func (uc *releaseUseCase) Create(ctx context.Context, gitURL, stableBranch, preReleaseBranch string, releaseType model.ReleaseType) (*model.Release, error) {
	rel, err := model.NewRelease(uc.newID(), gitURL, stableBranch, preReleaseBranch, releaseType, uc.now())
	if err != nil {
		return nil, err
	}

	if err := uc.releases.Create(ctx, rel); err != nil {
		return nil, err
	}

	ctxlog.From(ctx).Info("Created release",
		"release", rel.ID,
		"name", rel.Name,
		"stable", stableBranch,
		"pre_release", preReleaseBranch,
	)

	return rel, nil
}

// Get returns the stored release
func (uc *releaseUseCase) Get(ctx context.Context, releaseID string) (*model.Release, error) {
	return uc.releases.Get(ctx, releaseID)
}

// Validate re-checks the git URL and branch existence on the host, and
// computes tag and release name when absent
func (uc *releaseUseCase) Validate(ctx context.Context, releaseID string) (*model.Release, error) {
	rel, err := uc.editableRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	ref, err := rel.Ref()
	if err != nil {
		return nil, err
	}

	for _, branch := range []string{rel.StableBranch, rel.PreReleaseBranch} {
		exists, err := uc.backend.BranchExists(ctx, ref, branch)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, goerr.New(
				fmt.Sprintf("branch %s does not exist on %s", branch, rel.GitURL),
				goerr.T(types.TagValidation), goerr.V("branch", branch))
		}
	}

	if !rel.HasReleaseInfo() {
		if err := uc.computeReleaseInfo(ctx, rel, ref); err != nil {
			return nil, err
		}
	}

	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		return nil, err
	}

	return rel, nil
}

// ResetReleaseInfo recomputes tag and release name from the latest stable tag
func (uc *releaseUseCase) ResetReleaseInfo(ctx context.Context, releaseID string) (*model.Release, error) {
	rel, err := uc.editableRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	ref, err := rel.Ref()
	if err != nil {
		return nil, err
	}

	if err := uc.computeReleaseInfo(ctx, rel, ref); err != nil {
		return nil, err
	}

	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		return nil, err
	}

	return rel, nil
}

// ListBranches returns branch names of the release's repository
func (uc *releaseUseCase) ListBranches(ctx context.Context, releaseID string) ([]string, error) {
	rel, err := uc.releases.Get(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	ref, err := rel.Ref()
	if err != nil {
		return nil, err
	}

	return uc.backend.ListBranches(ctx, ref)
}

// ProcessPullRequests moves the release into "Processing PRs" and populates
// PullRequest records in the background. The status field acts as the lock:
// a release already in "Processing PRs" refuses a second run.
func (uc *releaseUseCase) ProcessPullRequests(ctx context.Context, releaseID string) error {
	if err := uc.claimProcessing(ctx, releaseID); err != nil {
		return err
	}

	uc.dispatch(ctx, func(ctx context.Context) error {
		return uc.processPullRequests(ctx, releaseID)
	})

	return nil
}

// claimProcessing atomically flips the release into "Processing PRs",
// rejecting a second run while one is outstanding
func (uc *releaseUseCase) claimProcessing(ctx context.Context, releaseID string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	rel, err := uc.editableRelease(ctx, releaseID)
	if err != nil {
		return err
	}
	if rel.Status == model.StatusProcessingPRs {
		return goerr.New("a PR processing run is already outstanding for this release",
			goerr.T(types.TagPrecondition), goerr.V("release", releaseID))
	}

	rel.Status = model.StatusProcessingPRs
	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		return err
	}
	uc.notifyChanged(ctx, rel, "processing pull requests")

	return nil
}

// processPullRequests is the asynchronous body of the "Processing PRs" step
func (uc *releaseUseCase) processPullRequests(ctx context.Context, releaseID string) error {
	logger := ctxlog.From(ctx)

	rel, err := uc.releases.Get(ctx, releaseID)
	if err != nil {
		return err
	}
	ref, err := rel.Ref()
	if err != nil {
		return err
	}

	metas, err := uc.refreshCache(ctx, rel, ref)
	if err != nil {
		// Put the release back so the operator can re-invoke the step
		uc.revertToDraft(ctx, rel)
		return err
	}

	for _, meta := range metas {
		if err := uc.createPullRecord(ctx, rel, ref, meta); err != nil {
			// One bad PR must not abort the batch
			logger.Warn("Skipping pull request record",
				"release", rel.ID,
				"number", meta.Number,
				"error", err,
			)
		}
	}

	rel.Status = model.StatusPreReleaseTesting
	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		return err
	}
	uc.notifyChanged(ctx, rel, "pull requests processed")

	logger.Info("Processed pull requests",
		"release", rel.ID,
		"pull_count", len(metas),
	)

	return nil
}

// createPullRecord inserts one PullRequest record, skipping duplicates
func (uc *releaseUseCase) createPullRecord(ctx context.Context, rel *model.Release, ref model.GitRef, meta model.PullMeta) error {
	exists, err := uc.pulls.ExistsByLink(ctx, meta.Link)
	if err != nil {
		return err
	}
	if exists {
		ctxlog.From(ctx).Debug("Pull request record already exists",
			"release", rel.ID, "link", meta.Link)
		return nil
	}

	pr := model.NewPullRequest(uc.newID(), rel.ID, meta, uc.now())

	// Fill the description from the PR body; absence is not fatal
	if _, body, err := uc.backend.GetPullRequest(ctx, ref, meta.Number); err == nil {
		pr.Description = body
	}

	if err := uc.pulls.Create(ctx, pr); err != nil {
		if types.IsDuplicateEntry(err) {
			return nil
		}
		return err
	}
	return nil
}

// RaisePRForRelease creates the bump commit on the pre-release branch and
// raises the merge PR into stable. Both side effects are idempotent: a flag
// already set short-circuits its step, so re-invocation after a partial
// failure only performs the missing work.
func (uc *releaseUseCase) RaisePRForRelease(ctx context.Context, releaseID string, author model.CommitAuthor) (*model.Release, error) {
	rel, err := uc.editableRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if !rel.HasReleaseInfo() {
		return nil, goerr.New("update release information before raising the PR for release",
			goerr.T(types.TagPrecondition), goerr.V("release", releaseID))
	}

	ref, err := rel.Ref()
	if err != nil {
		return nil, err
	}

	if err := uc.createBumpCommit(ctx, rel, ref, author); err != nil {
		return nil, err
	}
	if err := uc.raisePreReleaseIntoStable(ctx, rel, ref); err != nil {
		return nil, err
	}

	return rel, nil
}

func (uc *releaseUseCase) createBumpCommit(ctx context.Context, rel *model.Release, ref model.GitRef, author model.CommitAuthor) error {
	if rel.BumpCommitCreated {
		return nil
	}

	path := versionFilePath(uc.policy.VersionFile, ref.Name)
	content, err := uc.backend.GetFileContent(ctx, ref, path, rel.PreReleaseBranch)
	if err != nil {
		return err
	}

	pattern, err := regexp.Compile(uc.policy.VersionPattern)
	if err != nil {
		return goerr.Wrap(err, "invalid version pattern in policy",
			goerr.V("pattern", uc.policy.VersionPattern))
	}

	bumped := pattern.ReplaceAllString(content, fmt.Sprintf(uc.policy.VersionLine, rel.TagName))
	message := "chore: Bump to v" + rel.TagName

	if err := uc.backend.UpdateFile(ctx, ref, path, rel.PreReleaseBranch, message, bumped, author); err != nil {
		return err
	}

	rel.BumpCommitCreated = true
	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		return err
	}
	uc.notifyChanged(ctx, rel, "bump commit created")

	ctxlog.From(ctx).Info("Created bump commit",
		"release", rel.ID,
		"branch", rel.PreReleaseBranch,
		"tag", rel.TagName,
	)

	return nil
}

func (uc *releaseUseCase) raisePreReleaseIntoStable(ctx context.Context, rel *model.Release, ref model.GitRef) error {
	if rel.RaisedPRForRelease {
		return nil
	}

	title := fmt.Sprintf("chore: Merge %s into %s", rel.PreReleaseBranch, rel.StableBranch)
	body := "### TODO\n- [ ] Add release notes"

	link, err := uc.backend.CreatePullRequest(ctx, ref, title, body, rel.PreReleaseBranch, rel.StableBranch)
	if err != nil {
		return err
	}

	rel.RaisedPRForRelease = true
	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		return err
	}
	uc.notifyChanged(ctx, rel, "PR raised: "+link)

	ctxlog.From(ctx).Info("Raised PR for release",
		"release", rel.ID,
		"link", link,
	)

	return nil
}

// Submit runs the full submission gate and creates the draft GitHub release.
// Nothing is persisted unless every gate passes and the draft release call
// succeeds.
func (uc *releaseUseCase) Submit(ctx context.Context, releaseID string) (*model.Release, error) {
	rel, err := uc.editableRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if err := rel.CheckSubmittable(); err != nil {
		return nil, err
	}

	ref, err := rel.Ref()
	if err != nil {
		return nil, err
	}

	open, err := uc.backend.ListOpenPullRequests(ctx, ref, rel.StableBranch)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		return nil, goerr.New(
			fmt.Sprintf("there are %d open PRs to the stable branch; get them merged before submitting the release", len(open)),
			goerr.T(types.TagPrecondition), goerr.V("open_prs", open))
	}

	failed, err := uc.pulls.AnyFailed(ctx, rel.ID)
	if err != nil {
		return nil, err
	}
	if failed {
		return nil, goerr.New("a pull request of this release failed manual testing",
			goerr.T(types.TagPrecondition), goerr.V("release", rel.ID))
	}

	summary, err := uc.composeNotes(ctx, rel, ref, model.NotesMarkdown)
	if err != nil {
		return nil, err
	}
	body := model.DraftReleaseBody(ref.Name, rel.TagName, summary, rel.BumpCommitCreated)

	link, err := uc.backend.CreateDraftRelease(ctx, ref, "v"+rel.TagName, rel.StableBranch, rel.ReleaseName, body)
	if err != nil {
		return nil, err
	}

	rel.Status = model.StatusReady
	rel.DocState = model.DocSubmitted
	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		return nil, err
	}
	uc.notifyChanged(ctx, rel, "draft release created: "+link)

	ctxlog.From(ctx).Info("Submitted release",
		"release", rel.ID,
		"tag", rel.TagName,
		"draft_release", link,
	)

	return rel, nil
}

// Cancel moves a pre-submission release to the terminal cancelled state
func (uc *releaseUseCase) Cancel(ctx context.Context, releaseID string) (*model.Release, error) {
	rel, err := uc.releases.Get(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if err := rel.Cancel(); err != nil {
		return nil, err
	}

	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		return nil, err
	}
	uc.notifyChanged(ctx, rel, "cancelled")

	return rel, nil
}

// ComposeNotes renders the release summary in the given format
func (uc *releaseUseCase) ComposeNotes(ctx context.Context, releaseID string, format model.NotesFormat) (string, error) {
	rel, err := uc.releases.Get(ctx, releaseID)
	if err != nil {
		return "", err
	}
	ref, err := rel.Ref()
	if err != nil {
		return "", err
	}
	return uc.composeNotes(ctx, rel, ref, format)
}

// ExportNotes writes the summary to a timestamped file in dir
func (uc *releaseUseCase) ExportNotes(ctx context.Context, releaseID string, format model.NotesFormat, dir string) (string, error) {
	rel, err := uc.releases.Get(ctx, releaseID)
	if err != nil {
		return "", err
	}
	ref, err := rel.Ref()
	if err != nil {
		return "", err
	}

	summary, err := uc.composeNotes(ctx, rel, ref, format)
	if err != nil {
		return "", err
	}

	name := model.ExportFileName(ref.Name, rel.PreReleaseBranch, rel.StableBranch, format, uc.now())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(summary), 0644); err != nil {
		return "", goerr.Wrap(err, "failed to write notes export", goerr.V("path", path))
	}

	return path, nil
}

// OnSiblingsSettled advances the release to Ready when its last editable
// pull request has been submitted
func (uc *releaseUseCase) OnSiblingsSettled(ctx context.Context, event model.SiblingsSettled) error {
	rel, err := uc.releases.Get(ctx, event.ReleaseID)
	if err != nil {
		return err
	}
	if rel.Status == model.StatusReady || rel.DocState == model.DocCancelled {
		return nil
	}

	rel.Status = model.StatusReady
	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		return err
	}
	uc.notifyChanged(ctx, rel, "all pull requests settled")

	return nil
}

// composeNotes refreshes the cache and renders the summary
func (uc *releaseUseCase) composeNotes(ctx context.Context, rel *model.Release, ref model.GitRef, format model.NotesFormat) (string, error) {
	metas, err := uc.refreshCache(ctx, rel, ref)
	if err != nil {
		return "", err
	}
	return model.ComposeNotes(metas, format), nil
}

// refreshCache recomputes the commit diff and PR-number set, clears the
// metadata cache when the set changed, fills in any missing metadata, and
// returns the metadata snapshot. The cache lock is held for the whole
// sequence: concurrent notes requests, or a notes request racing the async
// processing run, must not interleave their read-modify-write cycles.
func (uc *releaseUseCase) refreshCache(ctx context.Context, rel *model.Release, ref model.GitRef) ([]model.PullMeta, error) {
	logger := ctxlog.From(ctx)

	cache := uc.cacheFor(rel.ID)
	cache.Lock()
	defer cache.Unlock()

	raw, err := uc.backend.CompareBranches(ctx, ref, rel.StableBranch, rel.PreReleaseBranch)
	if err != nil {
		return nil, err
	}
	messages := model.DedupeMessages(raw)
	cache.SetCommits(messages)

	numbers := model.ExtractPullNumbers(messages, uc.policy.SkipBackports, uc.policy.BackportMarkers)
	if cache.RefreshIfChanged(numbers) {
		logger.Debug("PR-number set changed, metadata cache cleared",
			"release", rel.ID,
			"pull_count", len(numbers),
		)
	}

	for _, number := range cache.PullNumbers() {
		if cache.HasMeta(number) {
			continue
		}

		title, _, err := uc.backend.GetPullRequest(ctx, ref, number)
		if err != nil {
			// Partial results are fine; the notes are reviewed by a human
			logger.Warn("Failed to fetch pull request, skipping",
				"release", rel.ID, "number", number, "error", err)
			continue
		}
		if title == "" {
			logger.Warn("Pull request has no title, skipping",
				"release", rel.ID, "number", number)
			continue
		}
		if uc.policy.IgnoresTitle(title) {
			logger.Debug("Ignoring pull request by title prefix",
				"release", rel.ID, "number", number, "title", title)
			continue
		}

		cache.PutMeta(model.PullMeta{
			Number: number,
			Title:  title,
			Link:   fmt.Sprintf("https://github.com/%s/pull/%s", ref.Path(), number),
		})
	}

	return cache.Meta(), nil
}

func (uc *releaseUseCase) cacheFor(releaseID string) *model.ReleaseCache {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	cache, ok := uc.caches[releaseID]
	if !ok {
		cache = model.NewReleaseCache()
		uc.caches[releaseID] = cache
	}
	return cache
}

// computeReleaseInfo derives the next tag from the latest stable tag
func (uc *releaseUseCase) computeReleaseInfo(ctx context.Context, rel *model.Release, ref model.GitRef) error {
	latest, err := uc.backend.LatestTagOn(ctx, ref, rel.StableBranch)
	if err != nil {
		return err
	}

	tag, err := model.PlanNextVersion(latest, rel.ReleaseType)
	if err != nil {
		return err
	}

	rel.SetReleaseInfo(tag)
	return nil
}

// editableRelease fetches a release and rejects operations on locked or
// cancelled records
func (uc *releaseUseCase) editableRelease(ctx context.Context, releaseID string) (*model.Release, error) {
	rel, err := uc.releases.Get(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if rel.DocState != model.DocEditable {
		return nil, goerr.New(
			fmt.Sprintf("release is %s and can no longer be modified", rel.DocState),
			goerr.T(types.TagPrecondition), goerr.V("release", releaseID))
	}
	return rel, nil
}

// revertToDraft puts a release back after an aborted processing run
func (uc *releaseUseCase) revertToDraft(ctx context.Context, rel *model.Release) {
	rel.Status = model.StatusDraft
	rel.MarkUpdated(uc.now())
	if err := uc.releases.Update(ctx, rel); err != nil {
		ctxlog.From(ctx).Error("Failed to revert release status",
			"release", rel.ID, "error", err)
		return
	}
	uc.notifyChanged(ctx, rel, "pull request processing aborted")
}

// notifyChanged fires the refresh signal; delivery failure is logged, never
// fatal to the transition
func (uc *releaseUseCase) notifyChanged(ctx context.Context, rel *model.Release, message string) {
	if err := uc.notifier.RecordChanged(ctx, "Release", rel.ID, message); err != nil {
		ctxlog.From(ctx).Warn("Failed to notify record change",
			"release", rel.ID, "error", err)
	}
}

func versionFilePath(template, repoName string) string {
	return strings.ReplaceAll(template, "{repo}", repoName)
}
