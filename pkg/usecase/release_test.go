package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
	"github.com/frappe/release/pkg/infra/memory"
	"github.com/frappe/release/pkg/usecase"
)

// mockBackend is a hand-rolled GitBackend with per-method function fields
// and call counters
type mockBackend struct {
	branchExistsFunc  func(branch string) (bool, error)
	latestTagFunc     func(branch string) (string, error)
	compareFunc       func(base, head string) ([]string, error)
	getPullFunc       func(number string) (string, string, error)
	listOpenFunc      func(base string) ([]int, error)
	createPullFunc    func(title, body, head, base string) (string, error)
	getFileFunc       func(path, branch string) (string, error)
	updateFileFunc    func(path, branch, message, content string) error
	createReleaseFunc func(tagName, target, name, body string) (string, error)

	getPullCalls       []string
	createPullCalls    int
	updateFileCalls    int
	createReleaseCalls int
	lastReleaseBody    string
}

func (m *mockBackend) BranchExists(ctx context.Context, ref model.GitRef, branch string) (bool, error) {
	if m.branchExistsFunc != nil {
		return m.branchExistsFunc(branch)
	}
	return true, nil
}

func (m *mockBackend) ListBranches(ctx context.Context, ref model.GitRef) ([]string, error) {
	return []string{"version-13", "version-13-beta"}, nil
}

func (m *mockBackend) LatestTagOn(ctx context.Context, ref model.GitRef, branch string) (string, error) {
	if m.latestTagFunc != nil {
		return m.latestTagFunc(branch)
	}
	return "v1.2.0", nil
}

func (m *mockBackend) CompareBranches(ctx context.Context, ref model.GitRef, base, head string) ([]string, error) {
	if m.compareFunc != nil {
		return m.compareFunc(base, head)
	}
	return nil, nil
}

func (m *mockBackend) GetPullRequest(ctx context.Context, ref model.GitRef, number string) (string, string, error) {
	m.getPullCalls = append(m.getPullCalls, number)
	if m.getPullFunc != nil {
		return m.getPullFunc(number)
	}
	return "feat: change " + number, "body of " + number, nil
}

func (m *mockBackend) ListOpenPullRequests(ctx context.Context, ref model.GitRef, base string) ([]int, error) {
	if m.listOpenFunc != nil {
		return m.listOpenFunc(base)
	}
	return nil, nil
}

func (m *mockBackend) CreatePullRequest(ctx context.Context, ref model.GitRef, title, body, head, base string) (string, error) {
	m.createPullCalls++
	if m.createPullFunc != nil {
		return m.createPullFunc(title, body, head, base)
	}
	return "https://github.com/frappe/frappe/pull/999", nil
}

func (m *mockBackend) GetFileContent(ctx context.Context, ref model.GitRef, path, branch string) (string, error) {
	if m.getFileFunc != nil {
		return m.getFileFunc(path, branch)
	}
	return "__version__ = '1.2.0'\n", nil
}

func (m *mockBackend) UpdateFile(ctx context.Context, ref model.GitRef, path, branch, message, content string, author model.CommitAuthor) error {
	m.updateFileCalls++
	if m.updateFileFunc != nil {
		return m.updateFileFunc(path, branch, message, content)
	}
	return nil
}

func (m *mockBackend) CreateDraftRelease(ctx context.Context, ref model.GitRef, tagName, target, name, body string) (string, error) {
	m.createReleaseCalls++
	m.lastReleaseBody = body
	if m.createReleaseFunc != nil {
		return m.createReleaseFunc(tagName, target, name, body)
	}
	return "https://github.com/frappe/frappe/releases/tag/" + tagName, nil
}

// mockNotifier records every refresh signal
type mockNotifier struct {
	calls []string
}

func (m *mockNotifier) RecordChanged(ctx context.Context, kind, id, message string) error {
	m.calls = append(m.calls, fmt.Sprintf("%s/%s: %s", kind, id, message))
	return nil
}

type fixture struct {
	backend  *mockBackend
	repo     *memory.Repository
	notifier *mockNotifier
	uc       interfaces.ReleaseUseCase
}

func newFixture(t *testing.T, backend *mockBackend) *fixture {
	t.Helper()

	repo := memory.New()
	notifier := &mockNotifier{}
	seq := 0

	uc := usecase.NewRelease(
		backend,
		repo.Releases(),
		repo.PullRequests(),
		notifier,
		model.DefaultPolicy(),
		usecase.WithSyncDispatch(),
		usecase.WithClock(func() time.Time {
			return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		}),
		usecase.WithIDSource(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)

	return &fixture{backend: backend, repo: repo, notifier: notifier, uc: uc}
}

func (f *fixture) createRelease(t *testing.T) *model.Release {
	t.Helper()
	rel, err := f.uc.Create(context.Background(), "https://github.com/frappe/frappe",
		"version-13", "version-13-beta", model.ReleaseTypePatch)
	gt.NoError(t, err)
	return rel
}

func TestRelease_Validate(t *testing.T) {
	t.Run("computes tag and release name from latest stable tag", func(t *testing.T) {
		f := newFixture(t, &mockBackend{})
		rel := f.createRelease(t)

		got, err := f.uc.Validate(context.Background(), rel.ID)
		gt.NoError(t, err)
		gt.Value(t, got.TagName).Equal("1.2.1")
		gt.Value(t, got.ReleaseName).Equal("Release 1.2.1")
	})

	t.Run("missing branch fails validation", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			branchExistsFunc: func(branch string) (bool, error) {
				return branch != "version-13-beta", nil
			},
		})
		rel := f.createRelease(t)

		_, err := f.uc.Validate(context.Background(), rel.ID)
		gt.Error(t, err)
		gt.True(t, types.IsValidation(err))
		gt.True(t, strings.Contains(err.Error(), "version-13-beta"))
	})

	t.Run("no tag on stable surfaces NoTagFound", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			latestTagFunc: func(branch string) (string, error) { return "", nil },
		})
		rel := f.createRelease(t)

		_, err := f.uc.Validate(context.Background(), rel.ID)
		gt.Error(t, err)
		gt.True(t, types.IsNoTagFound(err))
	})

	t.Run("existing release info is kept", func(t *testing.T) {
		f := newFixture(t, &mockBackend{})
		rel := f.createRelease(t)

		_, err := f.uc.Validate(context.Background(), rel.ID)
		gt.NoError(t, err)

		// A new tag upstream must not silently change a computed tag
		f.backend.latestTagFunc = func(branch string) (string, error) { return "v9.9.9", nil }
		got, err := f.uc.Validate(context.Background(), rel.ID)
		gt.NoError(t, err)
		gt.Value(t, got.TagName).Equal("1.2.1")
	})
}

func TestRelease_ResetReleaseInfo(t *testing.T) {
	f := newFixture(t, &mockBackend{})
	rel := f.createRelease(t)

	_, err := f.uc.Validate(context.Background(), rel.ID)
	gt.NoError(t, err)

	f.backend.latestTagFunc = func(branch string) (string, error) { return "v2.0.0", nil }
	got, err := f.uc.ResetReleaseInfo(context.Background(), rel.ID)
	gt.NoError(t, err)
	gt.Value(t, got.TagName).Equal("2.0.1")
}

func TestRelease_ProcessPullRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("creates records and advances to Pre Release Testing", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			compareFunc: func(base, head string) ([]string, error) {
				return []string{"feat: add X (#21)", "fix: bp (bp #21)"}, nil
			},
		})
		rel := f.createRelease(t)

		gt.NoError(t, f.uc.ProcessPullRequests(ctx, rel.ID))

		got, err := f.uc.Get(ctx, rel.ID)
		gt.NoError(t, err)
		gt.Value(t, got.Status).Equal(model.StatusPreReleaseTesting)

		// The "(bp #21" annotation must not create a second record
		pulls, err := f.repo.PullRequests().ListByRelease(ctx, rel.ID)
		gt.NoError(t, err)
		gt.Value(t, len(pulls)).Equal(1)
		gt.Value(t, pulls[0].Number).Equal("21")
		gt.Value(t, pulls[0].Link).Equal("https://github.com/frappe/frappe/pull/21")
		gt.Value(t, pulls[0].Description).Equal("body of 21")
	})

	t.Run("repeated runs are idempotent", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			compareFunc: func(base, head string) ([]string, error) {
				return []string{"feat: add X (#21)"}, nil
			},
		})
		rel := f.createRelease(t)

		gt.NoError(t, f.uc.ProcessPullRequests(ctx, rel.ID))
		gt.NoError(t, f.uc.ProcessPullRequests(ctx, rel.ID))

		pulls, err := f.repo.PullRequests().ListByRelease(ctx, rel.ID)
		gt.NoError(t, err)
		gt.Value(t, len(pulls)).Equal(1)
	})

	t.Run("ignored title prefixes are excluded entirely", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			compareFunc: func(base, head string) ([]string, error) {
				return []string{"feat: add X (#21)", "chore: bump deps (#22)"}, nil
			},
			getPullFunc: func(number string) (string, string, error) {
				if number == "22" {
					return "chore: bump deps", "", nil
				}
				return "feat: add X", "", nil
			},
		})
		rel := f.createRelease(t)

		gt.NoError(t, f.uc.ProcessPullRequests(ctx, rel.ID))

		pulls, err := f.repo.PullRequests().ListByRelease(ctx, rel.ID)
		gt.NoError(t, err)
		gt.Value(t, len(pulls)).Equal(1)
		gt.Value(t, pulls[0].Number).Equal("21")
	})

	t.Run("one failing fetch does not abort the batch", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			compareFunc: func(base, head string) ([]string, error) {
				return []string{"merge: combine (#7) and (#8)"}, nil
			},
			getPullFunc: func(number string) (string, string, error) {
				if number == "7" {
					return "", "", errors.New("boom")
				}
				return "feat: ok", "", nil
			},
		})
		rel := f.createRelease(t)

		gt.NoError(t, f.uc.ProcessPullRequests(ctx, rel.ID))

		pulls, err := f.repo.PullRequests().ListByRelease(ctx, rel.ID)
		gt.NoError(t, err)
		gt.Value(t, len(pulls)).Equal(1)
		gt.Value(t, pulls[0].Number).Equal("8")
	})

	t.Run("notifies on status transitions", func(t *testing.T) {
		f := newFixture(t, &mockBackend{})
		rel := f.createRelease(t)

		gt.NoError(t, f.uc.ProcessPullRequests(ctx, rel.ID))
		gt.Value(t, len(f.notifier.calls)).Equal(2) // claim + completion
	})
}

func TestRelease_CacheInvalidation(t *testing.T) {
	ctx := context.Background()

	commits := []string{"feat: a (#10)", "feat: b (#11)"}
	f := newFixture(t, &mockBackend{
		compareFunc: func(base, head string) ([]string, error) {
			return commits, nil
		},
		getPullFunc: func(number string) (string, string, error) {
			return "feat: change " + number, "", nil
		},
	})
	rel := f.createRelease(t)

	_, err := f.uc.ComposeNotes(ctx, rel.ID, model.NotesMarkdown)
	gt.NoError(t, err)
	gt.Value(t, len(f.backend.getPullCalls)).Equal(2)

	// Unchanged set: everything served from cache
	_, err = f.uc.ComposeNotes(ctx, rel.ID, model.NotesMarkdown)
	gt.NoError(t, err)
	gt.Value(t, len(f.backend.getPullCalls)).Equal(2)

	// Grown set: full clear, all three re-fetched
	commits = []string{"feat: a (#10)", "feat: b (#11)", "feat: c (#12)"}
	_, err = f.uc.ComposeNotes(ctx, rel.ID, model.NotesMarkdown)
	gt.NoError(t, err)
	gt.Value(t, len(f.backend.getPullCalls)).Equal(5)
}

func TestRelease_ConcurrentComposeNotes(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, &mockBackend{
		compareFunc: func(base, head string) ([]string, error) {
			return []string{"feat: a (#10)", "feat: b (#11)", "feat: c (#12)"}, nil
		},
		getPullFunc: func(number string) (string, string, error) {
			return "feat: change " + number, "", nil
		},
	})
	rel := f.createRelease(t)

	want, err := f.uc.ComposeNotes(ctx, rel.ID, model.NotesMarkdown)
	gt.NoError(t, err)

	// Parallel notes requests against one release must serialize on the
	// cache, not corrupt it
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 16 {
				got, err := f.uc.ComposeNotes(ctx, rel.ID, model.NotesMarkdown)
				gt.NoError(t, err)
				gt.Value(t, got).Equal(want)
			}
		}()
	}
	wg.Wait()
}

func TestRelease_RaisePRForRelease(t *testing.T) {
	ctx := context.Background()
	author := model.CommitAuthor{Name: "Releaser", Email: "releaser@frappe.io"}

	t.Run("creates bump commit and merge PR exactly once", func(t *testing.T) {
		var bumped string
		f := newFixture(t, &mockBackend{
			updateFileFunc: func(path, branch, message, content string) error {
				bumped = content
				gt.Value(t, path).Equal("frappe/__init__.py")
				gt.Value(t, branch).Equal("version-13-beta")
				gt.Value(t, message).Equal("chore: Bump to v1.2.1")
				return nil
			},
		})
		rel := f.createRelease(t)
		_, err := f.uc.Validate(ctx, rel.ID)
		gt.NoError(t, err)

		got, err := f.uc.RaisePRForRelease(ctx, rel.ID, author)
		gt.NoError(t, err)
		gt.True(t, got.BumpCommitCreated)
		gt.True(t, got.RaisedPRForRelease)
		gt.Value(t, bumped).Equal("__version__ = '1.2.1'\n")

		// Second invocation is a no-op on both side effects
		got, err = f.uc.RaisePRForRelease(ctx, rel.ID, author)
		gt.NoError(t, err)
		gt.True(t, got.BumpCommitCreated)
		gt.True(t, got.RaisedPRForRelease)
		gt.Value(t, f.backend.updateFileCalls).Equal(1)
		gt.Value(t, f.backend.createPullCalls).Equal(1)
	})

	t.Run("requires release info", func(t *testing.T) {
		f := newFixture(t, &mockBackend{})
		rel := f.createRelease(t)

		_, err := f.uc.RaisePRForRelease(ctx, rel.ID, author)
		gt.Error(t, err)
		gt.True(t, types.IsPrecondition(err))
	})

	t.Run("surfaces API rejection text and keeps flag unset", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			createPullFunc: func(title, body, head, base string) (string, error) {
				return "", errors.New("Validation Failed: No commits between version-13 and version-13-beta")
			},
		})
		rel := f.createRelease(t)
		_, err := f.uc.Validate(ctx, rel.ID)
		gt.NoError(t, err)

		_, err = f.uc.RaisePRForRelease(ctx, rel.ID, author)
		gt.Error(t, err)
		gt.True(t, strings.Contains(err.Error(), "No commits between"))

		got, err := f.uc.Get(ctx, rel.ID)
		gt.NoError(t, err)
		gt.True(t, got.BumpCommitCreated)
		gt.True(t, !got.RaisedPRForRelease)
	})
}

func submittableRelease(t *testing.T, f *fixture) *model.Release {
	t.Helper()
	ctx := context.Background()

	rel := f.createRelease(t)
	_, err := f.uc.Validate(ctx, rel.ID)
	gt.NoError(t, err)
	_, err = f.uc.RaisePRForRelease(ctx, rel.ID, model.CommitAuthor{Name: "R", Email: "r@frappe.io"})
	gt.NoError(t, err)

	got, err := f.uc.Get(ctx, rel.ID)
	gt.NoError(t, err)
	got.PassedManualTesting = true
	got.PostedOnDiscuss = true
	got.ReadyForRelease = true
	got.PreReleaseMergedIntoStable = true
	gt.NoError(t, f.repo.Releases().Update(ctx, got))
	return got
}

func TestRelease_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a draft release and locks the record", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			compareFunc: func(base, head string) ([]string, error) {
				return []string{"feat: add X (#21)"}, nil
			},
		})
		rel := submittableRelease(t, f)

		got, err := f.uc.Submit(ctx, rel.ID)
		gt.NoError(t, err)
		gt.Value(t, got.Status).Equal(model.StatusReady)
		gt.Value(t, got.DocState).Equal(model.DocSubmitted)
		gt.Value(t, f.backend.createReleaseCalls).Equal(1)
		gt.True(t, strings.Contains(f.backend.lastReleaseBody, "# Version 1.2.1 Release Notes"))
		gt.True(t, strings.Contains(f.backend.lastReleaseBody, "feat: change 21"))
		gt.True(t, !strings.Contains(f.backend.lastReleaseBody, "#ALERT"))
	})

	t.Run("unmet checkbox names the condition and keeps status", func(t *testing.T) {
		f := newFixture(t, &mockBackend{})
		rel := submittableRelease(t, f)
		rel.PostedOnDiscuss = false
		gt.NoError(t, f.repo.Releases().Update(ctx, rel))

		_, err := f.uc.Submit(ctx, rel.ID)
		gt.Error(t, err)
		gt.True(t, types.IsPrecondition(err))
		gt.True(t, strings.Contains(err.Error(), "Posted on Discuss"))

		got, err := f.uc.Get(ctx, rel.ID)
		gt.NoError(t, err)
		gt.Value(t, got.Status).Equal(model.StatusDraft)
		gt.Value(t, got.DocState).Equal(model.DocEditable)
		gt.Value(t, f.backend.createReleaseCalls).Equal(0)
	})

	t.Run("unconfirmed merge into stable blocks the draft release", func(t *testing.T) {
		f := newFixture(t, &mockBackend{})
		rel := submittableRelease(t, f)
		rel.PreReleaseMergedIntoStable = false
		gt.NoError(t, f.repo.Releases().Update(ctx, rel))

		_, err := f.uc.Submit(ctx, rel.ID)
		gt.Error(t, err)
		gt.True(t, types.IsPrecondition(err))
		gt.True(t, strings.Contains(err.Error(), "Pre Release Merged Into Stable Branch"))
		gt.Value(t, f.backend.createReleaseCalls).Equal(0)
	})

	t.Run("open PRs to stable block submission", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			listOpenFunc: func(base string) ([]int, error) { return []int{77}, nil },
		})
		rel := submittableRelease(t, f)

		_, err := f.uc.Submit(ctx, rel.ID)
		gt.Error(t, err)
		gt.True(t, types.IsPrecondition(err))
		gt.True(t, strings.Contains(err.Error(), "open PRs"))
	})

	t.Run("failed pull request blocks submission", func(t *testing.T) {
		f := newFixture(t, &mockBackend{})
		rel := submittableRelease(t, f)

		pr := model.NewPullRequest("pr-failed", rel.ID, model.PullMeta{
			Number: "21", Title: "feat: x", Link: "https://github.com/frappe/frappe/pull/21",
		}, time.Now())
		pr.Status = model.TestFailed
		gt.NoError(t, f.repo.PullRequests().Create(ctx, pr))

		_, err := f.uc.Submit(ctx, rel.ID)
		gt.Error(t, err)
		gt.True(t, types.IsPrecondition(err))
		gt.True(t, strings.Contains(err.Error(), "failed manual testing"))
	})

	t.Run("draft release failure leaves the record editable", func(t *testing.T) {
		f := newFixture(t, &mockBackend{
			createReleaseFunc: func(tagName, target, name, body string) (string, error) {
				return "", errors.New("Validation Failed: tag_name is not well-formed")
			},
		})
		rel := submittableRelease(t, f)

		_, err := f.uc.Submit(ctx, rel.ID)
		gt.Error(t, err)
		gt.True(t, strings.Contains(err.Error(), "tag_name is not well-formed"))

		got, err := f.uc.Get(ctx, rel.ID)
		gt.NoError(t, err)
		gt.Value(t, got.DocState).Equal(model.DocEditable)
	})
}

func TestRelease_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &mockBackend{})
	rel := f.createRelease(t)

	got, err := f.uc.Cancel(ctx, rel.ID)
	gt.NoError(t, err)
	gt.Value(t, got.DocState).Equal(model.DocCancelled)

	// Cancelled releases refuse further lifecycle operations
	_, err = f.uc.Validate(ctx, rel.ID)
	gt.Error(t, err)
	gt.True(t, types.IsPrecondition(err))
}

func TestRelease_OnSiblingsSettled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &mockBackend{})
	rel := f.createRelease(t)

	gt.NoError(t, f.uc.OnSiblingsSettled(ctx, model.SiblingsSettled{ReleaseID: rel.ID}))

	got, err := f.uc.Get(ctx, rel.ID)
	gt.NoError(t, err)
	gt.Value(t, got.Status).Equal(model.StatusReady)
}

func TestRelease_EndToEndScenario(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, &mockBackend{
		latestTagFunc: func(branch string) (string, error) { return "v1.2.0", nil },
		compareFunc: func(base, head string) ([]string, error) {
			return []string{"feat: add X (#21)", "fix: bp (bp #21)"}, nil
		},
		getPullFunc: func(number string) (string, string, error) {
			return "feat: add X", "adds X", nil
		},
	})
	rel := f.createRelease(t)

	got, err := f.uc.Validate(ctx, rel.ID)
	gt.NoError(t, err)
	gt.Value(t, got.TagName).Equal("1.2.1")

	gt.NoError(t, f.uc.ProcessPullRequests(ctx, rel.ID))

	pulls, err := f.repo.PullRequests().ListByRelease(ctx, rel.ID)
	gt.NoError(t, err)
	gt.Value(t, len(pulls)).Equal(1)
	gt.Value(t, pulls[0].Number).Equal("21")

	summary, err := f.uc.ComposeNotes(ctx, rel.ID, model.NotesMarkdown)
	gt.NoError(t, err)
	gt.Value(t, summary).Equal("- feat: add X ([#21](https://github.com/frappe/frappe/pull/21))")
}
