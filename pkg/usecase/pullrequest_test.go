package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
	"github.com/frappe/release/pkg/usecase"
)

type pullFixture struct {
	*fixture
	pullUC interfaces.PullRequestUseCase
	rel    *model.Release
}

func newPullFixture(t *testing.T, backend *mockBackend) *pullFixture {
	t.Helper()
	f := newFixture(t, backend)

	seq := 0
	pullUC := usecase.NewPullRequest(
		backend,
		f.repo.Releases(),
		f.repo.PullRequests(),
		f.uc,
		usecase.WithPullClock(func() time.Time {
			return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		}),
		usecase.WithPullIDSource(func() string {
			seq++
			return "pull-" + string(rune('a'+seq-1))
		}),
	)

	return &pullFixture{fixture: f, pullUC: pullUC, rel: f.createRelease(t)}
}

func (f *pullFixture) addPull(t *testing.T, number string) *model.PullRequest {
	t.Helper()
	pr, err := f.pullUC.Create(context.Background(), f.rel.ID, model.PullMeta{
		Number: number,
		Title:  "feat: change " + number,
		Link:   "https://github.com/frappe/frappe/pull/" + number,
	})
	gt.NoError(t, err)
	return pr
}

func TestPullRequest_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("fills description from the upstream PR body", func(t *testing.T) {
		f := newPullFixture(t, &mockBackend{})
		pr := f.addPull(t, "42")
		gt.Value(t, pr.Description).Equal("body of 42")
		gt.Value(t, pr.Status).Equal(model.TestUntested)
		gt.Value(t, pr.DocState).Equal(model.DocEditable)
	})

	t.Run("duplicate link is a hard error", func(t *testing.T) {
		f := newPullFixture(t, &mockBackend{})
		f.addPull(t, "42")

		_, err := f.pullUC.Create(ctx, f.rel.ID, model.PullMeta{
			Number: "42",
			Title:  "feat: change 42 again",
			Link:   "https://github.com/frappe/frappe/pull/42",
		})
		gt.Error(t, err)
		gt.True(t, types.IsDuplicateEntry(err))
	})

	t.Run("unknown release is rejected", func(t *testing.T) {
		f := newPullFixture(t, &mockBackend{})
		_, err := f.pullUC.Create(ctx, "no-such-release", model.PullMeta{Number: "1"})
		gt.Error(t, err)
		gt.True(t, types.IsNotFound(err))
	})
}

func TestPullRequest_SetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("records the verdict", func(t *testing.T) {
		f := newPullFixture(t, &mockBackend{})
		pr := f.addPull(t, "42")

		got, err := f.pullUC.SetStatus(ctx, pr.ID, model.TestFailed)
		gt.NoError(t, err)
		gt.Value(t, got.Status).Equal(model.TestFailed)
	})

	t.Run("rejects unknown status values", func(t *testing.T) {
		f := newPullFixture(t, &mockBackend{})
		pr := f.addPull(t, "42")

		_, err := f.pullUC.SetStatus(ctx, pr.ID, model.TestStatus("Maybe"))
		gt.Error(t, err)
		gt.True(t, types.IsValidation(err))
	})

	t.Run("description can be replaced while editable", func(t *testing.T) {
		f := newPullFixture(t, &mockBackend{})
		pr := f.addPull(t, "42")

		got, err := f.pullUC.SetDescription(ctx, pr.ID, "fixes a data-loss edge case")
		gt.NoError(t, err)
		gt.Value(t, got.Description).Equal("fixes a data-loss edge case")
	})

	t.Run("rejects submitted records", func(t *testing.T) {
		f := newPullFixture(t, &mockBackend{})
		pr := f.addPull(t, "42")
		_, err := f.pullUC.SetStatus(ctx, pr.ID, model.TestPassed)
		gt.NoError(t, err)
		_, err = f.pullUC.Submit(ctx, pr.ID)
		gt.NoError(t, err)

		_, err = f.pullUC.SetStatus(ctx, pr.ID, model.TestFailed)
		gt.Error(t, err)
		gt.True(t, types.IsPrecondition(err))
	})
}

func TestPullRequest_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a passed verdict", func(t *testing.T) {
		f := newPullFixture(t, &mockBackend{})
		pr := f.addPull(t, "42")

		_, err := f.pullUC.Submit(ctx, pr.ID)
		gt.Error(t, err)
		gt.True(t, types.IsPrecondition(err))
	})

	t.Run("last submission advances the release to Ready", func(t *testing.T) {
		f := newPullFixture(t, &mockBackend{})
		first := f.addPull(t, "42")
		second := f.addPull(t, "43")

		for _, pr := range []*model.PullRequest{first, second} {
			_, err := f.pullUC.SetStatus(ctx, pr.ID, model.TestPassed)
			gt.NoError(t, err)
		}

		_, err := f.pullUC.Submit(ctx, first.ID)
		gt.NoError(t, err)
		rel, err := f.uc.Get(ctx, f.rel.ID)
		gt.NoError(t, err)
		gt.Value(t, rel.Status).Equal(model.StatusDraft) // sibling still editable

		_, err = f.pullUC.Submit(ctx, second.ID)
		gt.NoError(t, err)
		rel, err = f.uc.Get(ctx, f.rel.ID)
		gt.NoError(t, err)
		gt.Value(t, rel.Status).Equal(model.StatusReady)
	})
}
