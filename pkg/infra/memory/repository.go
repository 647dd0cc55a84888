package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
)

// Repository is an in-memory store for Release and PullRequest records.
// It backs tests and local runs; production deploys use the Firestore store.
type Repository struct {
	mu       sync.RWMutex
	releases map[string]model.Release
	pulls    map[string]model.PullRequest
}

// New creates an empty in-memory repository
func New() *Repository {
	return &Repository{
		releases: make(map[string]model.Release),
		pulls:    make(map[string]model.PullRequest),
	}
}

// Releases returns the ReleaseRepository view
func (r *Repository) Releases() interfaces.ReleaseRepository { return (*releaseStore)(r) }

// PullRequests returns the PullRequestRepository view
func (r *Repository) PullRequests() interfaces.PullRequestRepository { return (*pullStore)(r) }

type releaseStore Repository

func (s *releaseStore) Create(ctx context.Context, rel *model.Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.releases[rel.ID]; ok {
		return goerr.New("release already exists",
			goerr.T(types.TagDuplicateEntry), goerr.V("id", rel.ID))
	}
	s.releases[rel.ID] = *rel
	return nil
}

func (s *releaseStore) Get(ctx context.Context, id string) (*model.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.releases[id]
	if !ok {
		return nil, goerr.New("release not found",
			goerr.T(types.TagNotFound), goerr.V("id", id))
	}
	return &rel, nil
}

func (s *releaseStore) Update(ctx context.Context, rel *model.Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.releases[rel.ID]; !ok {
		return goerr.New("release not found",
			goerr.T(types.TagNotFound), goerr.V("id", rel.ID))
	}
	s.releases[rel.ID] = *rel
	return nil
}

type pullStore Repository

func (s *pullStore) Create(ctx context.Context, pr *model.PullRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pulls[pr.ID]; ok {
		return goerr.New("pull request already exists",
			goerr.T(types.TagDuplicateEntry), goerr.V("id", pr.ID))
	}
	for _, existing := range s.pulls {
		if existing.Link == pr.Link && existing.DocState != model.DocCancelled {
			return goerr.New("another pull request with the same link already exists",
				goerr.T(types.TagDuplicateEntry), goerr.V("link", pr.Link))
		}
	}
	s.pulls[pr.ID] = *pr
	return nil
}

func (s *pullStore) Get(ctx context.Context, id string) (*model.PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pr, ok := s.pulls[id]
	if !ok {
		return nil, goerr.New("pull request not found",
			goerr.T(types.TagNotFound), goerr.V("id", id))
	}
	return &pr, nil
}

func (s *pullStore) Update(ctx context.Context, pr *model.PullRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pulls[pr.ID]; !ok {
		return goerr.New("pull request not found",
			goerr.T(types.TagNotFound), goerr.V("id", pr.ID))
	}
	s.pulls[pr.ID] = *pr
	return nil
}

func (s *pullStore) ListByRelease(ctx context.Context, releaseID string) ([]*model.PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.PullRequest
	for _, pr := range s.pulls {
		if pr.ReleaseID == releaseID {
			clone := pr
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *pullStore) ExistsByLink(ctx context.Context, link string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pr := range s.pulls {
		if pr.Link == link && pr.DocState != model.DocCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (s *pullStore) AnyEditable(ctx context.Context, releaseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pr := range s.pulls {
		if pr.ReleaseID == releaseID && pr.DocState == model.DocEditable {
			return true, nil
		}
	}
	return false, nil
}

func (s *pullStore) AnyFailed(ctx context.Context, releaseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pr := range s.pulls {
		if pr.ReleaseID == releaseID && pr.Status == model.TestFailed {
			return true, nil
		}
	}
	return false, nil
}
