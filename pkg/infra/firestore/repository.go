package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
)

const (
	releaseCollection = "releases"
	pullCollection    = "pull_requests"
)

// Repository persists Release and PullRequest records in Firestore
type Repository struct {
	client *firestore.Client
}

// New connects to Firestore in the given project
func New(ctx context.Context, projectID string) (*Repository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Firestore client",
			goerr.V("project_id", projectID))
	}
	return &Repository{client: client}, nil
}

// Close releases the underlying client
func (r *Repository) Close() error {
	return r.client.Close()
}

// Releases returns the ReleaseRepository view
func (r *Repository) Releases() interfaces.ReleaseRepository {
	return &releaseStore{client: r.client}
}

// PullRequests returns the PullRequestRepository view
func (r *Repository) PullRequests() interfaces.PullRequestRepository {
	return &pullStore{client: r.client}
}

type releaseStore struct {
	client *firestore.Client
}

func (s *releaseStore) Create(ctx context.Context, rel *model.Release) error {
	_, err := s.client.Collection(releaseCollection).Doc(rel.ID).Create(ctx, rel)
	if status.Code(err) == codes.AlreadyExists {
		return goerr.Wrap(err, "release already exists",
			goerr.T(types.TagDuplicateEntry), goerr.V("id", rel.ID))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to create release", goerr.V("id", rel.ID))
	}
	return nil
}

func (s *releaseStore) Get(ctx context.Context, id string) (*model.Release, error) {
	doc, err := s.client.Collection(releaseCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(err, "release not found",
			goerr.T(types.TagNotFound), goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get release", goerr.V("id", id))
	}

	var rel model.Release
	if err := doc.DataTo(&rel); err != nil {
		return nil, goerr.Wrap(err, "failed to decode release", goerr.V("id", id))
	}
	return &rel, nil
}

func (s *releaseStore) Update(ctx context.Context, rel *model.Release) error {
	_, err := s.client.Collection(releaseCollection).Doc(rel.ID).Set(ctx, rel)
	if err != nil {
		return goerr.Wrap(err, "failed to update release", goerr.V("id", rel.ID))
	}
	return nil
}

type pullStore struct {
	client *firestore.Client
}

func (s *pullStore) Create(ctx context.Context, pr *model.PullRequest) error {
	dup, err := s.ExistsByLink(ctx, pr.Link)
	if err != nil {
		return err
	}
	if dup {
		return goerr.New("another pull request with the same link already exists",
			goerr.T(types.TagDuplicateEntry), goerr.V("link", pr.Link))
	}

	_, err = s.client.Collection(pullCollection).Doc(pr.ID).Create(ctx, pr)
	if status.Code(err) == codes.AlreadyExists {
		return goerr.Wrap(err, "pull request already exists",
			goerr.T(types.TagDuplicateEntry), goerr.V("id", pr.ID))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to create pull request", goerr.V("id", pr.ID))
	}
	return nil
}

func (s *pullStore) Get(ctx context.Context, id string) (*model.PullRequest, error) {
	doc, err := s.client.Collection(pullCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(err, "pull request not found",
			goerr.T(types.TagNotFound), goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get pull request", goerr.V("id", id))
	}

	var pr model.PullRequest
	if err := doc.DataTo(&pr); err != nil {
		return nil, goerr.Wrap(err, "failed to decode pull request", goerr.V("id", id))
	}
	return &pr, nil
}

func (s *pullStore) Update(ctx context.Context, pr *model.PullRequest) error {
	_, err := s.client.Collection(pullCollection).Doc(pr.ID).Set(ctx, pr)
	if err != nil {
		return goerr.Wrap(err, "failed to update pull request", goerr.V("id", pr.ID))
	}
	return nil
}

func (s *pullStore) ListByRelease(ctx context.Context, releaseID string) ([]*model.PullRequest, error) {
	iter := s.client.Collection(pullCollection).
		Where("ReleaseID", "==", releaseID).
		Documents(ctx)
	defer iter.Stop()

	var out []*model.PullRequest
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list pull requests",
				goerr.V("release_id", releaseID))
		}

		var pr model.PullRequest
		if err := doc.DataTo(&pr); err != nil {
			return nil, goerr.Wrap(err, "failed to decode pull request")
		}
		out = append(out, &pr)
	}
	return out, nil
}

func (s *pullStore) ExistsByLink(ctx context.Context, link string) (bool, error) {
	iter := s.client.Collection(pullCollection).
		Where("Link", "==", link).
		Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return false, nil
		}
		if err != nil {
			return false, goerr.Wrap(err, "failed to check duplicate link", goerr.V("link", link))
		}

		var pr model.PullRequest
		if err := doc.DataTo(&pr); err != nil {
			return false, goerr.Wrap(err, "failed to decode pull request")
		}
		if pr.DocState != model.DocCancelled {
			return true, nil
		}
	}
}

func (s *pullStore) AnyEditable(ctx context.Context, releaseID string) (bool, error) {
	return s.anyMatching(ctx, releaseID, "DocState", string(model.DocEditable))
}

func (s *pullStore) AnyFailed(ctx context.Context, releaseID string) (bool, error) {
	return s.anyMatching(ctx, releaseID, "Status", string(model.TestFailed))
}

func (s *pullStore) anyMatching(ctx context.Context, releaseID, field, value string) (bool, error) {
	iter := s.client.Collection(pullCollection).
		Where("ReleaseID", "==", releaseID).
		Where(field, "==", value).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to query pull requests",
			goerr.V("release_id", releaseID), goerr.V("field", field))
	}
	return true, nil
}
