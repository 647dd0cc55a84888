package github

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2"

	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
)

type client struct {
	githubClient *github.Client
}

// NewClient creates a GitBackend speaking the GitHub REST API, authenticated
// with a bearer token. The token is held by the underlying transport and is
// never logged.
func NewClient(token string) interfaces.GitBackend {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(token)})
	tc := oauth2.NewClient(context.Background(), ts)

	return &client{githubClient: github.NewClient(tc)}
}

// NewClientWithHTTP creates a GitBackend on top of a caller-supplied HTTP
// client. Used by tests to point at a stub server.
func NewClientWithHTTP(httpClient *http.Client, baseURL string) (interfaces.GitBackend, error) {
	gh, err := github.NewClient(httpClient).WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to set GitHub base URL")
	}
	return &client{githubClient: gh}, nil
}

// BranchExists checks branch existence; a 404 is a clean "no"
func (c *client) BranchExists(ctx context.Context, ref model.GitRef, branch string) (bool, error) {
	_, resp, err := c.githubClient.Repositories.GetBranch(ctx, ref.Owner, ref.Name, branch, 3)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, wrapAPIError(err, "failed to get branch",
			goerr.V("branch", branch), goerr.V("repo", ref.Path()))
	}
	return true, nil
}

// ListBranches returns all branch names of the repository
func (c *client) ListBranches(ctx context.Context, ref model.GitRef) ([]string, error) {
	var names []string
	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}

	for {
		branches, resp, err := c.githubClient.Repositories.ListBranches(ctx, ref.Owner, ref.Name, opts)
		if err != nil {
			return nil, wrapAPIError(err, "failed to list branches", goerr.V("repo", ref.Path()))
		}
		for _, b := range branches {
			names = append(names, b.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// LatestTagOn pairs the branch head SHA with the tag list, the same way the
// matching-refs and tags endpoints are combined manually. Returns "" when the
// head carries no tag.
func (c *client) LatestTagOn(ctx context.Context, ref model.GitRef, branch string) (string, error) {
	refs, _, err := c.githubClient.Git.ListMatchingRefs(ctx, ref.Owner, ref.Name, &github.ReferenceListOptions{
		Ref: "heads/" + branch,
	})
	if err != nil {
		return "", wrapAPIError(err, "failed to list matching refs",
			goerr.V("branch", branch), goerr.V("repo", ref.Path()))
	}

	var headSHA string
	for _, r := range refs {
		if r.GetRef() == "refs/heads/"+branch {
			headSHA = r.GetObject().GetSHA()
			break
		}
	}
	if headSHA == "" {
		return "", nil
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		tags, resp, err := c.githubClient.Repositories.ListTags(ctx, ref.Owner, ref.Name, opts)
		if err != nil {
			return "", wrapAPIError(err, "failed to list tags", goerr.V("repo", ref.Path()))
		}
		for _, tag := range tags {
			if tag.GetCommit().GetSHA() == headSHA {
				return tag.GetName(), nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return "", nil
}

// CompareBranches returns the one-line messages of commits on head that are
// not on base, in the order the compare endpoint reports them
func (c *client) CompareBranches(ctx context.Context, ref model.GitRef, base, head string) ([]string, error) {
	var messages []string
	opts := &github.ListOptions{PerPage: 250}

	for {
		cmp, resp, err := c.githubClient.Repositories.CompareCommits(ctx, ref.Owner, ref.Name, base, head, opts)
		if err != nil {
			return nil, wrapAPIError(err, "failed to compare branches",
				goerr.V("base", base), goerr.V("head", head), goerr.V("repo", ref.Path()))
		}
		for _, commit := range cmp.Commits {
			msg := commit.GetCommit().GetMessage()
			if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
				msg = msg[:idx]
			}
			messages = append(messages, msg)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return messages, nil
}

// GetPullRequest fetches title and body of one pull request
func (c *client) GetPullRequest(ctx context.Context, ref model.GitRef, number string) (string, string, error) {
	n, err := strconv.Atoi(number)
	if err != nil {
		return "", "", goerr.Wrap(err, "invalid pull request number",
			goerr.T(types.TagValidation), goerr.V("number", number))
	}

	pr, _, err := c.githubClient.PullRequests.Get(ctx, ref.Owner, ref.Name, n)
	if err != nil {
		return "", "", wrapAPIError(err, "failed to get pull request",
			goerr.V("number", number), goerr.V("repo", ref.Path()))
	}

	return pr.GetTitle(), pr.GetBody(), nil
}

// ListOpenPullRequests returns numbers of open PRs targeting base
func (c *client) ListOpenPullRequests(ctx context.Context, ref model.GitRef, base string) ([]int, error) {
	var numbers []int
	opts := &github.PullRequestListOptions{
		State:       "open",
		Base:        base,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		pulls, resp, err := c.githubClient.PullRequests.List(ctx, ref.Owner, ref.Name, opts)
		if err != nil {
			return nil, wrapAPIError(err, "failed to list open pull requests",
				goerr.V("base", base), goerr.V("repo", ref.Path()))
		}
		for _, pr := range pulls {
			numbers = append(numbers, pr.GetNumber())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return numbers, nil
}

// CreatePullRequest opens a PR merging head into base
func (c *client) CreatePullRequest(ctx context.Context, ref model.GitRef, title, body, head, base string) (string, error) {
	pr, _, err := c.githubClient.PullRequests.Create(ctx, ref.Owner, ref.Name, &github.NewPullRequest{
		Title:               github.Ptr(title),
		Body:                github.Ptr(body),
		Head:                github.Ptr(head),
		Base:                github.Ptr(base),
		MaintainerCanModify: github.Ptr(true),
	})
	if err != nil {
		return "", wrapAPIError(err, "failed to create pull request",
			goerr.V("head", head), goerr.V("base", base), goerr.V("repo", ref.Path()))
	}

	return pr.GetHTMLURL(), nil
}

// GetFileContent reads a file at the head of a branch
func (c *client) GetFileContent(ctx context.Context, ref model.GitRef, path, branch string) (string, error) {
	file, _, _, err := c.githubClient.Repositories.GetContents(ctx, ref.Owner, ref.Name, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return "", wrapAPIError(err, "failed to get file content",
			goerr.V("path", path), goerr.V("branch", branch), goerr.V("repo", ref.Path()))
	}
	if file == nil {
		return "", goerr.New("path is a directory, not a file",
			goerr.T(types.TagValidation), goerr.V("path", path))
	}

	content, err := file.GetContent()
	if err != nil {
		return "", goerr.Wrap(err, "failed to decode file content",
			goerr.T(types.TagUpstreamFetch), goerr.V("path", path))
	}

	return content, nil
}

// UpdateFile replaces a file's content on a branch. The blob SHA is re-read
// immediately before the update.
func (c *client) UpdateFile(ctx context.Context, ref model.GitRef, path, branch, message, content string, author model.CommitAuthor) error {
	file, _, _, err := c.githubClient.Repositories.GetContents(ctx, ref.Owner, ref.Name, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return wrapAPIError(err, "failed to get file for update",
			goerr.V("path", path), goerr.V("branch", branch), goerr.V("repo", ref.Path()))
	}

	_, _, err = c.githubClient.Repositories.UpdateFile(ctx, ref.Owner, ref.Name, path,
		&github.RepositoryContentFileOptions{
			Message: github.Ptr(message),
			Content: []byte(content),
			SHA:     github.Ptr(file.GetSHA()),
			Branch:  github.Ptr(branch),
			Author: &github.CommitAuthor{
				Name:  github.Ptr(author.Name),
				Email: github.Ptr(author.Email),
			},
		})
	if err != nil {
		return wrapAPIError(err, "failed to update file",
			goerr.V("path", path), goerr.V("branch", branch), goerr.V("repo", ref.Path()))
	}

	return nil
}

// CreateDraftRelease creates an unpublished release
func (c *client) CreateDraftRelease(ctx context.Context, ref model.GitRef, tagName, targetBranch, name, body string) (string, error) {
	rel, _, err := c.githubClient.Repositories.CreateRelease(ctx, ref.Owner, ref.Name, &github.RepositoryRelease{
		TagName:         github.Ptr(tagName),
		TargetCommitish: github.Ptr(targetBranch),
		Name:            github.Ptr(name),
		Body:            github.Ptr(body),
		Draft:           github.Ptr(true),
	})
	if err != nil {
		return "", wrapAPIError(err, "failed to create draft release",
			goerr.V("tag", tagName), goerr.V("repo", ref.Path()))
	}

	return rel.GetHTMLURL(), nil
}

// wrapAPIError surfaces GitHub's own error text verbatim when the response
// body carried one, falling back to the raw HTTP error otherwise
func wrapAPIError(err error, msg string, options ...goerr.Option) error {
	options = append(options, goerr.T(types.TagUpstreamFetch))

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		detail := ghErr.Message
		if len(ghErr.Errors) > 0 && ghErr.Errors[0].Message != "" {
			detail += ": " + ghErr.Errors[0].Message
		}
		if detail != "" {
			options = append(options, goerr.V("github_message", detail))
			return goerr.Wrap(err, msg+": "+detail, options...)
		}
	}

	return goerr.Wrap(err, msg, options...)
}
