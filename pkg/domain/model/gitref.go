package model

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/frappe/release/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// GitRef is the structured form of a git hosting URL
type GitRef struct {
	Protocol string // e.g. "https"
	Host     string // e.g. "github.com"
	Owner    string
	Name     string // repository name, ".git" suffix stripped
}

// Path returns the "owner/name" form used in API calls
func (r GitRef) Path() string {
	return r.Owner + "/" + r.Name
}

// scpRemotePattern matches scp-style remotes like "git@github.com:owner/repo"
var scpRemotePattern = regexp.MustCompile(`^([\w.~-]+)@([\w.-]+):(.+)$`)

// ResolveGitRef parses a git hosting URL and validates that it points at the
// supported hosting service. Scheme URLs (https, ssh, git) and scp-style
// remotes ("git@github.com:owner/repo.git", resolved as protocol "ssh") are
// accepted. It is pure and safe to call repeatedly.
func ResolveGitRef(rawURL string) (GitRef, error) {
	u, err := url.Parse(normalizeRemote(rawURL))
	if err != nil {
		return GitRef{}, goerr.Wrap(err, "failed to parse git URL",
			goerr.T(types.TagValidation), goerr.V("url", rawURL))
	}

	if u.Scheme == "" {
		return GitRef{}, goerr.New("missing protocol in git URL",
			goerr.T(types.TagValidation), goerr.V("url", rawURL))
	}

	host := u.Hostname()
	if host != types.SupportedHost {
		return GitRef{}, goerr.New("release only supports GitHub at this point",
			goerr.T(types.TagValidation), goerr.V("host", host))
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return GitRef{}, goerr.New("git URL must contain owner and repository",
			goerr.T(types.TagValidation), goerr.V("url", rawURL))
	}

	return GitRef{
		Protocol: u.Scheme,
		Host:     host,
		Owner:    parts[0],
		Name:     strings.TrimSuffix(parts[1], ".git"),
	}, nil
}

// normalizeRemote rewrites an scp-style remote into an ssh:// URL so that
// net/url can parse it; anything already carrying a scheme passes through
func normalizeRemote(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	if m := scpRemotePattern.FindStringSubmatch(raw); m != nil {
		return "ssh://" + m[1] + "@" + m[2] + "/" + m[3]
	}
	return raw
}
