package model

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/frappe/release/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// ReleaseType selects how the next version is derived from the latest tag
type ReleaseType string

const (
	ReleaseTypeMajor ReleaseType = "Major"
	ReleaseTypeMinor ReleaseType = "Minor"
	ReleaseTypePatch ReleaseType = "Patch"
	// ReleaseTypeBeta increments the numeric prerelease suffix of the current
	// tag, preserving the base version and prerelease label
	ReleaseTypeBeta ReleaseType = "Beta"
)

// PlanNextVersion computes the next version string from the latest tag on the
// stable branch. A leading "v" on the tag is accepted and stripped. The result
// never carries a "v" prefix; callers add one where the hosting API wants it.
//
// Deterministic: same (tag, releaseType) always yields the same output.
func PlanNextVersion(latestTag string, releaseType ReleaseType) (string, error) {
	if latestTag == "" {
		return "", goerr.New("no tag found on stable branch",
			goerr.T(types.TagNoTagFound))
	}

	ver, err := semver.NewVersion(strings.TrimPrefix(latestTag, "v"))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse tag as semantic version",
			goerr.T(types.TagValidation), goerr.V("tag", latestTag))
	}

	switch releaseType {
	case ReleaseTypeMajor:
		next := ver.IncMajor()
		return next.String(), nil
	case ReleaseTypeMinor:
		next := ver.IncMinor()
		return next.String(), nil
	case ReleaseTypePatch:
		next := ver.IncPatch()
		return next.String(), nil
	default:
		return nextPrerelease(ver)
	}
}

// nextPrerelease bumps the numeric suffix of the prerelease label, e.g.
// "5.0.0-beta.3" -> "5.0.0-beta.4"
func nextPrerelease(ver *semver.Version) (string, error) {
	pre := ver.Prerelease()
	if pre == "" {
		return "", goerr.New("tag has no prerelease component to increment",
			goerr.T(types.TagValidation), goerr.V("tag", ver.String()))
	}

	parts := strings.Split(pre, ".")
	last := parts[len(parts)-1]
	n, err := strconv.Atoi(last)
	if err != nil {
		return "", goerr.New("prerelease suffix is not numeric",
			goerr.T(types.TagValidation), goerr.V("prerelease", pre))
	}

	parts[len(parts)-1] = strconv.Itoa(n + 1)
	next, err := ver.SetPrerelease(strings.Join(parts, "."))
	if err != nil {
		return "", goerr.Wrap(err, "failed to set prerelease",
			goerr.V("prerelease", pre))
	}

	return next.String(), nil
}
