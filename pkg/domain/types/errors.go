package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures so that callers (HTTP layer, CLI) can map them
// to user-facing behavior without string matching.
var (
	// TagValidation marks bad input: malformed git URL, unsupported host,
	// missing branch
	TagValidation = goerr.NewTag("validation")

	// TagNoTagFound marks version planning attempted against a stable branch
	// that has no tag
	TagNoTagFound = goerr.NewTag("no_tag_found")

	// TagUpstreamFetch marks a failed required call to the hosting API
	TagUpstreamFetch = goerr.NewTag("upstream_fetch")

	// TagPrecondition marks a submission-gate failure; the message lists the
	// unmet conditions
	TagPrecondition = goerr.NewTag("precondition")

	// TagDuplicateEntry marks creation of a record that already exists
	TagDuplicateEntry = goerr.NewTag("duplicate_entry")

	// TagNotFound marks a store lookup miss
	TagNotFound = goerr.NewTag("not_found")
)

// IsValidation reports whether err carries TagValidation
func IsValidation(err error) bool { return goerr.HasTag(err, TagValidation) }

// IsNoTagFound reports whether err carries TagNoTagFound
func IsNoTagFound(err error) bool { return goerr.HasTag(err, TagNoTagFound) }

// IsUpstreamFetch reports whether err carries TagUpstreamFetch
func IsUpstreamFetch(err error) bool { return goerr.HasTag(err, TagUpstreamFetch) }

// IsPrecondition reports whether err carries TagPrecondition
func IsPrecondition(err error) bool { return goerr.HasTag(err, TagPrecondition) }

// IsDuplicateEntry reports whether err carries TagDuplicateEntry
func IsDuplicateEntry(err error) bool { return goerr.HasTag(err, TagDuplicateEntry) }

// IsNotFound reports whether err carries TagNotFound
func IsNotFound(err error) bool { return goerr.HasTag(err, TagNotFound) }
