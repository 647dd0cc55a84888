package model

// Policy carries the tunable rules of PR discovery and the version bump.
// Defaults mirror long-standing release-team conventions; a TOML policy file
// can override any of them.
type Policy struct {
	// Pull requests whose title starts with one of these prefixes are
	// excluded from release notes entirely
	IgnoreTitlePrefixes []string `toml:"ignore_title_prefixes"`

	// When true, commit messages containing a backport marker contribute no
	// PR numbers at all
	SkipBackports   bool     `toml:"skip_backports"`
	BackportMarkers []string `toml:"backport_markers"`

	// Version file bump. VersionFile may contain "{repo}" which expands to
	// the repository name.
	VersionFile    string `toml:"version_file"`
	VersionPattern string `toml:"version_pattern"`
	VersionLine    string `toml:"version_line"` // replacement, "%s" is the new tag
}

// DefaultPolicy returns the stock policy
func DefaultPolicy() Policy {
	return Policy{
		IgnoreTitlePrefixes: []string{"chore", "bump"},
		SkipBackports:       false,
		BackportMarkers:     []string{"mergify/bp", "(bp #", "(backport #"},
		VersionFile:         "{repo}/__init__.py",
		VersionPattern:      `__version__ = .*`,
		VersionLine:         "__version__ = '%s'",
	}
}

// IgnoresTitle reports whether a PR title is excluded by prefix
func (p Policy) IgnoresTitle(title string) bool {
	for _, prefix := range p.IgnoreTitlePrefixes {
		if len(title) >= len(prefix) && title[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
