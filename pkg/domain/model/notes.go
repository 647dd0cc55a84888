package model

import (
	"fmt"
	"strings"
	"time"
)

// NotesFormat selects the rendering of the release summary
type NotesFormat string

const (
	NotesMarkdown NotesFormat = "md"
	NotesCSV      NotesFormat = "csv"
)

// ComposeNotes renders one line per pull request, in the order given. The
// order reflects discovery order (commit recency) and is intentionally not
// sorted.
func ComposeNotes(pulls []PullMeta, format NotesFormat) string {
	lines := make([]string, 0, len(pulls))
	for _, pr := range pulls {
		switch format {
		case NotesCSV:
			lines = append(lines, fmt.Sprintf("%s\tOpen\t\t%s", pr.Title, pr.Link))
		default:
			lines = append(lines, fmt.Sprintf("- %s ([#%s](%s))", pr.Title, pr.Number, pr.Link))
		}
	}
	return strings.Join(lines, "\n")
}

// DraftReleaseBody builds the body of the draft GitHub release. When the bump
// commit was not created, an alert banner reminding the operator to bump the
// version file on stable is prepended.
func DraftReleaseBody(repoName, tagName, summary string, bumpCommitCreated bool) string {
	var sb strings.Builder
	if !bumpCommitCreated {
		fmt.Fprintf(&sb,
			"#ALERT: Update the stable branch with a bump commit to update %s's version before publishing this!\n",
			repoName)
	}
	fmt.Fprintf(&sb, "# Version %s Release Notes\n# Fixes & Enhancements\n# Features\n%s", tagName, summary)
	return sb.String()
}

// ExportFileName returns the timestamped file name used by the notes export
// action, e.g. "diff_frappe_develop_version-13_02-09-2026_10:04:59.md"
func ExportFileName(repoName, preReleaseBranch, stableBranch string, format NotesFormat, now time.Time) string {
	ext := "md"
	if format == NotesCSV {
		ext = "csv"
	}
	return fmt.Sprintf("diff_%s_%s_%s_%s.%s",
		repoName, preReleaseBranch, stableBranch, now.Format("02-01-2006_15:04:05"), ext)
}
