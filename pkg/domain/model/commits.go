package model

import (
	"regexp"
	"strings"
)

// prNumberPattern matches pull request references like "#1234"
var prNumberPattern = regexp.MustCompile(`#(\d+)`)

// backportAnnotation is the prefix GitHub backport bots put in front of the
// original PR number, e.g. "fix: something (bp #123)". Such a number refers to
// the PR on the source branch, not a new PR, and must not be counted.
const backportAnnotation = "(bp "

// DedupeMessages collapses duplicate commit messages, keeping first-seen
// order. Backport automation frequently replays identical one-line messages;
// counting them twice would double-count their PR references.
func DedupeMessages(messages []string) []string {
	seen := make(map[string]struct{}, len(messages))
	out := make([]string, 0, len(messages))
	for _, msg := range messages {
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	}
	return out
}

// ExtractPullNumbers mines pull request numbers out of commit messages.
//
// A message contributes nothing unless it contains "#". When skipBackports is
// set, messages containing any of the backport markers are dropped wholesale.
// Within a surviving message, every "#NNN" occurrence counts except those
// immediately preceded by "(bp " — the backport annotation embeds the original
// PR number there.
//
// Numbers are returned as strings, duplicates collapsed, in first-discovery
// order. Pure function over its inputs.
func ExtractPullNumbers(messages []string, skipBackports bool, backportMarkers []string) []string {
	seen := make(map[string]struct{})
	var numbers []string

	for _, msg := range messages {
		if !strings.Contains(msg, "#") {
			continue
		}
		if skipBackports && containsAny(msg, backportMarkers) {
			continue
		}

		for _, loc := range prNumberPattern.FindAllStringSubmatchIndex(msg, -1) {
			if precededByBackportAnnotation(msg, loc[0]) {
				continue
			}
			num := msg[loc[2]:loc[3]]
			if _, ok := seen[num]; ok {
				continue
			}
			seen[num] = struct{}{}
			numbers = append(numbers, num)
		}
	}

	return numbers
}

// precededByBackportAnnotation reports whether the "#" at offset is directly
// preceded by the "(bp " annotation. Go's regexp has no lookbehind, so the
// check is done on the raw string.
func precededByBackportAnnotation(msg string, offset int) bool {
	start := offset - len(backportAnnotation)
	return start >= 0 && msg[start:offset] == backportAnnotation
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
