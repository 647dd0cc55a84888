package model

import "sync"

// PullMeta is the cached metadata of one discovered pull request
type PullMeta struct {
	Number string
	Title  string
	Link   string
}

// ReleaseCache holds the per-release derived values: the last-seen commit
// message set, the last-seen PR-number set, and the fetched PR metadata in
// discovery order.
//
// Invalidation is full-clear, never incremental: whenever the computed
// PR-number set differs from the last observed one, the metadata map is
// dropped entirely and every PR is re-fetched on the next read. The re-fetch
// cost is accepted; serving a title from a stale PR set is not.
//
// The embedded mutex guards all fields. Individual methods do not lock;
// a refresh is a compound read-modify-write sequence, so the owner must hold
// the lock across the whole sequence, not per call.
type ReleaseCache struct {
	sync.Mutex

	commits     []string
	pullNumbers []string
	meta        map[string]PullMeta
	metaOrder   []string
}

// NewReleaseCache returns an empty cache
func NewReleaseCache() *ReleaseCache {
	return &ReleaseCache{meta: make(map[string]PullMeta)}
}

// SetCommits stores the latest commit-message set
func (c *ReleaseCache) SetCommits(messages []string) {
	c.commits = messages
}

// Commits returns the last stored commit-message set
func (c *ReleaseCache) Commits() []string {
	return c.commits
}

// RefreshIfChanged compares the freshly computed PR-number set against the
// stored snapshot. On any difference it stores the new set, clears all cached
// metadata, and returns true. Order differences alone do not count as a
// change; the comparison is set-wise.
func (c *ReleaseCache) RefreshIfChanged(pullNumbers []string) bool {
	if sameSet(c.pullNumbers, pullNumbers) {
		c.pullNumbers = pullNumbers
		return false
	}

	c.pullNumbers = pullNumbers
	c.meta = make(map[string]PullMeta)
	c.metaOrder = nil
	return true
}

// PullNumbers returns the last observed PR-number set in discovery order
func (c *ReleaseCache) PullNumbers() []string {
	return c.pullNumbers
}

// HasMeta reports whether metadata for the given PR number is cached
func (c *ReleaseCache) HasMeta(number string) bool {
	_, ok := c.meta[number]
	return ok
}

// PutMeta stores metadata for one PR, preserving insertion order
func (c *ReleaseCache) PutMeta(m PullMeta) {
	if _, ok := c.meta[m.Number]; !ok {
		c.metaOrder = append(c.metaOrder, m.Number)
	}
	c.meta[m.Number] = m
}

// Meta returns all cached PR metadata in discovery order
func (c *ReleaseCache) Meta() []PullMeta {
	out := make([]PullMeta, 0, len(c.metaOrder))
	for _, num := range c.metaOrder {
		out = append(out, c.meta[num])
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
