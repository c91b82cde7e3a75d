package evidence

import "context"

// Cache memoizes commit sets per file for the lifetime of one calibration run.
// Entries are never invalidated. A Cache is not safe for concurrent use.
type Cache struct {
	collector Collector
	repoRoot  string
	sets      map[string]CommitSet
}

// CacheStats describes what a run's cache ended up holding.
type CacheStats struct {
	Files         int `json:"files"`
	EmptyFiles    int `json:"empty_files"`
	UniqueCommits int `json:"unique_commits"`
}

// NewCache creates an empty cache querying c against repoRoot.
func NewCache(c Collector, repoRoot string) *Cache {
	return &Cache{
		collector: c,
		repoRoot:  repoRoot,
		sets:      make(map[string]CommitSet),
	}
}

// Get returns the commit set for file, querying the collector on first access.
func (c *Cache) Get(ctx context.Context, file string) CommitSet {
	if set, ok := c.sets[file]; ok {
		return set
	}
	set := c.collector.Commits(ctx, file, c.repoRoot)
	if set == nil {
		set = CommitSet{}
	}
	c.sets[file] = set
	return set
}

// Len returns the number of files queried so far.
func (c *Cache) Len() int {
	return len(c.sets)
}

// Stats summarizes the cached evidence.
func (c *Cache) Stats() CacheStats {
	st := CacheStats{Files: len(c.sets)}
	commits := make(map[string]struct{})
	for _, set := range c.sets {
		if len(set) == 0 {
			st.EmptyFiles++
		}
		for id := range set {
			commits[id] = struct{}{}
		}
	}
	st.UniqueCommits = len(commits)
	return st
}
