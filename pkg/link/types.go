// Package link defines the file-to-file link data model shared by the
// calibration engine, the loaders and the renderers.
package link

import (
	"sort"
)

// Link is a directed relation from a source file to a destination file.
// Links compare by value and are used directly as map keys.
type Link struct {
	Src string `json:"src_file"`
	Dst string `json:"dst_file"`
}

// String renders the link the way the eval tooling prints it.
func (l Link) String() string {
	return l.Src + " -> " + l.Dst
}

// Less orders links by (src, dst).
func (l Link) Less(o Link) bool {
	if l.Src != o.Src {
		return l.Src < o.Src
	}
	return l.Dst < o.Dst
}

// ScoredSet maps each heuristic link to its confidence score.
type ScoredSet map[Link]float64

// Add records a score for l, keeping the maximum when l is already present.
// Negative scores are clamped to zero.
func (s ScoredSet) Add(l Link, score float64) {
	if score < 0 {
		score = 0
	}
	if cur, ok := s[l]; ok && cur >= score {
		return
	}
	s[l] = score
}

// Sources returns the distinct source files appearing as a link origin.
func (s ScoredSet) Sources() map[string]struct{} {
	srcs := make(map[string]struct{}, len(s))
	for l := range s {
		srcs[l.Src] = struct{}{}
	}
	return srcs
}

// Ranked returns every (link, score) pair ordered by score descending, then
// src and dst ascending. The order is deterministic for identical input.
func (s ScoredSet) Ranked() []Scored {
	out := make([]Scored, 0, len(s))
	for l, score := range s {
		out = append(out, Scored{Link: l, Score: score})
	}
	SortScored(out)
	return out
}

// Scored is a link paired with its score.
type Scored struct {
	Link  Link    `json:"link"`
	Score float64 `json:"score"`
}

// SortScored sorts in place by score descending, then src, then dst.
func SortScored(items []Scored) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Link.Less(items[j].Link)
	})
}

// TruthSet is the set of links reported by an exact indexer.
type TruthSet map[Link]struct{}

// Add inserts l into the set.
func (t TruthSet) Add(l Link) {
	t[l] = struct{}{}
}

// Contains reports whether l is a ground-truth link.
func (t TruthSet) Contains(l Link) bool {
	_, ok := t[l]
	return ok
}

// Sorted returns the links of the set in (src, dst) order.
func (t TruthSet) Sorted() []Link {
	out := make([]Link, 0, len(t))
	for l := range t {
		out = append(out, l)
	}
	sortLinks(out)
	return out
}

func sortLinks(links []Link) {
	sort.Slice(links, func(i, j int) bool { return links[i].Less(links[j]) })
}

// Dataset is one loaded calibration input: a ground-truth set and the
// heuristic links under test. Datasets are immutable once loaded.
type Dataset struct {
	Source    string    `json:"source"`
	Truth     TruthSet  `json:"-"`
	Heuristic ScoredSet `json:"-"`
	Stats     Stats     `json:"stats"`

	// Symbol-level views, used only by CompareDataset.
	TruthSymbols       []Symbol   `json:"-"`
	HeuristicSymbols   []Symbol   `json:"-"`
	TruthRelations     []Relation `json:"-"`
	HeuristicRelations []Relation `json:"-"`
}

// Stats summarizes a loaded dataset.
type Stats struct {
	TruthLinks       int `json:"truth_links"`
	HeuristicRecords int `json:"heuristic_records"`
	HeuristicLinks   int `json:"heuristic_links"`
	SourceFiles      int `json:"source_files"`
	TruthSymbols     int `json:"truth_symbols"`
	HeuristicSymbols int `json:"heuristic_symbols"`
	Dropped          int `json:"dropped"`
}
