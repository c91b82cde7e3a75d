package link

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter drops links whose endpoints fall outside the analyzed repository.
// A nil *Filter keeps everything.
type Filter struct {
	// Exclude holds doublestar patterns; a link is dropped when either
	// endpoint matches one of them.
	Exclude []string
	// DropOutOfScope drops absolute paths and paths escaping the repo root.
	DropOutOfScope bool
}

// NewFilter validates the patterns and returns a Filter.
func NewFilter(exclude []string, dropOutOfScope bool) (*Filter, error) {
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return &Filter{Exclude: exclude, DropOutOfScope: dropOutOfScope}, nil
}

// Keep reports whether l survives the filter.
func (f *Filter) Keep(l Link) bool {
	if f == nil {
		return true
	}
	return f.keepPath(l.Src) && f.keepPath(l.Dst)
}

func (f *Filter) keepPath(p string) bool {
	if f.DropOutOfScope && outOfScope(p) {
		return false
	}
	for _, pattern := range f.Exclude {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return false
		}
	}
	return true
}

// outOfScope matches what the indexers emit for files outside the repo:
// absolute paths and relative paths climbing above the root.
func outOfScope(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") {
		return true
	}
	clean := path.Clean(p)
	return clean == ".." || strings.HasPrefix(clean, "../")
}
