// Package evidence gathers co-change evidence for file pairs from version
// control history and measures how strongly two files change together.
package evidence

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CommitSet is the set of commit identifiers that touched one file.
type CommitSet map[string]struct{}

// NewCommitSet builds a set from a list of commit IDs.
func NewCommitSet(ids ...string) CommitSet {
	s := make(CommitSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Collector retrieves the commit history of a file. Implementations never
// fail: any problem collecting history yields an empty set.
type Collector interface {
	Commits(ctx context.Context, file, repoRoot string) CommitSet
}

// GitCollector runs `git log` for each file.
type GitCollector struct {
	GitPath    string        // defaults to "git"
	Timeout    time.Duration // per query; 0 means no timeout
	MaxCommits int           // 0 means full history
	Logger     *slog.Logger  // defaults to slog.Default()
}

// Commits returns the commits touching file, following renames.
// A missing binary, an untracked path or a non-zero exit all yield ∅.
func (g *GitCollector) Commits(ctx context.Context, file, repoRoot string) CommitSet {
	git := g.GitPath
	if git == "" {
		git = "git"
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	args := []string{"log", "--follow", "--format=%H"}
	if g.MaxCommits > 0 {
		args = append(args, "--max-count="+strconv.Itoa(g.MaxCommits))
	}
	args = append(args, "--", file)

	cmd := exec.CommandContext(ctx, git, args...)
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		g.logger().Debug("git log failed, treating as no evidence", "file", file, "error", err)
		return CommitSet{}
	}
	return parseCommitList(out)
}

func (g *GitCollector) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// parseCommitList reads newline-delimited commit IDs, skipping blank lines.
func parseCommitList(out []byte) CommitSet {
	set := CommitSet{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B|, or 0 when either set is empty.
func Jaccard(a, b CommitSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for id := range small {
		if _, ok := large[id]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
