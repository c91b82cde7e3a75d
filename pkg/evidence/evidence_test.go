package evidence_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/linkcal/linkcal/pkg/evidence"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b evidence.CommitSet
		want float64
	}{
		{"both empty", evidence.NewCommitSet(), evidence.NewCommitSet(), 0},
		{"left empty", evidence.NewCommitSet(), evidence.NewCommitSet("c1"), 0},
		{"right empty", evidence.NewCommitSet("c1"), nil, 0},
		{"identical", evidence.NewCommitSet("c1", "c2"), evidence.NewCommitSet("c1", "c2"), 1},
		{"disjoint", evidence.NewCommitSet("c1"), evidence.NewCommitSet("c2"), 0},
		{"half", evidence.NewCommitSet("c1", "c2", "c3"), evidence.NewCommitSet("c2", "c3", "c4", "c5"), 0.4},
		{"subset", evidence.NewCommitSet("c1"), evidence.NewCommitSet("c1", "c2", "c3", "c4"), 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evidence.Jaccard(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("Jaccard(a, b) = %v, want %v", got, tt.want)
			}
			if rev := evidence.Jaccard(tt.b, tt.a); rev != got {
				t.Errorf("Jaccard not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestJaccardSelf(t *testing.T) {
	a := evidence.NewCommitSet("x", "y", "z")
	if got := evidence.Jaccard(a, a); got != 1 {
		t.Errorf("Jaccard(A, A) = %v, want 1", got)
	}
}

type countingCollector struct {
	sets  map[string]evidence.CommitSet
	calls map[string]int
}

func (c *countingCollector) Commits(_ context.Context, file, _ string) evidence.CommitSet {
	c.calls[file]++
	return c.sets[file]
}

func TestCacheMemoizes(t *testing.T) {
	col := &countingCollector{
		sets: map[string]evidence.CommitSet{
			"a.go": evidence.NewCommitSet("c1", "c2"),
		},
		calls: map[string]int{},
	}
	cache := evidence.NewCache(col, "/repo")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if got := cache.Get(ctx, "a.go"); len(got) != 2 {
			t.Fatalf("Get(a.go) = %v, want 2 commits", got)
		}
		if got := cache.Get(ctx, "missing.go"); got == nil || len(got) != 0 {
			t.Fatalf("Get(missing.go) = %v, want empty non-nil set", got)
		}
	}

	if col.calls["a.go"] != 1 || col.calls["missing.go"] != 1 {
		t.Errorf("collector calls = %v, want one per file", col.calls)
	}
	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cache.Len())
	}

	st := cache.Stats()
	if st.Files != 2 || st.EmptyFiles != 1 || st.UniqueCommits != 2 {
		t.Errorf("Stats() = %+v, want {2 1 2}", st)
	}
}

func TestGitCollectorMissingBinary(t *testing.T) {
	g := &evidence.GitCollector{GitPath: filepath.Join(t.TempDir(), "no-such-git")}
	got := g.Commits(context.Background(), "main.go", t.TempDir())
	if got == nil || len(got) != 0 {
		t.Errorf("Commits() = %v, want empty set", got)
	}
}

func TestGitCollectorNotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	g := &evidence.GitCollector{}
	got := g.Commits(context.Background(), "main.go", t.TempDir())
	if len(got) != 0 {
		t.Errorf("Commits() outside a repository = %v, want empty", got)
	}
}

func TestGitCollectorHistory(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	ctx := context.Background()

	git := func(args ...string) {
		t.Helper()
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
			"GIT_CONFIG_NOSYSTEM=1", "HOME="+dir,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	git("init", "-q")
	write("a.go", "package a\n")
	write("b.go", "package a\n")
	git("add", ".")
	git("commit", "-q", "-m", "both")
	write("a.go", "package a\n\nvar x int\n")
	git("commit", "-q", "-am", "only a")

	g := &evidence.GitCollector{}
	a := g.Commits(ctx, "a.go", dir)
	b := g.Commits(ctx, "b.go", dir)
	if len(a) != 2 {
		t.Errorf("a.go commits = %d, want 2", len(a))
	}
	if len(b) != 1 {
		t.Errorf("b.go commits = %d, want 1", len(b))
	}
	if got := evidence.Jaccard(a, b); got != 0.5 {
		t.Errorf("Jaccard(a, b) = %v, want 0.5", got)
	}

	limited := (&evidence.GitCollector{MaxCommits: 1}).Commits(ctx, "a.go", dir)
	if len(limited) != 1 {
		t.Errorf("MaxCommits=1 returned %d commits", len(limited))
	}

	if got := g.Commits(ctx, "untracked.go", dir); len(got) != 0 {
		t.Errorf("untracked file commits = %v, want empty", got)
	}
}
