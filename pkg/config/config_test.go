package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Calibration.JaccardThreshold != 0.2 {
		t.Errorf("expected default jaccard threshold 0.2, got %v", cfg.Calibration.JaccardThreshold)
	}
	if diff := cmp.Diff([]float64{0.1, 0.2, 0.3}, cfg.Calibration.TargetNoiseRatios); diff != "" {
		t.Errorf("default targets mismatch (-want +got):\n%s", diff)
	}
	if cfg.Calibration.CoverageWeight != 0.15 {
		t.Errorf("expected default coverage weight 0.15, got %v", cfg.Calibration.CoverageWeight)
	}
	if cfg.Evidence.GitPath != "git" {
		t.Errorf("expected default GitPath 'git', got %q", cfg.Evidence.GitPath)
	}
	if cfg.Input.TruthSection != "scip" || cfg.Input.HeuristicSection != "gossiphs" {
		t.Errorf("unexpected default sections %q/%q", cfg.Input.TruthSection, cfg.Input.HeuristicSection)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		create  bool
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "non-existent file returns defaults",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Calibration.MaxCandidates != 20000 {
					t.Errorf("expected default max candidates 20000, got %d", cfg.Calibration.MaxCandidates)
				}
			},
		},
		{
			name:   "valid YAML overrides defaults",
			create: true,
			yaml: `
calibration:
  jaccard_threshold: 0.3
  target_noise_ratios: [0.05]
  max_eval_links: 500
  buckets: [0, 25, 75]
evidence:
  git_path: /usr/bin/git
  timeout: 5
  max_commits: 200
input:
  truth_section: lsif
  exclude:
    - "vendor/**"
  drop_out_of_scope: true
archive:
  enabled: true
  uri: s3://reports/linkcal
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Calibration.JaccardThreshold != 0.3 {
					t.Errorf("expected jaccard 0.3, got %v", cfg.Calibration.JaccardThreshold)
				}
				if diff := cmp.Diff([]float64{0.05}, cfg.Calibration.TargetNoiseRatios); diff != "" {
					t.Errorf("targets mismatch (-want +got):\n%s", diff)
				}
				if cfg.Calibration.MaxCandidates != 20000 {
					t.Errorf("unset max candidates should keep default, got %d", cfg.Calibration.MaxCandidates)
				}
				if !cfg.Calibration.MinKeptFloor {
					t.Error("unset min_kept_floor should keep default true")
				}
				if cfg.Evidence.GitPath != "/usr/bin/git" || cfg.Evidence.Timeout != 5 || cfg.Evidence.MaxCommits != 200 {
					t.Errorf("unexpected evidence config %+v", cfg.Evidence)
				}
				if cfg.Input.TruthSection != "lsif" || cfg.Input.HeuristicSection != "gossiphs" {
					t.Errorf("unexpected sections %q/%q", cfg.Input.TruthSection, cfg.Input.HeuristicSection)
				}
				if !cfg.Archive.Enabled || cfg.Archive.URI != "s3://reports/linkcal" {
					t.Errorf("unexpected archive config %+v", cfg.Archive)
				}
			},
		},
		{
			name:    "invalid YAML returns error",
			create:  true,
			yaml:    "{{invalid yaml",
			wantErr: true,
		},
		{
			name:    "out of range threshold returns error",
			create:  true,
			yaml:    "calibration:\n  jaccard_threshold: 2\n",
			wantErr: true,
		},
		{
			name:    "bad exclude pattern returns error",
			create:  true,
			yaml:    "input:\n  exclude: [\"[oops\"]\n",
			wantErr: true,
		},
		{
			name:    "negative timeout returns error",
			create:  true,
			yaml:    "evidence:\n  timeout: -1\n",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if tc.create {
				if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
					t.Fatalf("write test config: %v", err)
				}
			}

			cfg, err := Load(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calibration.Buckets = []float64{0, 5}
	cfg.Evidence.Timeout = 3
	cfg.Evidence.MaxCommits = 10
	cfg.Input.Exclude = []string{"gen/**"}

	p := cfg.Params()
	if diff := cmp.Diff([]float64{0, 5}, p.BucketBounds); diff != "" {
		t.Errorf("bucket bounds mismatch (-want +got):\n%s", diff)
	}

	opts, err := cfg.LoadOptions()
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	if opts.Filter == nil || opts.TruthSection != "scip" {
		t.Errorf("unexpected load options %+v", opts)
	}

	col := cfg.Collector(nil)
	if col.Timeout != 3*time.Second || col.MaxCommits != 10 || col.GitPath != "git" {
		t.Errorf("unexpected collector %+v", col)
	}

	cfg.Input.Exclude = nil
	opts, err = cfg.LoadOptions()
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	if opts.Filter != nil {
		t.Error("expected no filter without exclude patterns")
	}
}

func TestCacheDir(t *testing.T) {
	dir := CacheDir("/home/alice/repos/myproject")
	if !strings.HasSuffix(dir, filepath.Join("linkcal", "repos_myproject")) {
		t.Errorf("CacheDir should end with %q, got %q", filepath.Join("linkcal", "repos_myproject"), dir)
	}
}

func TestRepoSlug(t *testing.T) {
	if got := repoSlug("/home/user/workspace/myrepo"); got != "workspace_myrepo" {
		t.Errorf("repoSlug = %q, want %q", got, "workspace_myrepo")
	}
}

func TestFindRepoRoot(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		root := t.TempDir()
		if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
			t.Fatalf("create .git: %v", err)
		}
		sub := filepath.Join(root, "src", "pkg")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatalf("create subdirectory: %v", err)
		}

		got, err := FindRepoRoot(sub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != root {
			t.Errorf("FindRepoRoot = %q, want %q", got, root)
		}
	})

	t.Run("worktree file", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, ".git"), []byte("gitdir: /elsewhere\n"), 0o644); err != nil {
			t.Fatalf("write .git: %v", err)
		}
		got, err := FindRepoRoot(root)
		if err != nil || got != root {
			t.Errorf("FindRepoRoot = %q, %v; want %q", got, err, root)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Run("found in parent directory", func(t *testing.T) {
		root := t.TempDir()
		configDir := filepath.Join(root, ".linkcal")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("create config dir: %v", err)
		}
		configPath := filepath.Join(configDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		sub := filepath.Join(root, "a", "b")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatalf("create sub: %v", err)
		}

		if got := FindConfigFile(sub); got != configPath {
			t.Errorf("FindConfigFile = %q, want %q", got, configPath)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if got := FindConfigFile(t.TempDir()); got != "" {
			t.Errorf("FindConfigFile = %q, want empty", got)
		}
	})
}
