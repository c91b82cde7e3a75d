// Package config handles loading and managing linkcal configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linkcal/linkcal/pkg/calibrate"
	"github.com/linkcal/linkcal/pkg/evidence"
	"github.com/linkcal/linkcal/pkg/link"
)

// Config is the top-level configuration for linkcal.
type Config struct {
	Calibration CalibrationConfig `yaml:"calibration"`
	Evidence    EvidenceConfig    `yaml:"evidence"`
	Input       InputConfig       `yaml:"input"`
	Archive     ArchiveConfig     `yaml:"archive"`
}

// CalibrationConfig controls classification and the cutoff search.
type CalibrationConfig struct {
	JaccardThreshold  float64   `yaml:"jaccard_threshold"`
	TargetNoiseRatios []float64 `yaml:"target_noise_ratios"`
	MaxCandidates     int       `yaml:"max_candidates"`
	MinKeptLinks      int       `yaml:"min_kept_links"`
	MinKeptFloor      bool      `yaml:"min_kept_floor"`
	MinSrcCoverage    float64   `yaml:"min_src_coverage"`
	CoverageWeight    float64   `yaml:"coverage_weight"`
	MaxEvalLinks      int       `yaml:"max_eval_links"`
	PhantomSamples    int       `yaml:"phantom_samples"`
	Buckets           []float64 `yaml:"buckets"`
	BucketMaxLinks    int       `yaml:"bucket_max_links"`
}

// EvidenceConfig controls how commit history is queried.
type EvidenceConfig struct {
	GitPath    string `yaml:"git_path"`
	Timeout    int    `yaml:"timeout"` // seconds per query, 0 = none
	MaxCommits int    `yaml:"max_commits"`
}

// InputConfig controls how aligned data files are read.
type InputConfig struct {
	TruthSection     string   `yaml:"truth_section"`
	HeuristicSection string   `yaml:"heuristic_section"`
	Exclude          []string `yaml:"exclude"`
	DropOutOfScope   bool     `yaml:"drop_out_of_scope"`
}

// ArchiveConfig controls where calibration reports are archived.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	URI     string `yaml:"uri"` // s3://, gs:// or a directory; empty uses CacheDir
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	p := calibrate.DefaultParams()
	return &Config{
		Calibration: CalibrationConfig{
			JaccardThreshold:  p.JaccardThreshold,
			TargetNoiseRatios: p.TargetNoiseRatios,
			MaxCandidates:     p.MaxCandidates,
			MinKeptLinks:      p.MinKeptLinks,
			MinKeptFloor:      p.MinKeptFloor,
			MinSrcCoverage:    p.MinSrcCoverage,
			CoverageWeight:    p.CoverageWeight,
			MaxEvalLinks:      p.MaxEvalLinks,
			PhantomSamples:    p.PhantomSamples,
			Buckets:           p.BucketBounds,
			BucketMaxLinks:    p.BucketMaxLinks,
		},
		Evidence: EvidenceConfig{
			GitPath: "git",
		},
		Input: InputConfig{
			TruthSection:     link.DefaultTruthSection,
			HeuristicSection: link.DefaultHeuristicSection,
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Evidence.Timeout < 0 {
		return fmt.Errorf("evidence timeout must not be negative")
	}
	if c.Evidence.MaxCommits < 0 {
		return fmt.Errorf("evidence max_commits must not be negative")
	}
	if _, err := link.NewFilter(c.Input.Exclude, c.Input.DropOutOfScope); err != nil {
		return err
	}
	return nil
}

// Params converts the calibration section into engine parameters.
func (c *Config) Params() calibrate.Params {
	cc := c.Calibration
	return calibrate.Params{
		JaccardThreshold:  cc.JaccardThreshold,
		TargetNoiseRatios: cc.TargetNoiseRatios,
		MaxCandidates:     cc.MaxCandidates,
		MinKeptLinks:      cc.MinKeptLinks,
		MinKeptFloor:      cc.MinKeptFloor,
		MinSrcCoverage:    cc.MinSrcCoverage,
		CoverageWeight:    cc.CoverageWeight,
		MaxEvalLinks:      cc.MaxEvalLinks,
		PhantomSamples:    cc.PhantomSamples,
		BucketBounds:      cc.Buckets,
		BucketMaxLinks:    cc.BucketMaxLinks,
	}
}

// LoadOptions converts the input section into dataset load options.
func (c *Config) LoadOptions() (link.LoadOptions, error) {
	opts := link.LoadOptions{
		TruthSection:     c.Input.TruthSection,
		HeuristicSection: c.Input.HeuristicSection,
	}
	if len(c.Input.Exclude) > 0 || c.Input.DropOutOfScope {
		f, err := link.NewFilter(c.Input.Exclude, c.Input.DropOutOfScope)
		if err != nil {
			return link.LoadOptions{}, err
		}
		opts.Filter = f
	}
	return opts, nil
}

// Collector builds the git evidence collector described by the evidence section.
func (c *Config) Collector(logger *slog.Logger) *evidence.GitCollector {
	return &evidence.GitCollector{
		GitPath:    c.Evidence.GitPath,
		Timeout:    time.Duration(c.Evidence.Timeout) * time.Second,
		MaxCommits: c.Evidence.MaxCommits,
		Logger:     logger,
	}
}

// FindConfigFile looks for .linkcal/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".linkcal", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the per-repository cache directory,
// ~/.cache/linkcal/<repo-slug>/. Archived reports default to it.
func CacheDir(repoPath string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "linkcal", repoSlug(repoPath))
}

// repoSlug creates a filesystem-safe identifier from a repository path.
// Uses the last two path components (e.g., "user_myrepo" from "/home/user/myrepo").
func repoSlug(repoPath string) string {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		abs = repoPath
	}
	dir := filepath.Base(filepath.Dir(abs))
	base := filepath.Base(abs)
	return dir + "_" + base
}

// FindRepoRoot walks up from dir looking for a .git entry. Commit history
// paths are relative to this root.
func FindRepoRoot(dir string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no git repository found (looked for .git)")
}
