package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/linkcal/linkcal/internal/logging"
	"github.com/linkcal/linkcal/pkg/calibrate"
	"github.com/linkcal/linkcal/pkg/config"
	"github.com/linkcal/linkcal/pkg/evidence"
	"github.com/linkcal/linkcal/pkg/link"
	"github.com/linkcal/linkcal/pkg/surface"
)

const (
	defaultDataFile = "eval/aligned_data.json"
	defaultRepoPath = "."
)

// workspace is everything a subcommand needs after argument handling.
type workspace struct {
	cfg      *config.Config
	repoRoot string
	dataset  *link.Dataset
	renderer surface.Renderer
	logger   *slog.Logger
	stdout   io.Writer
	stderr   io.Writer
}

// inputFlags are the input-filter flags shared by the dataset commands.
type inputFlags struct {
	exclude        []string
	dropOutOfScope bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Glob of files whose links are dropped (repeatable)")
	cmd.Flags().BoolVar(&f.dropOutOfScope, "drop-out-of-scope", false, "Drop links to absolute paths or paths outside the repo")
}

// dataArgs splits [data-file] [repo-path] positional args, applying defaults.
func dataArgs(args []string) (dataFile, repoPath string) {
	dataFile, repoPath = defaultDataFile, defaultRepoPath
	if len(args) > 0 {
		dataFile = args[0]
	}
	if len(args) > 1 {
		repoPath = args[1]
	}
	return dataFile, repoPath
}

// openWorkspace loads config and the dataset. It reports ok=false, after
// telling the user, when the data file does not exist.
func openWorkspace(cmd *cobra.Command, g *globalOpts, in inputFlags, dataFile, repoPath string) (*workspace, bool, error) {
	ws := &workspace{
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
		logger: logging.New("cli"),
	}

	if _, err := os.Stat(dataFile); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(ws.stdout, "Error: %s not found.\n", dataFile)
		return nil, false, nil
	}

	root, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, false, fmt.Errorf("resolving repo path: %w", err)
	}
	ws.repoRoot = root
	if _, err := config.FindRepoRoot(root); err != nil {
		fmt.Fprintf(ws.stderr, "Warning: %s is not inside a git repository; co-change evidence will be empty\n", root)
	}

	ws.cfg, err = loadConfig(g.configPath, root, ws.stderr)
	if err != nil {
		return nil, false, err
	}
	if len(in.exclude) > 0 {
		ws.cfg.Input.Exclude = append(ws.cfg.Input.Exclude, in.exclude...)
	}
	if in.dropOutOfScope {
		ws.cfg.Input.DropOutOfScope = true
	}

	ws.renderer, err = surface.ForFormat(g.output)
	if err != nil {
		return nil, false, err
	}

	opts, err := ws.cfg.LoadOptions()
	if err != nil {
		return nil, false, err
	}
	ws.dataset, err = link.LoadDataset(dataFile, opts)
	if err != nil {
		return nil, false, fmt.Errorf("loading dataset: %w", err)
	}
	ws.logger.Debug("dataset loaded",
		"path", dataFile,
		"truth_links", ws.dataset.Stats.TruthLinks,
		"heuristic_links", ws.dataset.Stats.HeuristicLinks,
		"dropped", ws.dataset.Stats.Dropped,
	)
	return ws, true, nil
}

// loadConfig reads an explicit config file, or the one found above the repo.
// A broken discovered config falls back to defaults with a warning on stderr;
// an explicit one is an error.
func loadConfig(explicit, repoRoot string, stderr io.Writer) (*config.Config, error) {
	if explicit != "" {
		cfg, err := config.Load(explicit)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	cfgFile := config.FindConfigFile(repoRoot)
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: failed to load config: %v\n", err)
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

// classifier builds a classifier backed by a fresh commit cache.
func (ws *workspace) classifier(params calibrate.Params) (*calibrate.Classifier, *evidence.Cache) {
	cache := evidence.NewCache(ws.cfg.Collector(ws.logger), ws.repoRoot)
	return calibrate.NewClassifier(ws.dataset.Truth, cache, params.JaccardThreshold), cache
}

// header is a Calibration carrying only dataset identity, for commands that
// compute a single section.
func (ws *workspace) header() *calibrate.Calibration {
	return &calibrate.Calibration{
		Dataset:  ws.dataset.Source,
		RepoRoot: ws.repoRoot,
		Stats:    ws.dataset.Stats,
	}
}

func (ws *workspace) render(cal *calibrate.Calibration) error {
	if err := ws.renderer.Render(ws.stdout, cal); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// withContext falls back to Background for commands executed without one.
func withContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
