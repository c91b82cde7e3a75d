// Package api implements the linkcal calibration service REST API.
// Runs are recorded in Postgres and their reports archived in blob storage.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linkcal/linkcal/internal/cache"
	"github.com/linkcal/linkcal/internal/runs"
	"github.com/linkcal/linkcal/internal/storage"
	"github.com/linkcal/linkcal/pkg/config"
	"github.com/linkcal/linkcal/pkg/link"
)

// RunLedger records calibration runs. *runs.Service implements it.
type RunLedger interface {
	Create(ctx context.Context, id, dataset, repoPath string) (*runs.Run, error)
	Complete(ctx context.Context, id string, sum runs.Summary) error
	Fail(ctx context.Context, id string, cause error) error
	Get(ctx context.Context, id string) (*runs.Run, error)
	List(ctx context.Context, limit int) ([]runs.Run, error)
}

// Options configures a Handler.
type Options struct {
	// Config supplies calibration defaults, evidence and input settings.
	Config *config.Config
	// DataRoot confines data_file and repo_path; relative request paths are
	// resolved against it. Empty allows any path.
	DataRoot string
	// DatasetCacheSize bounds the number of loaded datasets kept in memory.
	DatasetCacheSize int
	Logger           *slog.Logger
}

// Handler is the top-level API handler for the calibration service.
type Handler struct {
	ledger   RunLedger
	store    storage.ReportStore
	datasets *cache.LRU[string, *link.Dataset]
	cfg      *config.Config
	dataRoot string
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(ledger RunLedger, store storage.ReportStore, opts Options) *Handler {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ledger:   ledger,
		store:    store,
		datasets: cache.New[string, *link.Dataset](opts.DatasetCacheSize),
		cfg:      cfg,
		dataRoot: opts.DataRoot,
		logger:   logger,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/calibrations", h.handleCreateCalibration)
	mux.HandleFunc("GET /api/v1/calibrations", h.handleListCalibrations)
	mux.HandleFunc("GET /api/v1/calibrations/{runID}", h.handleGetCalibration)
	mux.HandleFunc("GET /api/v1/calibrations/{runID}/run", h.handleGetRun)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
