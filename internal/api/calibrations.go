package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/linkcal/linkcal/internal/runs"
	"github.com/linkcal/linkcal/internal/storage"
	"github.com/linkcal/linkcal/pkg/calibrate"
	"github.com/linkcal/linkcal/pkg/link"
)

type calibrationRequest struct {
	DataFile          string    `json:"data_file"`
	RepoPath          string    `json:"repo_path"`
	TargetNoiseRatios []float64 `json:"target_noise_ratios,omitempty"`
	JaccardThreshold  *float64  `json:"jaccard_threshold,omitempty"`
	MaxCandidates     *int      `json:"max_candidates,omitempty"`
	MaxEvalLinks      *int      `json:"max_eval_links,omitempty"`
}

// params overlays the request's overrides on the configured defaults.
func (req *calibrationRequest) params(base calibrate.Params) calibrate.Params {
	p := base
	if len(req.TargetNoiseRatios) > 0 {
		p.TargetNoiseRatios = req.TargetNoiseRatios
	}
	if req.JaccardThreshold != nil {
		p.JaccardThreshold = *req.JaccardThreshold
	}
	if req.MaxCandidates != nil {
		p.MaxCandidates = *req.MaxCandidates
	}
	if req.MaxEvalLinks != nil {
		p.MaxEvalLinks = *req.MaxEvalLinks
	}
	return p
}

func (h *Handler) handleCreateCalibration(w http.ResponseWriter, r *http.Request) {
	var req calibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DataFile == "" {
		writeError(w, http.StatusBadRequest, "data_file is required")
		return
	}
	if req.RepoPath == "" {
		req.RepoPath = "."
	}

	dataPath, err := h.resolve(req.DataFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	repoPath, err := h.resolve(req.RepoPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := req.params(h.cfg.Params())
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, err := h.loadDataset(dataPath)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", req.DataFile))
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx := r.Context()
	runID := uuid.New().String()
	if _, err := h.ledger.Create(ctx, runID, dataPath, repoPath); err != nil {
		h.logger.Error("recording run", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record run")
		return
	}
	logger := h.logger.With("run_id", runID)

	cal, err := calibrate.Run(ctx, calibrate.RunInput{
		ID:        runID,
		Dataset:   ds,
		RepoRoot:  repoPath,
		Collector: h.cfg.Collector(logger),
		Params:    params,
		Logger:    logger,
	})
	if err != nil {
		h.fail(ctx, runID, err)
		writeError(w, http.StatusInternalServerError, "calibration failed")
		return
	}

	data, err := json.Marshal(cal)
	if err != nil {
		h.fail(ctx, runID, err)
		writeError(w, http.StatusInternalServerError, "encoding report failed")
		return
	}
	if err := h.store.PutReport(ctx, runID, data); err != nil {
		h.fail(ctx, runID, err)
		writeError(w, http.StatusInternalServerError, "archiving report failed")
		return
	}

	var sum runs.Summary
	if s, ok := cal.Headline(); ok {
		row, _ := s.Search.Selected()
		sum = runs.Summary{
			Cutoff:     row.Cutoff,
			NoiseRatio: row.NoiseRatio,
			Coverage:   row.Coverage.Ratio,
		}
	}
	if err := h.ledger.Complete(ctx, runID, sum); err != nil {
		logger.Error("completing run", "error", err)
	}

	logger.Info("calibration served", "dataset", dataPath, "links", ds.Stats.HeuristicLinks)
	writeJSON(w, http.StatusCreated, cal)
}

// fail records a failed run even when the request context is already done.
func (h *Handler) fail(ctx context.Context, runID string, cause error) {
	h.logger.Error("calibration failed", "run_id", runID, "error", cause)
	if err := h.ledger.Fail(context.WithoutCancel(ctx), runID, cause); err != nil {
		h.logger.Error("recording failure", "run_id", runID, "error", err)
	}
}

func (h *Handler) handleListCalibrations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.ledger.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if list == nil {
		list = []runs.Run{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetCalibration(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	if _, err := uuid.Parse(runID); err != nil {
		writeError(w, http.StatusNotFound, "calibration not found")
		return
	}

	data, err := h.store.GetReport(r.Context(), runID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "calibration not found")
		return
	}
	if err != nil {
		h.logger.Error("reading report", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.ledger.Get(r.Context(), r.PathValue("runID"))
	if errors.Is(err, runs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("reading run", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// resolve makes p absolute and, when a data root is configured, keeps it
// inside that root.
func (h *Handler) resolve(p string) (string, error) {
	if h.dataRoot == "" {
		return filepath.Abs(p)
	}
	root, err := filepath.Abs(h.dataRoot)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the data root", p)
	}
	return p, nil
}

// loadDataset returns the dataset at path, reusing a cached copy while the
// file is unchanged.
func (h *Handler) loadDataset(path string) (*link.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s@%d", path, info.ModTime().UnixNano())
	if ds, ok := h.datasets.Get(key); ok {
		return ds, nil
	}

	opts, err := h.cfg.LoadOptions()
	if err != nil {
		return nil, err
	}
	ds, err := link.LoadDataset(path, opts)
	if err != nil {
		return nil, err
	}
	h.datasets.Put(key, ds)
	return ds, nil
}
