package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/linkcal/linkcal/internal/runs"
	"github.com/linkcal/linkcal/internal/storage"
	"github.com/linkcal/linkcal/pkg/calibrate"
	"github.com/linkcal/linkcal/pkg/config"
)

// memLedger is an in-memory RunLedger.
type memLedger struct {
	mu      sync.Mutex
	runs    map[string]*runs.Run
	failErr error
}

func newMemLedger() *memLedger {
	return &memLedger{runs: make(map[string]*runs.Run)}
}

func (m *memLedger) Create(_ context.Context, id, dataset, repoPath string) (*runs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	r := &runs.Run{ID: id, Dataset: dataset, RepoPath: repoPath, Status: runs.StatusRunning}
	m.runs[id] = r
	return r, nil
}

func (m *memLedger) Complete(_ context.Context, id string, sum runs.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return runs.ErrNotFound
	}
	r.Status = runs.StatusCompleted
	r.Cutoff = &sum.Cutoff
	return nil
}

func (m *memLedger) Fail(_ context.Context, id string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return runs.ErrNotFound
	}
	msg := cause.Error()
	r.Status = runs.StatusFailed
	r.ErrorMessage = &msg
	return nil
}

func (m *memLedger) Get(_ context.Context, id string) (*runs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, runs.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memLedger) List(_ context.Context, limit int) ([]runs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []runs.Run
	for _, r := range m.runs {
		if len(out) == limit {
			break
		}
		out = append(out, *r)
	}
	return out, nil
}

type testServer struct {
	mux    *http.ServeMux
	ledger *memLedger
	root   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()

	data, err := os.ReadFile("../../testdata/aligned_small.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "aligned.json"), data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := config.DefaultConfig()
	// Point evidence at a binary that cannot exist so no history is read.
	cfg.Evidence.GitPath = filepath.Join(root, "no-such-git")

	ledger := newMemLedger()
	h := NewHandler(ledger, storage.NewLocalStorage(filepath.Join(root, "archive")), Options{
		Config:   cfg,
		DataRoot: root,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &testServer{mux: mux, ledger: ledger, root: root}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateCalibration(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("POST", "/api/v1/calibrations", map[string]any{
		"data_file":           "aligned.json",
		"target_noise_ratios": []float64{0.5},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var cal calibrate.Calibration
	if err := json.Unmarshal(rec.Body.Bytes(), &cal); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cal.ID == "" || len(cal.Suggested) != 1 {
		t.Errorf("unexpected calibration %+v", cal)
	}
	if cal.Stats.HeuristicLinks != 6 {
		t.Errorf("heuristic links = %d, want 6", cal.Stats.HeuristicLinks)
	}

	run, err := s.ledger.Get(context.Background(), cal.ID)
	if err != nil {
		t.Fatalf("ledger.Get: %v", err)
	}
	if run.Status != runs.StatusCompleted {
		t.Errorf("run status = %s, want completed", run.Status)
	}

	// The archived report is served back verbatim.
	get := s.do("GET", "/api/v1/calibrations/"+cal.ID, nil)
	if get.Code != http.StatusOK {
		t.Fatalf("GET status = %d", get.Code)
	}
	var archived calibrate.Calibration
	if err := json.Unmarshal(get.Body.Bytes(), &archived); err != nil {
		t.Fatalf("decode archived: %v", err)
	}
	if archived.ID != cal.ID {
		t.Errorf("archived id = %s, want %s", archived.ID, cal.ID)
	}

	runRec := s.do("GET", "/api/v1/calibrations/"+cal.ID+"/run", nil)
	if runRec.Code != http.StatusOK {
		t.Errorf("GET run status = %d", runRec.Code)
	}

	list := s.do("GET", "/api/v1/calibrations", nil)
	var listed []runs.Run
	if err := json.Unmarshal(list.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("listed %d runs, want 1", len(listed))
	}
}

func TestCreateCalibrationReusesDataset(t *testing.T) {
	s := newTestServer(t)
	h := NewHandler(s.ledger, storage.NewLocalStorage(t.TempDir()), Options{DataRoot: s.root})

	path := filepath.Join(s.root, "aligned.json")
	first, err := h.loadDataset(path)
	if err != nil {
		t.Fatalf("loadDataset: %v", err)
	}
	second, err := h.loadDataset(path)
	if err != nil {
		t.Fatalf("loadDataset: %v", err)
	}
	if first != second {
		t.Error("expected cached dataset to be reused")
	}
	if h.datasets.Len() != 1 {
		t.Errorf("cache len = %d, want 1", h.datasets.Len())
	}
}

func TestCreateCalibrationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing data file", map[string]any{}, http.StatusBadRequest},
		{"not found", map[string]any{"data_file": "nope.json"}, http.StatusNotFound},
		{"outside root", map[string]any{"data_file": "../../etc/passwd"}, http.StatusBadRequest},
		{"bad threshold", map[string]any{"data_file": "aligned.json", "jaccard_threshold": 3}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := s.do("POST", "/api/v1/calibrations", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest("POST", "/api/v1/calibrations", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid body status = %d, want 400", rec.Code)
	}
}

func TestCreateCalibrationLedgerFailure(t *testing.T) {
	s := newTestServer(t)
	s.ledger.failErr = errors.New("db down")

	rec := s.do("POST", "/api/v1/calibrations", map[string]any{"data_file": "aligned.json"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestGetCalibrationNotFound(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{
		"/api/v1/calibrations/not-a-uuid",
		"/api/v1/calibrations/3f1c2a9e-8d7b-4c55-9a0e-1b2c3d4e5f60",
		"/api/v1/calibrations/3f1c2a9e-8d7b-4c55-9a0e-1b2c3d4e5f60/run",
	} {
		if rec := s.do("GET", path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestListCalibrationsBadLimit(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do("GET", "/api/v1/calibrations?limit=abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	rec := s.do("GET", "/api/v1/calibrations", nil)
	if rec.Code != http.StatusOK || bytes.TrimSpace(rec.Body.Bytes())[0] != '[' {
		t.Errorf("empty list should be a JSON array, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := APIKeyAuth("secret")(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	if APIKeyAuth("")(ok) == nil {
		t.Error("empty key should pass through")
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/v1/calibrations", nil))
	if called || rec.Code != http.StatusOK {
		t.Errorf("preflight called = %v status = %d", called, rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestRequestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))
	if !bytes.Contains(buf.Bytes(), []byte("status=418")) {
		t.Errorf("log missing status: %s", buf.String())
	}
}
