package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linkcal/linkcal/internal/api"
	"github.com/linkcal/linkcal/internal/storage"
)

type fakeDB struct{ err error }

func (f fakeDB) PingContext(context.Context) error { return f.err }

func TestLoadSettingsDefaults(t *testing.T) {
	s := loadSettings()
	if s.Port != "8080" {
		t.Errorf("Port = %q, want 8080", s.Port)
	}
	if s.DatasetCacheSize != 10 {
		t.Errorf("DatasetCacheSize = %d, want 10", s.DatasetCacheSize)
	}
	if s.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", s.LogFormat)
	}
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("LINKCAL_PORT", "9090")
	t.Setenv("LINKCAL_STORE_URI", "s3://reports/linkcal")
	t.Setenv("LINKCAL_S3_REGION", "eu-west-1")
	t.Setenv("LINKCAL_DATASET_CACHE_SIZE", "3")
	t.Setenv("LINKCAL_API_KEY", "secret")

	s := loadSettings()
	if s.Port != "9090" {
		t.Errorf("Port = %q, want 9090", s.Port)
	}
	if s.StoreURI != "s3://reports/linkcal" {
		t.Errorf("StoreURI = %q", s.StoreURI)
	}
	if s.S3.Region != "eu-west-1" {
		t.Errorf("S3.Region = %q", s.S3.Region)
	}
	if s.DatasetCacheSize != 3 {
		t.Errorf("DatasetCacheSize = %d, want 3", s.DatasetCacheSize)
	}
	if s.APIKey != "secret" {
		t.Errorf("APIKey = %q", s.APIKey)
	}
}

func testMux(t *testing.T, db pinger, key string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := api.NewHandler(nil, storage.NewLocalStorage(t.TempDir()), api.Options{Logger: logger})
	return newMux(h, db, key, logger)
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name string
		db   fakeDB
		want int
	}{
		{"healthy", fakeDB{}, http.StatusOK},
		{"db down", fakeDB{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			testMux(t, tt.db, "key").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAPIRequiresKey(t *testing.T) {
	mux := testMux(t, fakeDB{}, "secret")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/calibrations/abc", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/calibrations", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200 without a key", rec.Code)
	}
}
