// Command linkcald is the linkcal calibration service.
// It serves the calibration REST API and a health check.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/linkcal/linkcal/internal/api"
	"github.com/linkcal/linkcal/internal/logging"
	"github.com/linkcal/linkcal/internal/platform"
	"github.com/linkcal/linkcal/internal/runs"
	"github.com/linkcal/linkcal/internal/storage"
	"github.com/linkcal/linkcal/pkg/config"
)

type settings struct {
	Port             string
	DatabaseURL      string
	StoreURI         string
	DataRoot         string
	ConfigFile       string
	APIKey           string
	DatasetCacheSize int
	S3               storage.S3Config
	LogLevel         string
	LogFormat        string
}

// loadSettings reads LINKCAL_* environment variables.
func loadSettings() settings {
	v := viper.New()
	v.SetEnvPrefix("linkcal")
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "postgres://localhost:5432/linkcal?sslmode=disable")
	v.SetDefault("store_uri", "/tmp/linkcal-reports")
	v.SetDefault("dataset_cache_size", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	return settings{
		Port:             v.GetString("port"),
		DatabaseURL:      v.GetString("database_url"),
		StoreURI:         v.GetString("store_uri"),
		DataRoot:         v.GetString("data_root"),
		ConfigFile:       v.GetString("config"),
		APIKey:           v.GetString("api_key"),
		DatasetCacheSize: v.GetInt("dataset_cache_size"),
		S3: storage.S3Config{
			Region:    v.GetString("s3_region"),
			Endpoint:  v.GetString("s3_endpoint"),
			AccessKey: v.GetString("s3_access_key"),
			SecretKey: v.GetString("s3_secret_key"),
		},
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}
}

func main() {
	s := loadSettings()
	logging.Init(logging.ParseLevel(s.LogLevel), s.LogFormat)
	logger := logging.New("linkcald")

	if err := run(s, logger); err != nil {
		logger.Error("linkcald exited", "error", err)
		os.Exit(1)
	}
}

func run(s settings, logger *slog.Logger) error {
	cfg := config.DefaultConfig()
	if s.ConfigFile != "" {
		loaded, err := config.Load(s.ConfigFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	db, err := platform.OpenDB(s.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := platform.AutoMigrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, s.StoreURI, s.S3)
	if err != nil {
		return err
	}

	handler := api.NewHandler(runs.NewService(db), store, api.Options{
		Config:           cfg,
		DataRoot:         s.DataRoot,
		DatasetCacheSize: s.DatasetCacheSize,
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           newMux(handler, db, s.APIKey, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting linkcald", "port", s.Port, "store", s.StoreURI)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// newMux mounts the API behind request logging, CORS and API-key auth.
// The health check stays outside auth.
func newMux(handler *api.Handler, db pinger, apiKey string, logger *slog.Logger) http.Handler {
	apiMux := http.NewServeMux()
	handler.RegisterRoutes(apiMux)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler(db))
	mux.Handle("/api/", api.CORS(api.APIKeyAuth(apiKey)(apiMux)))

	return api.RequestLog(logger)(mux)
}

func healthHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
