// Command uploadd is a small upload service demonstrating the streaming
// multipart decoder: files are written to storage while the request body is
// still arriving, and form fields accompany them as metadata.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/partstream/partstream"
	"github.com/partstream/partstream/multipart"
	"github.com/partstream/partstream/pkg/config"
	"github.com/partstream/partstream/pkg/httpserver"
	"github.com/partstream/partstream/pkg/logger"
	"github.com/partstream/partstream/storage"
)

type storageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" envDefault:"local"`
	LocalDir string `env:"STORAGE_LOCAL_DIR" envDefault:"./uploads"`
	LocalURL string `env:"STORAGE_LOCAL_BASE_URL" envDefault:"/files"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		logCfg    logger.Config
		httpCfg   httpserver.Config
		uploadCfg multipart.Config
		storeCfg  storageConfig
	)
	config.MustLoad(&logCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&uploadCfg)
	config.MustLoad(&storeCfg)

	log := logger.NewFromConfig(logCfg, logger.SetAsDefault())

	store, err := newStorage(ctx, storeCfg)
	if err != nil {
		log.ErrorContext(ctx, "storage init failed", logger.Error(err))
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))

	r.With(partstream.Middleware(
		partstream.WithConfig(uploadCfg),
		partstream.WithLogger(log),
	)).Post("/upload", uploadHandler(store, log))

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.ErrorContext(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

func newStorage(ctx context.Context, cfg storageConfig) (storage.Storage, error) {
	if cfg.Backend == "s3" {
		var s3Cfg storage.S3Config
		config.MustLoad(&s3Cfg)
		return storage.NewS3Storage(ctx, s3Cfg)
	}
	return storage.NewLocalStorage(cfg.LocalDir, cfg.LocalURL)
}

type uploadResponse struct {
	Files  []*storage.File   `json:"files"`
	Fields map[string]string `json:"fields"`
}

// uploadHandler streams every file part of the request into storage and
// echoes back the stored locations together with the request's form fields.
func uploadHandler(store storage.Storage, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		fields := partstream.Fields(ctx)
		files := partstream.Files(ctx)

		meta := make(map[string]string)
		fieldsDone := make(chan struct{})
		go func() {
			defer close(fieldsDone)
			for f := range fields.C() {
				meta[f.Name] = f.Value
			}
		}()

		var saved []*storage.File
		for part := range files.C() {
			file, err := store.Save(ctx, part, storage.ObjectKey("", part))
			if err != nil {
				log.ErrorContext(ctx, "save failed",
					logger.Field(part.FieldName),
					logger.Filename(part.FileName),
					logger.Error(err))
				http.Error(w, err.Error(), multipart.StatusFor(err))
				return
			}
			log.InfoContext(ctx, "file stored",
				logger.Field(part.FieldName),
				logger.Filename(file.Filename),
				logger.Size(file.Size))
			saved = append(saved, file)
		}
		if err := files.Err(); err != nil {
			http.Error(w, err.Error(), multipart.StatusFor(err))
			return
		}
		<-fieldsDone
		if err := fields.Err(); err != nil {
			http.Error(w, err.Error(), multipart.StatusFor(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(uploadResponse{Files: saved, Fields: meta})
	}
}
