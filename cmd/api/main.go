package main

import (
	"context"
	"diabetes-backend/cmd"
	"diabetes-backend/internal/api"
	"diabetes-backend/internal/artifact"
	"diabetes-backend/internal/config"
	"diabetes-backend/internal/core"
	"diabetes-backend/internal/metrics"
	"diabetes-backend/internal/storage"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func createServer(cfg *config.Config, pipeline *core.Pipeline) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300, // Cache preflight response for 5 minutes
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	service := api.NewPredictionService(pipeline, metrics.New())
	service.AddRoutes(r)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
}

func loadPipeline(ctx context.Context, cfg *config.Config) (*core.Pipeline, error) {
	var s3Provider storage.Provider
	if cfg.UsesS3() {
		p, err := storage.NewS3Provider(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		s3Provider = p
	}

	loader := artifact.NewLoader(s3Provider, cfg.ArtifactCacheDir)

	return artifact.LoadPipeline(ctx, loader, artifact.PipelineConfig{
		ModelPath:  cfg.ModelPath,
		ModelType:  core.ModelType(cfg.ModelType),
		ScalerPath: cfg.ScalerPath,
		Onnx:       cfg.OnnxConfig(),
	})
}

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	level, _ := cfg.SlogLevel()
	logCloser, err := cmd.SetupLogging(level, cfg.LogFile)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logCloser.Close()

	slog.Info("starting prediction server", "port", cfg.Port, "model_path", cfg.ModelPath, "scaler_path", cfg.ScalerPath, "allowed_origins", cfg.AllowedOrigins)

	if cfg.UsesOnnx() {
		if err := core.InitOnnxRuntime(cfg.OnnxRuntimeDylib); err != nil {
			log.Fatalf("could not init ONNX Runtime: %v", err)
		}
		defer func() {
			if err := core.DestroyOnnxRuntime(); err != nil {
				slog.Error("error destroying onnx env", "error", err)
			}
		}()
	}

	pipeline, err := loadPipeline(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Fatal: %v", err)
	}
	defer pipeline.Release()

	server := createServer(cfg, pipeline)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("could not listen on %s: %v", server.Addr, err)
	}

	slog.Info("server stopped")
}
