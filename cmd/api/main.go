package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/docguard/internal/app"
	"github.com/bryanwahyu/docguard/internal/application"
	appanalysis "github.com/bryanwahyu/docguard/internal/application/analysis"
	"github.com/bryanwahyu/docguard/internal/config"
	"github.com/bryanwahyu/docguard/internal/domain/compliance"
	"github.com/bryanwahyu/docguard/internal/domain/session"
	"github.com/bryanwahyu/docguard/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/docguard/internal/infra/storage"
	"github.com/bryanwahyu/docguard/internal/logging"
	"github.com/bryanwahyu/docguard/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, ring, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger, ring); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, ring *logging.Ring) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := app.Database(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.DB.Close()

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: repos.DB},
	}

	svc := &appanalysis.Service{
		Normalizer: compliance.NewNormalizer(),
		Reports:    repos.Reports,
		Failures:   repos.Failures,
		Clock:      application.SystemClock{},
		Log:        logger.Named("analysis"),
		Limits: appanalysis.Limits{
			MaxUploadBytes: cfg.Limits.MaxUploadBytes,
			DocumentTypes:  cfg.Limits.DocumentTypes,
		},
	}

	if cfg.MinioEnabled() {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		svc.Archive = store
		checkers["storage"] = store
	}

	svc.Backend, err = app.Backend(cfg, logger)
	if err != nil {
		return err
	}

	sessions := session.NewStore(session.Options{
		ProgressInterval: cfg.Limits.ProgressInterval,
		ProgressStep:     cfg.Limits.ProgressStep,
		ProgressCap:      cfg.Limits.ProgressCap,
		AnchorLines:      cfg.Limits.AnchorLines,
	}, application.SystemClock{})
	defer sessions.CloseAll()
	svc.Sessions = sessions
	go sessions.RunJanitor(ctx, time.Minute, cfg.Limits.SessionIdleTTL)

	handler := httpserver.NewRouter(ctx, svc, httpserver.Options{
		Log:            logger.Named("http"),
		Ring:           ring,
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateCapacity:   cfg.Server.RateCapacity,
		RateRefill:     cfg.Server.RateRefill,
		Checkers:       checkers,
		MaxBodyBytes:   cfg.Limits.MaxUploadBytes * 2,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// analyze blocks until the backend answers
		WriteTimeout: cfg.Backend.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("database", cfg.Database.Driver),
			zap.String("backend", cfg.Backend.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}
