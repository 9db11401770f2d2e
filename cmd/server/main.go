// Command server runs the tweet feed HTTP API.
//
// Usage:
//
//	server                    start the API (configuration from env and .env)
//	server hash-password [pw] print a bcrypt hash for ADMIN_PASSWORD
//
// @title       Tweet Feed API
// @version     1.0
// @description Aggregates recent tweets of registered accounts behind a one hour read-through cache.
// @BasePath    /api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-tweet-feed/internal/config"
	httpapi "github.com/tbourn/go-tweet-feed/internal/http"
	"github.com/tbourn/go-tweet-feed/internal/observability"
	"github.com/tbourn/go-tweet-feed/internal/repo"
	"github.com/tbourn/go-tweet-feed/internal/sysutil"
	"github.com/tbourn/go-tweet-feed/internal/twitter"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		os.Exit(hashPassword(os.Args[2:], os.Stdin, os.Stdout, os.Stderr))
	}

	// A missing .env is normal in containers.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	logger := sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	version := sysutil.Version(os.Getenv("APP_VERSION"))

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}

	db, err := repo.Open(cfg.Storage.Driver, cfg.Storage.DSN())
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	go purgeLoop(ctx, db, cfg.Storage.PurgeInterval, logger)

	client := twitter.New(twitter.Options{
		BaseURL:     cfg.Twitter.BaseURL,
		BearerToken: cfg.Twitter.BearerToken,
		Timeout:     cfg.Twitter.Timeout,
		RPS:         cfg.Twitter.RPS,
		Burst:       cfg.Twitter.Burst,
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, client, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("db_driver", cfg.Storage.Driver).
			Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("otel shutdown")
	}
	logger.Info().Dur("grace", cfg.ShutdownTimeout).Msg("shutdown complete")
	return nil
}
