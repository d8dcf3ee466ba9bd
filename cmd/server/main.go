// Command server runs the moderation backend: it evaluates submitted
// conversation turns against a versioned rule set, drives each record through
// the verification state machine, and exposes the REST API plus the human
// review loop.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/omniguard/go-moderation-backend/internal/config"
	httpapi "github.com/omniguard/go-moderation-backend/internal/http"
	"github.com/omniguard/go-moderation-backend/internal/observability"
	"github.com/omniguard/go-moderation-backend/internal/repo"
	"github.com/omniguard/go-moderation-backend/internal/rules"
	"github.com/omniguard/go-moderation-backend/internal/sweeper"
	"github.com/omniguard/go-moderation-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// @title           Moderation Backend API
// @version         1.0
// @description     Compliance evaluation and verification service for conversation turns.
// @BasePath        /api/v1
func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Rule set
	reg, err := rules.NewRegistry(cfg.RulesPath)
	if err != nil {
		log.Fatal().Err(err).Str("rules_path", cfg.RulesPath).Msg("rule set load failed")
	}
	log.Info().
		Str("version", reg.Current().Version()).
		Int("rules", reg.Current().Len()).
		Msg("rule set loaded")
	if cfg.RulesWatch {
		go func() {
			if err := reg.Watch(ctx); err != nil {
				log.Warn().Err(err).Msg("rule set watcher stopped")
			}
		}()
	}

	// HTTP API
	r := gin.New()
	modSvc := httpapi.RegisterRoutes(r, db, reg, cfg)

	// Review dwell-time sweeper
	sw := sweeper.New(db, modSvc, cfg.Review)
	if err := sw.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("sweeper start failed")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	sw.Stop()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("shutdown complete")
}
