// Command server runs the disaster response coordination API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/aidgrid/platform/internal/app"
	"github.com/aidgrid/platform/internal/app/httpapi"
	"github.com/aidgrid/platform/internal/app/metrics"
	"github.com/aidgrid/platform/internal/app/storage/postgres"
	"github.com/aidgrid/platform/internal/config"
	"github.com/aidgrid/platform/internal/middleware"
	"github.com/aidgrid/platform/internal/platform/migrations"
	"github.com/aidgrid/platform/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}).WithField("component", "server")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	stores := app.Stores{}

	if cfg.Database.Driver == "postgres" && cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Apply(ctx, db); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		log.WithField("statements", migrations.Count()).Info("migrations applied")

		pg := postgres.New(db)
		stores = app.Stores{
			Users:       pg,
			Entities:    pg,
			Incidents:   pg,
			Assessments: pg,
			Responses:   pg,
			Commitments: pg,
			Gaps:        pg,
		}
	} else {
		log.Warn("no database configured, using in-memory storage")
	}

	application, err := app.New(cfg, stores, log)
	if err != nil {
		return fmt.Errorf("assemble application: %w", err)
	}

	audit, err := httpapi.NewAuditLog(cfg.Audit.MaxEntries, cfg.Audit.File)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer audit.Close()

	api := httpapi.New(application, audit, log.WithField("component", "httpapi"))

	auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), log.WithField("component", "auth"), httpapi.PublicPaths())
	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.WithField("component", "ratelimit"))

	root := mux.NewRouter()
	root.Handle("/metrics", metrics.Handler())
	root.PathPrefix("/").Handler(
		metrics.InstrumentHandler(cors.Handler(auth.Handler(limiter.Handler(api.Routes())))))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start background services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		_ = application.Stop(ctx)
		return err
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	return application.Stop(shutdownCtx)
}
