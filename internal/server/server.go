// HTTP server initialization and lifecycle management.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaykumar-cb/buster/internal/api"
	"github.com/jaykumar-cb/buster/internal/cron"
	"github.com/jaykumar-cb/buster/internal/infra/config"
	"github.com/jaykumar-cb/buster/internal/infra/logging"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default HTTP server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server wraps the HTTP server, the database, and the background refresher.
type Server struct {
	config    Config
	db        *sql.DB
	http      *http.Server
	refresher *cron.Refresher
	log       *logrus.Entry
}

// NewServer builds the full application: router, domain services, and the
// catalog refresher, listening per the given configuration.
func NewServer(db *sql.DB, appCfg config.Config) (*Server, error) {
	router, services, err := api.NewRouter(db, appCfg)
	if err != nil {
		return nil, fmt.Errorf("server: build router: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Host = appCfg.Server.Host
	cfg.Port = appCfg.Server.Port

	// WriteTimeout stays unset on purpose: the chat endpoint streams SSE for
	// longer than any fixed response deadline.
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}

	refresher := cron.NewRefresher(db, services.Datasets, services.Metrics, services.Bus,
		appCfg.Cron.RefreshSchedule, logging.Named("cron"))

	return &Server{
		config:    cfg,
		db:        db,
		http:      httpServer,
		refresher: refresher,
		log:       logging.Named("server"),
	}, nil
}

// Start runs the refresher and the HTTP server, blocking until the listener
// stops. A graceful Shutdown does not surface http.ErrServerClosed.
func (s *Server) Start(ctx context.Context) error {
	if err := s.refresher.Start(ctx); err != nil {
		return fmt.Errorf("server: start refresher: %w", err)
	}

	s.log.WithField("addr", s.http.Addr).Info("http server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the refresher, drains the HTTP server, and closes the DB.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")

	s.refresher.Stop()

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("database close error: %w", err)
	}

	s.log.Info("shutdown complete")
	return nil
}
