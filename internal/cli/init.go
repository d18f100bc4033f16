// Package cli holds the startup and shutdown steps shared by cmd/cashflow
// and cmd/cashflow-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cashflow/internal/config"
	"cashflow/internal/log"
)

// Bootstrap loads .env when present, installs the process logger for
// component and returns the validated configuration. Invalid configuration
// exits the process.
func Bootstrap(component string) (*log.Logger, *config.Config) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return logger, cfg
}

// Fatal logs msg with args and exits with status 1.
func Fatal(logger *log.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}

// Shutdown coordinates a signal-driven stop. Context is cancelled on SIGINT
// or SIGTERM; Wait then runs the cleanup steps in order under one deadline.
type Shutdown struct {
	ctx     context.Context
	stop    context.CancelFunc
	logger  *log.Logger
	timeout time.Duration
	steps   []func(context.Context)
}

func NewShutdown(logger *log.Logger, timeout time.Duration) *Shutdown {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return &Shutdown{ctx: ctx, stop: stop, logger: logger, timeout: timeout}
}

func (s *Shutdown) Context() context.Context { return s.ctx }

// OnStop registers a cleanup step. Steps run in registration order.
func (s *Shutdown) OnStop(step func(context.Context)) {
	s.steps = append(s.steps, step)
}

// Wait blocks until a signal arrives or the context is otherwise cancelled,
// then runs the cleanup steps. Steps still running at the deadline are
// abandoned.
func (s *Shutdown) Wait() {
	<-s.ctx.Done()
	s.stop()
	s.logger.Info("Shutdown started", "cause", context.Cause(s.ctx))

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for _, step := range s.steps {
			step(ctx)
		}
	}()

	select {
	case <-finished:
		s.logger.Info("Shutdown complete")
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout reached", "timeout", s.timeout)
	}
}

// Trigger starts the shutdown without a signal, e.g. after a fatal server
// error.
func (s *Shutdown) Trigger() { s.stop() }
