// Package app holds the process-wide session: which persistence mode is
// active, who is signed in, and the ledger store bound to that choice.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cashflow/internal/auth"
	"cashflow/internal/backend"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
)

var (
	ErrCloudUnavailable = errors.New("cloud mode is not configured; set the Firebase settings to enable it")
	ErrNoMode           = errors.New("no mode selected; choose test mode or sign in")
	ErrModeActive       = errors.New("a session is already active; log out first")
)

type Options struct {
	// Cloud and Auth are nil when cloud persistence is not configured.
	Cloud backend.Backend
	Auth  auth.Provider
	Local backend.Backend

	Publisher   ledger.ActivityPublisher
	SearchCache cache.Cache[[]core.Transaction]
	Logger      *slog.Logger
}

type Shell struct {
	cloud       backend.Backend
	local       backend.Backend
	auth        auth.Provider
	publisher   ledger.ActivityPublisher
	searchCache cache.Cache[[]core.Transaction]
	baseLogger  *slog.Logger
	logger      *slog.Logger

	mu       sync.RWMutex
	mode     core.Mode
	identity *auth.Identity
	store    *ledger.Store
}

func New(opts Options) *Shell {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Shell{
		cloud:       opts.Cloud,
		local:       opts.Local,
		auth:        opts.Auth,
		publisher:   opts.Publisher,
		searchCache: opts.SearchCache,
		baseLogger:  opts.Logger,
		logger:      opts.Logger.With(log.FieldComponent, log.ComponentApp),
		mode:        core.ModeSelection,
	}
}

// CloudAvailable reports whether production mode can be entered.
func (s *Shell) CloudAvailable() bool {
	return s.cloud != nil && s.auth != nil
}

// Start enters test mode right away when cloud is not configured.
func (s *Shell) Start(ctx context.Context) error {
	if s.CloudAvailable() {
		s.logger.InfoContext(ctx, "Waiting for mode selection", "cloud", true)
		return nil
	}
	s.logger.InfoContext(ctx, "Cloud not configured, starting in test mode")
	return s.ChooseTestMode(ctx)
}

func (s *Shell) Mode() core.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Identity returns the signed-in user, if any.
func (s *Shell) Identity() (auth.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return auth.Identity{}, false
	}
	return *s.identity, true
}

// Ledger returns the active store.
func (s *Shell) Ledger() (*ledger.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, ErrNoMode
	}
	return s.store, nil
}

// ChooseTestMode binds a store to the local backend. Calling it again while
// in test mode is a no-op.
func (s *Shell) ChooseTestMode(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case core.ModeTest:
		return nil
	case core.ModeProduction:
		return ErrModeActive
	}
	store, err := s.attach(ctx, s.local, core.LocalUID, "", core.ModeTest)
	if err != nil {
		return err
	}
	s.store = store
	s.mode = core.ModeTest
	s.logger.InfoContext(ctx, "Entered test mode", "backend", s.local.Type())
	return nil
}

func (s *Shell) SignIn(ctx context.Context, email, password string) (auth.Identity, error) {
	return s.enterProduction(ctx, "sign_in", func() (auth.Identity, error) {
		return s.auth.SignIn(ctx, email, password)
	})
}

// SignUp registers the user; the first attach creates their default profile.
func (s *Shell) SignUp(ctx context.Context, email, password string) (auth.Identity, error) {
	return s.enterProduction(ctx, "sign_up", func() (auth.Identity, error) {
		return s.auth.SignUp(ctx, email, password)
	})
}

func (s *Shell) enterProduction(ctx context.Context, op string, authenticate func() (auth.Identity, error)) (auth.Identity, error) {
	if !s.CloudAvailable() {
		return auth.Identity{}, ErrCloudUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != core.ModeSelection {
		return auth.Identity{}, ErrModeActive
	}

	id, err := authenticate()
	if err != nil {
		return auth.Identity{}, err
	}
	store, err := s.attach(ctx, s.cloud, id.UID, id.Email, core.ModeProduction)
	if err != nil {
		return auth.Identity{}, err
	}
	s.identity = &id
	s.store = store
	s.mode = core.ModeProduction
	s.logger.InfoContext(ctx, "Entered production mode", "operation", op, "uid", id.UID)
	return id, nil
}

// Logout signs out, drops the store and returns to mode selection.
func (s *Shell) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == core.ModeSelection {
		return nil
	}
	if s.identity != nil && s.auth != nil {
		if err := s.auth.SignOut(ctx, s.identity.UID); err != nil {
			s.logger.WarnContext(ctx, "Sign-out failed, clearing session anyway", "uid", s.identity.UID, "error", err)
		}
	}
	if s.store != nil {
		s.store.Wait()
		s.store.Reset()
	}
	s.store = nil
	s.identity = nil
	s.mode = core.ModeSelection
	s.logger.InfoContext(ctx, "Logged out")
	return nil
}

// Close detaches the active store and waits for pending writes.
func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		s.store.Close()
	}
}

func (s *Shell) attach(ctx context.Context, b backend.Backend, uid, email string, mode core.Mode) (*ledger.Store, error) {
	if s.searchCache != nil {
		s.searchCache.Purge()
	}
	store := ledger.New(b, ledger.Options{
		UID:         uid,
		Email:       email,
		Mode:        mode,
		Publisher:   s.publisher,
		Logger:      s.baseLogger,
		SearchCache: s.searchCache,
	})
	if err := store.Attach(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("attach %s ledger: %w", mode, err)
	}
	return store, nil
}
