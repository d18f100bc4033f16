// Package ledger is the application state container. It owns the current
// snapshot, applies named actions optimistically and reconciles them with
// the persistence backend.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/amqp"
	"cashflow/internal/backend"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/log"
)

// ActivityPublisher receives committed mutations.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, msg *amqp.ActivityMessage) error
}

type Options struct {
	UID   string
	Email string
	Mode  core.Mode

	Publisher ActivityPublisher
	Logger    *slog.Logger

	// SearchCache caches search results. Nil disables caching.
	SearchCache cache.Cache[[]core.Transaction]

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Store holds the published snapshot as base state (what the backend last
// reported) plus an overlay of pending mutations. The view handed to callers
// is the overlay folded onto the base, so a failed write disappears from the
// view simply by leaving the overlay.
//
// Account balances in the view are replayed from each account's opening
// balance and the view's ledger. Backends report accounts and transactions
// on separate streams, so a reported balance may already include a
// transaction the reported ledger does not show yet; replaying keeps the
// balance equal to the opening balance plus the visible ledger.
type Store struct {
	backend   backend.Backend
	uid       string
	email     string
	mode      core.Mode
	publisher ActivityPublisher
	logger    *slog.Logger
	search    cache.Cache[[]core.Transaction]
	now       func() time.Time
	newID     func() string

	// gate is held shared by submit and exclusively by ClearAllData, so no
	// mutation starts while a clear waits for in-flight writes.
	gate sync.RWMutex

	mu        sync.RWMutex
	base      core.AppState
	opening   map[string]core.Money
	view      core.AppState
	version   uint64
	records   map[string]*record
	order     []string
	pending   []string
	observers []func(core.AppState)
	unsub     backend.Unsubscribe

	wg sync.WaitGroup
}

func New(b backend.Backend, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.UID == "" {
		opts.UID = core.LocalUID
	}
	if !opts.Mode.Valid() || opts.Mode == core.ModeSelection {
		opts.Mode = core.ModeTest
	}

	base := core.DefaultState()
	base.Mode = opts.Mode
	base.Profile = nil

	s := &Store{
		backend:   b,
		uid:       opts.UID,
		email:     opts.Email,
		mode:      opts.Mode,
		publisher: opts.Publisher,
		logger:    opts.Logger.With(log.FieldComponent, log.ComponentLedger, log.FieldUID, opts.UID),
		search:    opts.SearchCache,
		now:       opts.Now,
		newID:     opts.NewID,
		base:      base,
		records:   make(map[string]*record),
		opening:   make(map[string]core.Money),
	}
	s.view = base.Clone()
	return s
}

func (s *Store) UID() string { return s.uid }
func (s *Store) Mode() core.Mode { return s.mode }
func (s *Store) BackendType() backend.Type { return s.backend.Type() }
func (s *Store) Backend() backend.Backend { return s.backend }

// Attach loads the persisted state and subscribes to backend changes. The
// subscription outlives ctx; it ends with Detach.
func (s *Store) Attach(ctx context.Context) error {
	st, err := s.backend.Load(ctx, s.uid)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	st.Mode = s.mode
	if len(st.Accounts) == 0 {
		st.Accounts = core.DefaultAccounts()
	}
	if len(st.Categories) == 0 {
		st.Categories = core.DefaultCategories()
	}

	if st.Profile == nil {
		p := core.DefaultProfile(s.uid, s.email)
		st.Profile = &p
		if err := s.backend.SaveProfile(ctx, s.uid, p); err != nil {
			s.logger.WarnContext(ctx, "Failed to create default profile", "error", err)
		}
	}

	s.mu.Lock()
	s.base = st
	s.opening = make(map[string]core.Money)
	s.anchorLocked(st.Accounts, st.Transactions)
	obs := s.recomputeLocked()
	s.mu.Unlock()
	s.emit(obs)

	unsub, err := s.backend.Subscribe(context.WithoutCancel(ctx), s.uid, backend.Listener{
		Accounts:     s.replaceAccounts,
		Transactions: s.replaceTransactions,
		Profile:      s.replaceProfile,
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Ledger attached",
		"backend", s.backend.Type(),
		"accounts", len(st.Accounts),
		"transactions", len(st.Transactions))
	return nil
}

// Detach stops the backend subscription.
func (s *Store) Detach() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Close detaches and waits for in-flight writes.
func (s *Store) Close() {
	s.Detach()
	s.Wait()
}

// Wait blocks until every in-flight backend write has settled.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) replaceAccounts(a []core.Account) {
	if len(a) == 0 {
		a = core.DefaultAccounts()
	}
	s.mu.Lock()
	s.anchorLocked(a, s.base.Transactions)
	s.base.Accounts = a
	obs := s.recomputeLocked()
	s.mu.Unlock()
	s.emit(obs)
}

func (s *Store) replaceTransactions(t []core.Transaction) {
	t = core.SortNewestFirst(t)
	s.mu.Lock()
	s.base.Transactions = t
	obs := s.recomputeLocked()
	s.mu.Unlock()
	s.emit(obs)
}

func (s *Store) replaceProfile(p *core.UserProfile) {
	if p == nil {
		return
	}
	s.mu.Lock()
	cp := p.Clone()
	s.base.Profile = &cp
	obs := s.recomputeLocked()
	s.mu.Unlock()
	s.emit(obs)
}

type notification struct {
	state     core.AppState
	observers []func(core.AppState)
}

// recomputeLocked folds pending mutations onto the base. Must hold mu.
func (s *Store) recomputeLocked() notification {
	v := s.base.Clone()
	for _, id := range s.pending {
		v = s.records[id].apply(v)
	}
	v.Accounts = s.replayLocked(v)
	v.Mode = s.mode
	s.view = v
	s.version++
	return notification{state: v.Clone(), observers: slices.Clone(s.observers)}
}

// anchorLocked records the opening balance of accounts seen for the first
// time: the reported balance minus the effect of txs on it. Must hold mu.
func (s *Store) anchorLocked(accounts []core.Account, txs []core.Transaction) {
	for _, a := range accounts {
		if _, known := s.opening[a.ID]; !known {
			s.opening[a.ID] = core.UnwindBalance(a.Balance, txs, a.ID)
		}
	}
}

// replayLocked returns v's accounts with balances replayed from their
// opening balances over v's ledger. Must hold mu.
func (s *Store) replayLocked(v core.AppState) []core.Account {
	s.anchorLocked(v.Accounts, v.Transactions)
	out := make([]core.Account, len(v.Accounts))
	for i, a := range v.Accounts {
		if bal := core.ReplayBalance(s.opening[a.ID], v.Transactions, a.ID); !bal.Equal(a.Balance) {
			a.Balance = bal
		}
		out[i] = a
	}
	return out
}

func (s *Store) emit(n notification) {
	for _, fn := range n.observers {
		fn(n.state)
	}
}

// Snapshot returns a copy of the current view.
func (s *Store) Snapshot() core.AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Clone()
}

// Version increases on every change to the view.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// OnChange registers fn to be called with every new view. fn must not call
// back into the store's mutating actions synchronously.
func (s *Store) OnChange(fn func(core.AppState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Search filters transactions by category name or note, case-insensitively.
func (s *Store) Search(query string) []core.Transaction {
	s.mu.RLock()
	version := s.version
	view := s.view
	s.mu.RUnlock()

	key := fmt.Sprintf("%d|%s", version, strings.ToLower(strings.TrimSpace(query)))
	if s.search != nil {
		if hit, ok := s.search.Get(key); ok {
			return append([]core.Transaction(nil), hit...)
		}
	}
	res := view.Search(query)
	if s.search != nil {
		s.search.Set(key, res)
	}
	return append([]core.Transaction(nil), res...)
}

// Reset discards all state and history, as on logout.
func (s *Store) Reset() {
	s.Detach()
	s.mu.Lock()
	base := core.DefaultState()
	base.Profile = nil
	base.Mode = core.ModeSelection
	s.base = base
	s.opening = make(map[string]core.Money)
	s.pending = nil
	s.records = make(map[string]*record)
	s.order = nil
	obs := s.recomputeLocked()
	s.view.Mode = core.ModeSelection
	obs.state.Mode = core.ModeSelection
	s.mu.Unlock()
	if s.search != nil {
		s.search.Purge()
	}
	s.emit(obs)
}
