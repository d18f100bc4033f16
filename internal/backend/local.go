package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"cashflow/internal/core"
)

// SnapshotKey is the key the local backend stores the whole state under.
const SnapshotKey = "finance_app_data"

// KV is the key/value store backing the local backend.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Local keeps the whole state as one JSON snapshot and rewrites it on every
// change. Listeners are notified in-process; there is no cross-process sync.
type Local struct {
	kv     KV
	typ    Type
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

func NewLocal(kv KV, typ Type, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		kv:        kv,
		typ:       typ,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

func (l *Local) Type() Type { return l.typ }

func (l *Local) Load(ctx context.Context, uid string) (core.AppState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx, uid)
}

// read must be called with mu held.
func (l *Local) read(ctx context.Context, uid string) (core.AppState, error) {
	raw, ok, err := l.kv.Get(ctx, SnapshotKey)
	if err != nil {
		return core.AppState{}, fmt.Errorf("read local snapshot: %w", err)
	}
	if !ok {
		s := core.DefaultState()
		s.Profile.UID = uid
		return s, nil
	}
	var s core.AppState
	if err := json.Unmarshal(raw, &s); err != nil {
		return core.AppState{}, fmt.Errorf("decode local snapshot: %w", err)
	}
	if len(s.Accounts) == 0 {
		s.Accounts = core.DefaultAccounts()
	}
	if len(s.Categories) == 0 {
		s.Categories = core.DefaultCategories()
	}
	if s.Transactions == nil {
		s.Transactions = []core.Transaction{}
	}
	if s.Profile == nil {
		p := core.DefaultProfile(uid, "")
		s.Profile = &p
	}
	s.Mode = core.ModeTest
	return s, nil
}

// update applies fn to the stored snapshot, writes it back and notifies listeners.
func (l *Local) update(ctx context.Context, uid string, fn func(*core.AppState) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.read(ctx, uid)
	if err != nil {
		return err
	}
	if err := fn(&s); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode local snapshot: %w", err)
	}
	if err := l.kv.Put(ctx, SnapshotKey, raw); err != nil {
		return fmt.Errorf("write local snapshot: %w", err)
	}
	l.notify(s)
	return nil
}

func (l *Local) notify(s core.AppState) {
	for _, ln := range l.listeners {
		c := s.Clone()
		ln.accounts(c.Accounts)
		ln.transactions(c.Transactions)
		ln.profile(c.Profile)
	}
}

func (l *Local) Subscribe(ctx context.Context, uid string, ln Listener) (Unsubscribe, error) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = ln
	l.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.listeners, id)
			l.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return unsub, nil
}

func (l *Local) CreateAccount(ctx context.Context, uid string, a core.Account) error {
	return l.update(ctx, uid, func(s *core.AppState) error {
		if _, exists := s.FindAccount(a.ID); exists {
			return nil
		}
		s.Accounts = append(s.Accounts, a)
		return nil
	})
}

func (l *Local) CreateTransaction(ctx context.Context, uid string, tx core.Transaction) error {
	return l.update(ctx, uid, func(s *core.AppState) error {
		if _, exists := s.FindTransaction(tx.ID); exists {
			return nil
		}
		if _, ok := s.FindAccount(tx.AccountID); !ok {
			return core.ErrUnknownAccount
		}
		s.Transactions = core.PrependTransaction(s.Transactions, tx)
		s.Accounts = core.ApplyTransaction(s.Accounts, tx)
		return nil
	})
}

func (l *Local) DeleteTransaction(ctx context.Context, uid string, tx core.Transaction) error {
	return l.update(ctx, uid, func(s *core.AppState) error {
		stored, ok := s.FindTransaction(tx.ID)
		if !ok {
			return nil
		}
		s.Transactions, _ = core.RemoveTransaction(s.Transactions, stored.ID)
		s.Accounts = core.RevertTransaction(s.Accounts, stored)
		return nil
	})
}

func (l *Local) SaveProfile(ctx context.Context, uid string, p core.UserProfile) error {
	return l.update(ctx, uid, func(s *core.AppState) error {
		p = p.Clone()
		s.Profile = &p
		return nil
	})
}

// Clear drops the stored snapshot and notifies listeners with seed data.
func (l *Local) Clear(ctx context.Context, uid string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.kv.Delete(ctx, SnapshotKey); err != nil {
		return fmt.Errorf("clear local snapshot: %w", err)
	}
	s := core.DefaultState()
	s.Profile.UID = uid
	l.notify(s)
	l.logger.InfoContext(ctx, "Local data cleared", "backend", l.typ)
	return nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = make(map[int]Listener)
	return nil
}

// MemoryKV is an in-process KV. Data is lost when the process exits.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
