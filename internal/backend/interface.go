package backend

import (
	"context"
	"errors"

	"cashflow/internal/core"
)

// ErrUnsupported is returned for operations a backend deliberately does not offer.
var ErrUnsupported = errors.New("operation not supported by this backend")

//go:generate mockgen -source=interface.go -destination=backend_mock.go -package=backend

// Backend persists one user's ledger. Implementations must keep each
// account's balance reconciled with its transactions: CreateTransaction and
// DeleteTransaction adjust the owning account in the same write.
type Backend interface {
	Type() Type

	// Load reads the full state once. Missing data yields seed data, never an
	// empty account list.
	Load(ctx context.Context, uid string) (core.AppState, error)

	// Subscribe registers l for change notifications until the returned
	// function is called or ctx is done.
	Subscribe(ctx context.Context, uid string, l Listener) (Unsubscribe, error)

	CreateAccount(ctx context.Context, uid string, a core.Account) error
	CreateTransaction(ctx context.Context, uid string, tx core.Transaction) error
	// DeleteTransaction is a no-op when the transaction does not exist.
	DeleteTransaction(ctx context.Context, uid string, tx core.Transaction) error
	SaveProfile(ctx context.Context, uid string, p core.UserProfile) error
	Clear(ctx context.Context, uid string) error

	Close() error
}

// Listener receives whole-collection replacements. Nil callbacks are skipped.
type Listener struct {
	Accounts     func([]core.Account)
	Transactions func([]core.Transaction)
	Profile      func(*core.UserProfile)
}

func (l Listener) accounts(a []core.Account) {
	if l.Accounts != nil {
		l.Accounts(a)
	}
}

func (l Listener) transactions(t []core.Transaction) {
	if l.Transactions != nil {
		l.Transactions(t)
	}
}

func (l Listener) profile(p *core.UserProfile) {
	if l.Profile != nil {
		l.Profile(p)
	}
}

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Type identifies a backend implementation.
type Type string

const (
	FirestoreBackend Type = "firestore"
	SQLiteBackend    Type = "sqlite"
	MemoryBackend    Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case FirestoreBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// IsCloud reports whether data is synced to the remote store.
func (t Type) IsCloud() bool {
	return t == FirestoreBackend
}
