package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable local store: a key/value table holding
// whole-state snapshots plus the activity log written by the worker.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Get returns the value stored under key. ok is false when the key is absent.
func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.queries.GetSnapshot(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get snapshot %s: %w", key, err)
	}
	return value, true, nil
}

// Put overwrites the value stored under key.
func (r *SQLiteRepository) Put(ctx context.Context, key string, value []byte) error {
	if err := r.queries.UpsertSnapshot(ctx, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("put snapshot %s: %w", key, err)
	}
	slog.DebugContext(ctx, "Snapshot saved to SQLite", "key", key, "bytes", len(value))
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if err := r.queries.DeleteSnapshot(ctx, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return nil
}

// ActivityEntry is one committed ledger mutation as recorded by the worker.
type ActivityEntry struct {
	ID         int64     `json:"id"`
	MutationID string    `json:"mutationId"`
	UID        string    `json:"uid"`
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary"`
	Amount     string    `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
	RecordedAt time.Time `json:"recordedAt"`
}

// AppendActivity records e. It reports false when the mutation was already recorded.
func (r *SQLiteRepository) AppendActivity(ctx context.Context, e ActivityEntry) (bool, error) {
	n, err := r.queries.InsertActivity(ctx, InsertActivityParams{
		MutationID: e.MutationID,
		UID:        e.UID,
		Kind:       e.Kind,
		Summary:    e.Summary,
		Amount:     e.Amount,
		OccurredAt: e.OccurredAt.UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("insert activity: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Activity already recorded", "mutation_id", e.MutationID)
		return false, nil
	}
	slog.InfoContext(ctx, "Activity saved to SQLite",
		"mutation_id", e.MutationID,
		"kind", e.Kind,
		"uid", e.UID)
	return true, nil
}

// ListActivity returns the most recent entries, newest first.
func (r *SQLiteRepository) ListActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.queries.ListActivity(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	out := make([]ActivityEntry, len(rows))
	for i, row := range rows {
		out[i] = ActivityEntry(row)
	}
	return out, nil
}
