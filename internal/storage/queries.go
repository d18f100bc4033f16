package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getSnapshot = `SELECT value FROM snapshots WHERE key = ?`

func (q *Queries) GetSnapshot(ctx context.Context, key string) ([]byte, error) {
	row := q.db.QueryRowContext(ctx, getSnapshot, key)
	var value []byte
	err := row.Scan(&value)
	return value, err
}

const upsertSnapshot = `INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (q *Queries) UpsertSnapshot(ctx context.Context, key string, value []byte, at time.Time) error {
	_, err := q.db.ExecContext(ctx, upsertSnapshot, key, value, at)
	return err
}

const deleteSnapshot = `DELETE FROM snapshots WHERE key = ?`

func (q *Queries) DeleteSnapshot(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteSnapshot, key)
	return err
}

type InsertActivityParams struct {
	MutationID string
	UID        string
	Kind       string
	Summary    string
	Amount     string
	OccurredAt time.Time
}

// Duplicate deliveries of the same mutation are ignored.
const insertActivity = `INSERT INTO activity_log (mutation_id, uid, kind, summary, amount, occurred_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(mutation_id) DO NOTHING`

func (q *Queries) InsertActivity(ctx context.Context, arg InsertActivityParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertActivity,
		arg.MutationID, arg.UID, arg.Kind, arg.Summary, arg.Amount, arg.OccurredAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type ActivityRow struct {
	ID         int64
	MutationID string
	UID        string
	Kind       string
	Summary    string
	Amount     string
	OccurredAt time.Time
	RecordedAt time.Time
}

const listActivity = `SELECT id, mutation_id, uid, kind, summary, amount, occurred_at, recorded_at
FROM activity_log ORDER BY occurred_at DESC, id DESC LIMIT ?`

func (q *Queries) ListActivity(ctx context.Context, limit int64) ([]ActivityRow, error) {
	rows, err := q.db.QueryContext(ctx, listActivity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActivityRow
	for rows.Next() {
		var i ActivityRow
		if err := rows.Scan(&i.ID, &i.MutationID, &i.UID, &i.Kind, &i.Summary, &i.Amount,
			&i.OccurredAt, &i.RecordedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
