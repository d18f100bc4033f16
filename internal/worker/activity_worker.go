package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/storage"
)

// ActivityStore persists activity entries.
type ActivityStore interface {
	AppendActivity(ctx context.Context, e storage.ActivityEntry) (bool, error)
}

// ActivityWorker records committed ledger mutations consumed from AMQP.
type ActivityWorker struct {
	store ActivityStore

	processed  atomic.Int64
	duplicates atomic.Int64
}

func NewActivityWorker(store ActivityStore) *ActivityWorker {
	return &ActivityWorker{store: store}
}

// HandleActivityMessage stores one message. Redelivered messages are
// acknowledged without writing a second row.
func (w *ActivityWorker) HandleActivityMessage(ctx context.Context, msg *amqp.ActivityMessage) error {
	if msg.UID == "" || msg.Kind == "" {
		// Requeueing would loop forever on a malformed message.
		slog.WarnContext(ctx, "Dropping incomplete activity message", "mutation_id", msg.MutationID)
		return nil
	}

	occurred := msg.Timestamp
	if occurred.IsZero() {
		occurred = time.Now()
	}

	slog.InfoContext(ctx, "Processing activity message",
		"mutation_id", msg.MutationID,
		"kind", msg.Kind)

	inserted, err := w.store.AppendActivity(ctx, storage.ActivityEntry{
		MutationID: msg.MutationID,
		UID:        msg.UID,
		Kind:       msg.Kind,
		Summary:    msg.Summary,
		Amount:     msg.Amount,
		OccurredAt: occurred,
	})
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	if !inserted {
		w.duplicates.Add(1)
		return nil
	}
	w.processed.Add(1)
	return nil
}

// Stats reports how many messages were stored and how many were redeliveries.
func (w *ActivityWorker) Stats() (processed, duplicates int64) {
	return w.processed.Load(), w.duplicates.Load()
}
