package ledger

import (
	"context"
	"errors"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
)

type MutationKind string

const (
	KindAddTransaction    MutationKind = "add_transaction"
	KindDeleteTransaction MutationKind = "delete_transaction"
	KindAddAccount        MutationKind = "add_account"
	KindUpdateBudget      MutationKind = "update_budget"
	KindUpdateDisplayName MutationKind = "update_display_name"
)

type MutationStatus string

const (
	StatusPending   MutationStatus = "pending"
	StatusCommitted MutationStatus = "committed"
	StatusFailed    MutationStatus = "failed"
)

// Mutation is the externally visible record of one action.
type Mutation struct {
	ID        string         `json:"id"`
	Kind      MutationKind   `json:"kind"`
	Status    MutationStatus `json:"status"`
	EntityID  string         `json:"entityId"`
	Summary   string         `json:"summary"`
	Amount    string         `json:"amount,omitempty"`
	Error     string         `json:"error,omitempty"`
	Attempts  int            `json:"attempts"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

var (
	ErrMutationNotFound = errors.New("mutation not found")
	ErrNotRetryable     = errors.New("only failed mutations can be retried")
)

const (
	writeTimeout = 30 * time.Second
	maxHistory   = 200
)

// record pairs a mutation with its optimistic apply function and its backend
// write. apply must be idempotent: it runs on every recompute while pending
// and once more against the base when committed.
type record struct {
	m     Mutation
	apply func(core.AppState) core.AppState
	write func(ctx context.Context) error
}

// submit applies rec optimistically and starts its backend write.
func (s *Store) submit(ctx context.Context, rec *record) Mutation {
	s.gate.RLock()
	defer s.gate.RUnlock()

	now := s.now()
	s.mu.Lock()
	if _, known := s.records[rec.m.ID]; !known {
		rec.m.CreatedAt = now
		s.records[rec.m.ID] = rec
		s.order = append(s.order, rec.m.ID)
		s.trimHistoryLocked()
	}
	rec.m.Status = StatusPending
	rec.m.Error = ""
	rec.m.Attempts++
	rec.m.UpdatedAt = now
	s.pending = append(s.pending, rec.m.ID)
	obs := s.recomputeLocked()
	m := rec.m
	s.mu.Unlock()
	s.emit(obs)

	s.logger.DebugContext(ctx, "Mutation pending", "mutation_id", m.ID, "kind", m.Kind, "attempt", m.Attempts)

	s.wg.Add(1)
	go s.run(context.WithoutCancel(ctx), rec)
	return m
}

func (s *Store) run(ctx context.Context, rec *record) {
	defer s.wg.Done()

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	err := rec.write(wctx)
	cancel()

	s.mu.Lock()
	s.pending = removeID(s.pending, rec.m.ID)
	if err == nil {
		rec.m.Status = StatusCommitted
		s.base = rec.apply(s.base)
	} else {
		rec.m.Status = StatusFailed
		rec.m.Error = err.Error()
	}
	rec.m.UpdatedAt = s.now()
	m := rec.m
	obs := s.recomputeLocked()
	s.mu.Unlock()
	s.emit(obs)

	if err != nil {
		s.logger.ErrorContext(ctx, "Backend write failed, change reverted",
			"mutation_id", m.ID,
			"kind", m.Kind,
			"attempt", m.Attempts,
			"error", err)
		return
	}
	s.logger.InfoContext(ctx, "Mutation committed", "mutation_id", m.ID, "kind", m.Kind)
	s.publish(ctx, m)
}

func (s *Store) publish(ctx context.Context, m Mutation) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewActivityMessage(m.ID, s.uid, string(m.Kind), m.Summary, m.Amount)
	if err := s.publisher.PublishActivity(ctx, msg); err != nil {
		// The ledger write already succeeded; the activity log is best effort.
		s.logger.WarnContext(ctx, "Failed to publish activity", "mutation_id", m.ID, "error", err)
	}
}

// trimHistoryLocked drops the oldest settled records beyond maxHistory.
func (s *Store) trimHistoryLocked() {
	for len(s.order) > maxHistory {
		dropped := false
		for i, id := range s.order {
			if s.records[id].m.Status != StatusPending {
				delete(s.records, id)
				s.order = append(s.order[:i:i], s.order[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return
		}
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Mutations lists recorded mutations, newest first.
func (s *Store) Mutations() []Mutation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Mutation, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.records[s.order[i]].m)
	}
	return out
}

// Mutation returns the record with the given id.
func (s *Store) Mutation(id string) (Mutation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Mutation{}, false
	}
	return rec.m, true
}

// Retry re-applies a failed mutation and runs its write again.
func (s *Store) Retry(ctx context.Context, id string) (Mutation, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return Mutation{}, ErrMutationNotFound
	}
	if rec.m.Status != StatusFailed {
		s.mu.Unlock()
		return Mutation{}, ErrNotRetryable
	}
	// claim it so a concurrent retry is rejected
	rec.m.Status = StatusPending
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Retrying mutation", "mutation_id", id, "kind", rec.m.Kind)
	return s.submit(ctx, rec), nil
}
