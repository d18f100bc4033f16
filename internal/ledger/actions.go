package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cashflow/internal/backend"
	"cashflow/internal/core"
)

var (
	ErrConfirmationRequired = errors.New("this action requires confirmation")
	ErrClearUnsupported     = errors.New("clearing all data is only available in test mode; cloud data cannot be bulk deleted")
	ErrEmptyDisplayName     = errors.New("display name cannot be empty")
)

// TransactionInput is what the transaction form submits.
type TransactionInput struct {
	AccountID  string         `json:"accountId"`
	CategoryID string         `json:"categoryId"`
	Amount     core.Money     `json:"amount"`
	Direction  core.Direction `json:"type"`
	Date       string         `json:"date"`
	Note       string         `json:"note"`
}

// AddTransaction prepends a new transaction and adjusts its account balance.
func (s *Store) AddTransaction(ctx context.Context, in TransactionInput) (Mutation, error) {
	tx := core.Transaction{
		ID:         s.newID(),
		AccountID:  strings.TrimSpace(in.AccountID),
		CategoryID: strings.TrimSpace(in.CategoryID),
		Amount:     in.Amount,
		Direction:  in.Direction,
		Date:       strings.TrimSpace(in.Date),
		Note:       strings.TrimSpace(in.Note),
	}
	if tx.Date == "" {
		tx.Date = s.now().Format(core.DateLayout)
	}
	if err := tx.Validate(); err != nil {
		return Mutation{}, err
	}
	snap := s.Snapshot()
	if err := snap.CheckReferences(tx); err != nil {
		return Mutation{}, err
	}

	rec := &record{
		m: Mutation{
			ID:       s.newID(),
			Kind:     KindAddTransaction,
			EntityID: tx.ID,
			Summary:  fmt.Sprintf("%s %s", tx.Direction, snap.CategoryName(tx.CategoryID)),
			Amount:   tx.Amount.String(),
		},
		apply: func(st core.AppState) core.AppState {
			if _, exists := st.FindTransaction(tx.ID); exists {
				return st
			}
			st.Transactions = core.PrependTransaction(st.Transactions, tx)
			st.Accounts = core.ApplyTransaction(st.Accounts, tx)
			return st
		},
		write: func(ctx context.Context) error {
			return s.backend.CreateTransaction(ctx, s.uid, tx)
		},
	}
	return s.submit(ctx, rec), nil
}

// DeleteTransaction removes a transaction and reverts its balance effect.
// Unknown ids are a no-op and report ok=false.
func (s *Store) DeleteTransaction(ctx context.Context, id string, confirmed bool) (m Mutation, ok bool, err error) {
	if !confirmed {
		return Mutation{}, false, ErrConfirmationRequired
	}
	snap := s.Snapshot()
	tx, found := snap.FindTransaction(id)
	if !found {
		return Mutation{}, false, nil
	}

	rec := &record{
		m: Mutation{
			ID:       s.newID(),
			Kind:     KindDeleteTransaction,
			EntityID: tx.ID,
			Summary:  fmt.Sprintf("%s %s", tx.Direction, snap.CategoryName(tx.CategoryID)),
			Amount:   tx.Amount.String(),
		},
		apply: func(st core.AppState) core.AppState {
			stored, exists := st.FindTransaction(tx.ID)
			if !exists {
				return st
			}
			st.Transactions, _ = core.RemoveTransaction(st.Transactions, stored.ID)
			st.Accounts = core.RevertTransaction(st.Accounts, stored)
			return st
		},
		write: func(ctx context.Context) error {
			return s.backend.DeleteTransaction(ctx, s.uid, tx)
		},
	}
	return s.submit(ctx, rec), true, nil
}

// AddAccount creates an account colored by the rotating palette.
func (s *Store) AddAccount(ctx context.Context, name string, balance core.Money) (Mutation, error) {
	acc := core.Account{
		ID:      s.newID(),
		Name:    strings.TrimSpace(name),
		Balance: balance,
	}
	if err := acc.Validate(); err != nil {
		return Mutation{}, err
	}
	snap := s.Snapshot()
	acc.Color = core.NextAccountColor(len(snap.Accounts))

	rec := &record{
		m: Mutation{
			ID:       s.newID(),
			Kind:     KindAddAccount,
			EntityID: acc.ID,
			Summary:  acc.Name,
			Amount:   acc.Balance.String(),
		},
		apply: func(st core.AppState) core.AppState {
			if _, exists := st.FindAccount(acc.ID); exists {
				return st
			}
			st.Accounts = append(append([]core.Account(nil), st.Accounts...), acc)
			return st
		},
		write: func(ctx context.Context) error {
			return s.backend.CreateAccount(ctx, s.uid, acc)
		},
	}
	return s.submit(ctx, rec), nil
}

// UpdateBudget sets the monthly budget ceiling.
func (s *Store) UpdateBudget(ctx context.Context, amount core.Money) (Mutation, error) {
	if amount.IsNegative() {
		return Mutation{}, core.ErrInvalidAmount
	}
	return s.updateProfile(ctx, KindUpdateBudget, amount.String(), func(p *core.UserProfile) {
		p.MonthlyBudget = amount
	})
}

func (s *Store) UpdateDisplayName(ctx context.Context, name string) (Mutation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Mutation{}, ErrEmptyDisplayName
	}
	return s.updateProfile(ctx, KindUpdateDisplayName, name, func(p *core.UserProfile) {
		p.DisplayName = name
	})
}

func (s *Store) updateProfile(ctx context.Context, kind MutationKind, summary string, change func(*core.UserProfile)) (Mutation, error) {
	snap := s.Snapshot()
	p := s.profileOrDefault(snap)
	change(&p)

	rec := &record{
		m: Mutation{
			ID:       s.newID(),
			Kind:     kind,
			EntityID: s.uid,
			Summary:  summary,
		},
		apply: func(st core.AppState) core.AppState {
			np := s.profileOrDefault(st)
			change(&np)
			st.Profile = &np
			return st
		},
		write: func(ctx context.Context) error {
			return s.backend.SaveProfile(ctx, s.uid, p)
		},
	}
	if kind == KindUpdateBudget {
		rec.m.Amount = p.MonthlyBudget.String()
	}
	return s.submit(ctx, rec), nil
}

func (s *Store) profileOrDefault(st core.AppState) core.UserProfile {
	if st.Profile != nil {
		return st.Profile.Clone()
	}
	return core.DefaultProfile(s.uid, s.email)
}

// ClearAllData resets a local store to seed accounts and categories with no
// transactions. Cloud stores reject it.
func (s *Store) ClearAllData(ctx context.Context, confirmed bool) error {
	if s.mode == core.ModeProduction || s.backend.Type().IsCloud() {
		return ErrClearUnsupported
	}
	if !confirmed {
		return ErrConfirmationRequired
	}

	// New mutations block until the reset below is published.
	s.gate.Lock()
	defer s.gate.Unlock()
	s.Wait()

	if err := s.backend.Clear(ctx, s.uid); err != nil {
		if errors.Is(err, backend.ErrUnsupported) {
			return ErrClearUnsupported
		}
		return fmt.Errorf("clear data: %w", err)
	}

	s.mu.Lock()
	base := core.DefaultState()
	base.Profile.UID = s.uid
	base.Mode = s.mode
	s.base = base
	s.opening = make(map[string]core.Money)
	obs := s.recomputeLocked()
	s.mu.Unlock()
	if s.search != nil {
		s.search.Purge()
	}
	s.emit(obs)

	s.logger.InfoContext(ctx, "All local data cleared")
	return nil
}
