package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"cashflow/internal/core"
)

const (
	usersCollection        = "users"
	accountsCollection     = "accounts"
	transactionsCollection = "transactions"
)

type accountDoc struct {
	Name    string  `firestore:"name"`
	Color   string  `firestore:"color"`
	Balance float64 `firestore:"balance"`
}

type transactionDoc struct {
	AccountID  string    `firestore:"accountId"`
	CategoryID string    `firestore:"categoryId"`
	Amount     float64   `firestore:"amount"`
	Type       string    `firestore:"type"`
	Date       string    `firestore:"date"`
	Note       string    `firestore:"note"`
	CreatedAt  time.Time `firestore:"createdAt,serverTimestamp"`
}

type budgetDoc struct {
	CategoryID string  `firestore:"categoryId"`
	Amount     float64 `firestore:"amount"`
}

type profileDoc struct {
	UID           string      `firestore:"uid"`
	Email         string      `firestore:"email"`
	DisplayName   string      `firestore:"displayName"`
	MonthlyBudget float64     `firestore:"monthlyBudget"`
	Budgets       []budgetDoc `firestore:"budgets"`
}

func toAccountDoc(a core.Account) accountDoc {
	return accountDoc{Name: a.Name, Color: a.Color, Balance: a.Balance.Float64()}
}

func (d accountDoc) toCore(id string) core.Account {
	return core.Account{ID: id, Name: d.Name, Color: d.Color, Balance: core.MoneyFromFloat(d.Balance)}
}

func toTransactionDoc(tx core.Transaction) transactionDoc {
	return transactionDoc{
		AccountID:  tx.AccountID,
		CategoryID: tx.CategoryID,
		Amount:     tx.Amount.Float64(),
		Type:       string(tx.Direction),
		Date:       tx.Date,
		Note:       tx.Note,
	}
}

func (d transactionDoc) toCore(id string) core.Transaction {
	return core.Transaction{
		ID:         id,
		AccountID:  d.AccountID,
		CategoryID: d.CategoryID,
		Amount:     core.MoneyFromFloat(d.Amount),
		Direction:  core.Direction(d.Type),
		Date:       d.Date,
		Note:       d.Note,
	}
}

func toProfileDoc(p core.UserProfile) profileDoc {
	budgets := make([]budgetDoc, 0, len(p.Budgets))
	for _, b := range p.Budgets {
		budgets = append(budgets, budgetDoc{CategoryID: b.CategoryID, Amount: b.Amount.Float64()})
	}
	return profileDoc{
		UID:           p.UID,
		Email:         p.Email,
		DisplayName:   p.DisplayName,
		MonthlyBudget: p.MonthlyBudget.Float64(),
		Budgets:       budgets,
	}
}

func (d profileDoc) toCore() core.UserProfile {
	budgets := make([]core.Budget, 0, len(d.Budgets))
	for _, b := range d.Budgets {
		budgets = append(budgets, core.Budget{CategoryID: b.CategoryID, Amount: core.MoneyFromFloat(b.Amount)})
	}
	return core.UserProfile{
		UID:           d.UID,
		Email:         d.Email,
		DisplayName:   d.DisplayName,
		MonthlyBudget: core.MoneyFromFloat(d.MonthlyBudget),
		Budgets:       budgets,
	}
}

// Firestore stores each user under users/{uid} with accounts and
// transactions subcollections. Balance adjustments run in the same
// Firestore transaction as the ledger write so they are computed from the
// server copy.
type Firestore struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewFirestore(client *firestore.Client, logger *slog.Logger) *Firestore {
	if logger == nil {
		logger = slog.Default()
	}
	return &Firestore{client: client, logger: logger}
}

func (f *Firestore) Type() Type { return FirestoreBackend }

func (f *Firestore) userDoc(uid string) *firestore.DocumentRef {
	return f.client.Collection(usersCollection).Doc(uid)
}

func (f *Firestore) accounts(uid string) *firestore.CollectionRef {
	return f.userDoc(uid).Collection(accountsCollection)
}

func (f *Firestore) transactions(uid string) *firestore.CollectionRef {
	return f.userDoc(uid).Collection(transactionsCollection)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (f *Firestore) Load(ctx context.Context, uid string) (core.AppState, error) {
	var (
		accounts []core.Account
		txs      []core.Transaction
		profile  *core.UserProfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := f.accounts(uid).Documents(gctx).GetAll()
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		accounts, err = decodeAccounts(docs)
		return err
	})
	g.Go(func() error {
		docs, err := f.transactions(uid).Documents(gctx).GetAll()
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		txs, err = decodeTransactions(docs)
		return err
	})
	g.Go(func() error {
		snap, err := f.userDoc(uid).Get(gctx)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		profile, err = decodeProfile(snap)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.AppState{}, err
	}

	return core.AppState{
		Accounts:     accountsOrSeed(accounts),
		Categories:   core.DefaultCategories(),
		Transactions: core.SortNewestFirst(txs),
		Profile:      profile,
		Mode:         core.ModeProduction,
	}, nil
}

func accountsOrSeed(a []core.Account) []core.Account {
	if len(a) == 0 {
		return core.DefaultAccounts()
	}
	return a
}

func decodeAccounts(docs []*firestore.DocumentSnapshot) ([]core.Account, error) {
	out := make([]core.Account, 0, len(docs))
	for _, d := range docs {
		var ad accountDoc
		if err := d.DataTo(&ad); err != nil {
			return nil, fmt.Errorf("failed to parse account %s: %w", d.Ref.ID, err)
		}
		out = append(out, ad.toCore(d.Ref.ID))
	}
	return out, nil
}

func decodeTransactions(docs []*firestore.DocumentSnapshot) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(docs))
	for _, d := range docs {
		var td transactionDoc
		if err := d.DataTo(&td); err != nil {
			return nil, fmt.Errorf("failed to parse transaction %s: %w", d.Ref.ID, err)
		}
		out = append(out, td.toCore(d.Ref.ID))
	}
	return out, nil
}

func decodeProfile(snap *firestore.DocumentSnapshot) (*core.UserProfile, error) {
	if snap == nil || !snap.Exists() {
		return nil, nil
	}
	var pd profileDoc
	if err := snap.DataTo(&pd); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	p := pd.toCore()
	return &p, nil
}

// Subscribe opens one snapshot listener per collection plus one on the
// profile document. Each snapshot replaces the corresponding slice wholesale.
func (f *Firestore) Subscribe(ctx context.Context, uid string, l Listener) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	accIt := f.accounts(uid).Snapshots(ctx)
	txIt := f.transactions(uid).Snapshots(ctx)
	profIt := f.userDoc(uid).Snapshots(ctx)

	wg.Add(3)
	go func() {
		defer wg.Done()
		f.watchQuery(ctx, accIt, "accounts", func(docs []*firestore.DocumentSnapshot) error {
			a, err := decodeAccounts(docs)
			if err != nil {
				return err
			}
			l.accounts(accountsOrSeed(a))
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		f.watchQuery(ctx, txIt, "transactions", func(docs []*firestore.DocumentSnapshot) error {
			t, err := decodeTransactions(docs)
			if err != nil {
				return err
			}
			l.transactions(core.SortNewestFirst(t))
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		defer profIt.Stop()
		for {
			snap, err := profIt.Next()
			if err != nil && !isNotFound(err) {
				f.logStreamEnd(ctx, "profile", err)
				return
			}
			p, derr := decodeProfile(snap)
			if derr != nil {
				f.logger.WarnContext(ctx, "Skipping profile snapshot", "uid", uid, "error", derr)
				continue
			}
			l.profile(p)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

func (f *Firestore) watchQuery(ctx context.Context, it *firestore.QuerySnapshotIterator, name string, apply func([]*firestore.DocumentSnapshot) error) {
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			f.logStreamEnd(ctx, name, err)
			return
		}
		docs, err := snap.Documents.GetAll()
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to read snapshot documents", "collection", name, "error", err)
			continue
		}
		if err := apply(docs); err != nil {
			f.logger.WarnContext(ctx, "Skipping snapshot", "collection", name, "error", err)
		}
	}
}

func (f *Firestore) logStreamEnd(ctx context.Context, name string, err error) {
	if errors.Is(err, iterator.Done) || ctx.Err() != nil || status.Code(err) == codes.Canceled {
		f.logger.Debug("Snapshot listener stopped", "collection", name)
		return
	}
	f.logger.Error("Snapshot listener failed", "collection", name, "error", err)
}

func (f *Firestore) CreateAccount(ctx context.Context, uid string, a core.Account) error {
	_, err := f.accounts(uid).Doc(a.ID).Set(ctx, toAccountDoc(a))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// seedAccount returns the seed definition for id, used when a user writes
// against a default account that has never been stored.
func seedAccount(id string) (core.Account, bool) {
	for _, a := range core.DefaultAccounts() {
		if a.ID == id {
			return a, true
		}
	}
	return core.Account{}, false
}

// readAccount reads the account inside a transaction, falling back to the seed
// definition. exists reports whether the document is already stored.
func (f *Firestore) readAccount(tx *firestore.Transaction, ref *firestore.DocumentRef) (acc core.Account, exists bool, err error) {
	snap, err := tx.Get(ref)
	if err == nil {
		var ad accountDoc
		if err := snap.DataTo(&ad); err != nil {
			return core.Account{}, false, fmt.Errorf("failed to parse account %s: %w", ref.ID, err)
		}
		return ad.toCore(ref.ID), true, nil
	}
	if !isNotFound(err) {
		return core.Account{}, false, err
	}
	if seed, ok := seedAccount(ref.ID); ok {
		return seed, false, nil
	}
	return core.Account{}, false, core.ErrUnknownAccount
}

func writeAccount(tx *firestore.Transaction, ref *firestore.DocumentRef, acc core.Account, exists bool) error {
	if exists {
		return tx.Update(ref, []firestore.Update{{Path: "balance", Value: acc.Balance.Float64()}})
	}
	return tx.Create(ref, toAccountDoc(acc))
}

func (f *Firestore) CreateTransaction(ctx context.Context, uid string, t core.Transaction) error {
	txRef := f.transactions(uid).Doc(t.ID)
	accRef := f.accounts(uid).Doc(t.AccountID)

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(txRef); err == nil {
			return nil // already written by an earlier attempt
		} else if !isNotFound(err) {
			return err
		}
		acc, exists, err := f.readAccount(tx, accRef)
		if err != nil {
			return err
		}
		acc.Balance = acc.Balance.Add(t.Signed())
		if err := tx.Create(txRef, toTransactionDoc(t)); err != nil {
			return err
		}
		return writeAccount(tx, accRef, acc, exists)
	})
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (f *Firestore) DeleteTransaction(ctx context.Context, uid string, t core.Transaction) error {
	txRef := f.transactions(uid).Doc(t.ID)

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(txRef)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		var td transactionDoc
		if err := snap.DataTo(&td); err != nil {
			return fmt.Errorf("failed to parse transaction %s: %w", t.ID, err)
		}
		stored := td.toCore(t.ID)

		accRef := f.accounts(uid).Doc(stored.AccountID)
		acc, exists, err := f.readAccount(tx, accRef)
		if errors.Is(err, core.ErrUnknownAccount) {
			return tx.Delete(txRef)
		}
		if err != nil {
			return err
		}
		acc.Balance = acc.Balance.Sub(stored.Signed())
		if err := tx.Delete(txRef); err != nil {
			return err
		}
		return writeAccount(tx, accRef, acc, exists)
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (f *Firestore) SaveProfile(ctx context.Context, uid string, p core.UserProfile) error {
	if _, err := f.userDoc(uid).Set(ctx, toProfileDoc(p)); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Clear is not offered for the cloud store: bulk deletion of remote data is
// left to the console.
func (f *Firestore) Clear(context.Context, string) error {
	return ErrUnsupported
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
