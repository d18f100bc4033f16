package core

import "testing"

func validTx() Transaction {
	return Transaction{
		ID:         "t1",
		AccountID:  "acc1",
		CategoryID: "cat3",
		Amount:     MoneyFromInt(1200),
		Direction:  Expense,
		Date:       "2025-03-14",
		Note:       "lunch",
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTx().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"no account", func(tx *Transaction) { tx.AccountID = "" }, ErrMissingAccount},
		{"no category", func(tx *Transaction) { tx.CategoryID = " " }, ErrMissingCategory},
		{"bad direction", func(tx *Transaction) { tx.Direction = "transfer" }, ErrInvalidDirection},
		{"zero amount", func(tx *Transaction) { tx.Amount = Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = MoneyFromInt(-5) }, ErrInvalidAmount},
		{"bad date", func(tx *Transaction) { tx.Date = "14/03/2025" }, ErrInvalidDate},
	}
	for _, tc := range cases {
		tx := validTx()
		tc.mutate(&tx)
		if err := tx.Validate(); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"income": Income, " Expense ": Expense} {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Fatalf("%q expected %s, got %s (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParseDirection("收入"); err != ErrInvalidDirection {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestCheckReferences(t *testing.T) {
	s := DefaultState()
	if err := s.CheckReferences(validTx()); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	tx := validTx()
	tx.AccountID = "nope"
	if err := s.CheckReferences(tx); err != ErrUnknownAccount {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
	tx = validTx()
	tx.CategoryID = "cat1" // Salary is income
	if err := s.CheckReferences(tx); err != ErrDirectionMismatch {
		t.Fatalf("expected ErrDirectionMismatch, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := DefaultState()
	c := s.Clone()
	c.Accounts[0].Name = "changed"
	c.Profile.DisplayName = "changed"
	if s.Accounts[0].Name == "changed" || s.Profile.DisplayName == "changed" {
		t.Fatalf("clone shares memory with original")
	}
}

func TestApplyAndRevert(t *testing.T) {
	accounts := DefaultAccounts()
	tx := validTx()

	after := ApplyTransaction(accounts, tx)
	if !after[0].Balance.Equal(MoneyFromInt(48800)) {
		t.Fatalf("expected 48800, got %s", after[0].Balance)
	}
	if !accounts[0].Balance.Equal(MoneyFromInt(50000)) {
		t.Fatalf("input slice was mutated")
	}
	if !after[1].Balance.Equal(MoneyFromInt(25000)) {
		t.Fatalf("unrelated account changed: %s", after[1].Balance)
	}

	restored := RevertTransaction(after, tx)
	if !restored[0].Balance.Equal(MoneyFromInt(50000)) {
		t.Fatalf("expected 50000 after revert, got %s", restored[0].Balance)
	}
}

func TestReplayBalanceMatchesIncrementalApply(t *testing.T) {
	initial := MoneyFromInt(50000)
	accounts := []Account{{ID: "acc1", Balance: initial}}
	var txs []Transaction
	steps := []struct {
		amount int64
		dir    Direction
	}{{1200, Expense}, {3000, Income}, {45, Expense}, {700, Expense}}
	for i, s := range steps {
		tx := Transaction{ID: string(rune('a' + i)), AccountID: "acc1", Amount: MoneyFromInt(s.amount), Direction: s.dir}
		accounts = ApplyTransaction(accounts, tx)
		txs = PrependTransaction(txs, tx)
	}
	// drop one in the middle
	removed := txs[1]
	txs, _ = RemoveTransaction(txs, removed.ID)
	accounts = RevertTransaction(accounts, removed)

	if want := ReplayBalance(initial, txs, "acc1"); !accounts[0].Balance.Equal(want) {
		t.Fatalf("balance %s diverged from replay %s", accounts[0].Balance, want)
	}
	if got := UnwindBalance(accounts[0].Balance, txs, "acc1"); !got.Equal(initial) {
		t.Fatalf("unwound opening balance %s, want %s", got, initial)
	}
}

func TestRemoveTransactionUnknownID(t *testing.T) {
	txs := []Transaction{validTx()}
	out, found := RemoveTransaction(txs, "missing")
	if found || len(out) != 1 {
		t.Fatalf("expected no-op, got found=%v len=%d", found, len(out))
	}
}
