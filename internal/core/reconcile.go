package core

// ApplyTransaction returns a copy of accounts with tx's signed amount added to
// its owning account. Accounts not referenced by tx are copied unchanged.
func ApplyTransaction(accounts []Account, tx Transaction) []Account {
	return adjust(accounts, tx.AccountID, tx.Signed())
}

// RevertTransaction is the inverse of ApplyTransaction.
func RevertTransaction(accounts []Account, tx Transaction) []Account {
	return adjust(accounts, tx.AccountID, tx.Signed().Neg())
}

func adjust(accounts []Account, accountID string, delta Money) []Account {
	out := make([]Account, len(accounts))
	copy(out, accounts)
	for i := range out {
		if out[i].ID == accountID {
			out[i].Balance = out[i].Balance.Add(delta)
		}
	}
	return out
}

// ReplayBalance computes the balance of accountID from its initial balance and
// every transaction that references it.
func ReplayBalance(initial Money, txs []Transaction, accountID string) Money {
	bal := initial
	for _, tx := range txs {
		if tx.AccountID == accountID {
			bal = bal.Add(tx.Signed())
		}
	}
	return bal
}

// UnwindBalance is the inverse of ReplayBalance: the initial balance that,
// replayed over txs, yields current.
func UnwindBalance(current Money, txs []Transaction, accountID string) Money {
	bal := current
	for _, tx := range txs {
		if tx.AccountID == accountID {
			bal = bal.Sub(tx.Signed())
		}
	}
	return bal
}

// PrependTransaction returns a new slice with tx first.
func PrependTransaction(txs []Transaction, tx Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs)+1)
	out = append(out, tx)
	return append(out, txs...)
}

// RemoveTransaction returns a new slice without the transaction id and
// whether it was present.
func RemoveTransaction(txs []Transaction, id string) ([]Transaction, bool) {
	out := make([]Transaction, 0, len(txs))
	found := false
	for _, t := range txs {
		if t.ID == id {
			found = true
			continue
		}
		out = append(out, t)
	}
	return out, found
}
