package core

import (
	"sort"
	"strings"
)

const (
	UncategorizedName  = "Uncategorized"
	UnknownAccountName = "Unknown"
)

// TotalBalance sums every account balance.
func TotalBalance(accounts []Account) Money {
	total := Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// SumByDirection sums the amounts of transactions going in direction d.
func SumByDirection(txs []Transaction, d Direction) Money {
	total := Zero
	for _, t := range txs {
		if t.Direction == d {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// MonthTotals returns income and expense totals for a YYYY-MM month.
func MonthTotals(txs []Transaction, month string) (income, expense Money) {
	income, expense = Zero, Zero
	for _, t := range txs {
		if t.Month() != month {
			continue
		}
		if t.Direction == Income {
			income = income.Add(t.Amount)
		} else {
			expense = expense.Add(t.Amount)
		}
	}
	return income, expense
}

// BudgetUsage reports how much of the budget has been spent.
type BudgetUsage struct {
	Budget     Money   `json:"budget"`
	Spent      Money   `json:"spent"`
	Percent    float64 `json:"percent"`
	OverBudget bool    `json:"overBudget"`
}

// ComputeBudgetUsage caps Percent at 100. A zero budget never reports overspending.
func ComputeBudgetUsage(spent, budget Money) BudgetUsage {
	u := BudgetUsage{Budget: budget, Spent: spent}
	if !budget.IsPositive() {
		return u
	}
	u.Percent = spent.Percent(budget)
	if u.Percent > 100 {
		u.Percent = 100
	}
	u.OverBudget = spent.GreaterThan(budget)
	return u
}

// FlowPoint is one point of the cash-flow chart.
type FlowPoint struct {
	Date   string `json:"date"`
	Amount Money  `json:"amount"`
}

// CashFlowSeries returns signed amounts in chronological order.
func CashFlowSeries(txs []Transaction) []FlowPoint {
	sorted := append([]Transaction(nil), txs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
	out := make([]FlowPoint, 0, len(sorted))
	for _, t := range sorted {
		out = append(out, FlowPoint{Date: t.Date, Amount: t.Signed()})
	}
	return out
}

// Recent returns at most n transactions from the head of the newest-first list.
func Recent(txs []Transaction, n int) []Transaction {
	if n < 0 {
		n = 0
	}
	if len(txs) < n {
		n = len(txs)
	}
	return append([]Transaction(nil), txs[:n]...)
}

// SortNewestFirst orders transactions by date descending, keeping insertion
// order for equal dates.
func SortNewestFirst(txs []Transaction) []Transaction {
	out := append([]Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (s AppState) CategoryName(id string) string {
	if c, ok := s.FindCategory(id); ok {
		return c.Name
	}
	return UncategorizedName
}

func (s AppState) AccountName(id string) string {
	if a, ok := s.FindAccount(id); ok {
		return a.Name
	}
	return UnknownAccountName
}

// CategoriesFor returns the categories for direction d. An empty direction
// returns all of them.
func (s AppState) CategoriesFor(d Direction) []Category {
	out := make([]Category, 0, len(s.Categories))
	for _, c := range s.Categories {
		if d == "" || c.Direction == d {
			out = append(out, c)
		}
	}
	return out
}

// CategoryNames lists category names in seed order.
func (s AppState) CategoryNames() []string {
	names := make([]string, 0, len(s.Categories))
	for _, c := range s.Categories {
		names = append(names, c.Name)
	}
	return names
}

// Search matches query case-insensitively against category name and note.
// An empty query returns every transaction.
func (s AppState) Search(query string) []Transaction {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]Transaction(nil), s.Transactions...)
	}
	out := make([]Transaction, 0)
	for _, t := range s.Transactions {
		if strings.Contains(strings.ToLower(s.CategoryName(t.CategoryID)), q) ||
			strings.Contains(strings.ToLower(t.Note), q) {
			out = append(out, t)
		}
	}
	return out
}
