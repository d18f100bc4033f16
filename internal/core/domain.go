package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

const (
	ModeSelection  Mode = "selection"
	ModeProduction Mode = "production"
	ModeTest       Mode = "test"
)

// DateLayout is the calendar format used for transaction dates.
const DateLayout = "2006-01-02"

type (
	// Direction tags a category or transaction as money in or money out.
	Direction string

	// Mode is the persistence mode the application is running in.
	Mode string

	Account struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Color   string `json:"color"`
		Balance Money  `json:"balance"`
	}

	Category struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Direction Direction `json:"type"`
		Icon      IconID    `json:"icon,omitempty"`
	}

	// Transaction amounts are always positive; Direction carries the sign.
	Transaction struct {
		ID         string    `json:"id"`
		AccountID  string    `json:"accountId"`
		CategoryID string    `json:"categoryId"`
		Amount     Money     `json:"amount"`
		Direction  Direction `json:"type"`
		Date       string    `json:"date"`
		Note       string    `json:"note"`
	}

	Budget struct {
		CategoryID string `json:"categoryId"`
		Amount     Money  `json:"amount"`
	}

	UserProfile struct {
		UID           string   `json:"uid"`
		Email         string   `json:"email"`
		DisplayName   string   `json:"displayName"`
		MonthlyBudget Money    `json:"monthlyBudget"`
		Budgets       []Budget `json:"budgets"`
	}

	// AppState is the aggregate root rendered by every view.
	AppState struct {
		Accounts     []Account     `json:"accounts"`
		Categories   []Category    `json:"categories"`
		Transactions []Transaction `json:"transactions"`
		Profile      *UserProfile  `json:"userProfile"`
		Mode         Mode          `json:"mode"`
	}
)

var (
	ErrInvalidDirection  = errors.New("invalid direction")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyAccountName  = errors.New("empty account name")
	ErrMissingAccount    = errors.New("account is required")
	ErrMissingCategory   = errors.New("category is required")
	ErrUnknownAccount    = errors.New("unknown account")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrDirectionMismatch = errors.New("category direction does not match transaction direction")
	ErrNoteTooLong       = errors.New("note too long (max 500 characters)")
)

func (d Direction) Valid() bool {
	return d == Income || d == Expense
}

// Sign returns +1 for income and -1 for expense.
func (d Direction) Sign() int64 {
	if d == Income {
		return 1
	}
	return -1
}

func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", ErrInvalidDirection
	}
	return d, nil
}

func (m Mode) Valid() bool {
	switch m {
	case ModeSelection, ModeProduction, ModeTest:
		return true
	default:
		return false
	}
}

// IsDemo reports whether the state is held locally rather than cloud-synced.
func (s AppState) IsDemo() bool {
	return s.Mode != ModeProduction
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyAccountName
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrMissingAccount
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrMissingCategory
	}
	if !t.Direction.Valid() {
		return ErrInvalidDirection
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return ErrInvalidDate
	}
	if len(t.Note) > 500 {
		return ErrNoteTooLong
	}
	return nil
}

// Signed returns the amount with the direction's sign applied.
func (t Transaction) Signed() Money {
	if t.Direction == Income {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Month returns the YYYY-MM prefix of the transaction date.
func (t Transaction) Month() string {
	if len(t.Date) < 7 {
		return ""
	}
	return t.Date[:7]
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (s AppState) Clone() AppState {
	out := AppState{
		Accounts:     append([]Account(nil), s.Accounts...),
		Categories:   append([]Category(nil), s.Categories...),
		Transactions: append([]Transaction(nil), s.Transactions...),
		Mode:         s.Mode,
	}
	if s.Profile != nil {
		p := s.Profile.Clone()
		out.Profile = &p
	}
	return out
}

func (p UserProfile) Clone() UserProfile {
	p.Budgets = append([]Budget(nil), p.Budgets...)
	return p
}

// FindAccount returns the account with the given id.
func (s AppState) FindAccount(id string) (Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

func (s AppState) FindCategory(id string) (Category, bool) {
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

func (s AppState) FindTransaction(id string) (Transaction, bool) {
	for _, t := range s.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return Transaction{}, false
}

// CheckReferences verifies that the transaction points at a known account and a
// category whose direction matches its own.
func (s AppState) CheckReferences(t Transaction) error {
	if _, ok := s.FindAccount(t.AccountID); !ok {
		return ErrUnknownAccount
	}
	cat, ok := s.FindCategory(t.CategoryID)
	if !ok {
		return ErrUnknownCategory
	}
	if cat.Direction != t.Direction {
		return ErrDirectionMismatch
	}
	return nil
}
