package http

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
)

const recentCount = 6

// transactionView is a transaction with its display names resolved.
type transactionView struct {
	core.Transaction
	CategoryName string      `json:"categoryName"`
	AccountName  string      `json:"accountName"`
	Icon         core.IconID `json:"icon"`
	Pending      bool        `json:"pending"`
}

func viewTransactions(st core.AppState, txs []core.Transaction, pending map[string]bool) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		v := transactionView{
			Transaction:  t,
			CategoryName: st.CategoryName(t.CategoryID),
			AccountName:  st.AccountName(t.AccountID),
			Icon:         core.IconHelpCircle,
			Pending:      pending[t.ID],
		}
		if c, ok := st.FindCategory(t.CategoryID); ok {
			v.Icon = core.ParseIconID(string(c.Icon))
		}
		out = append(out, v)
	}
	return out
}

// pendingEntities lists entity ids with a write still in flight.
func pendingEntities(store *ledger.Store) map[string]bool {
	out := make(map[string]bool)
	for _, m := range store.Mutations() {
		if m.Status == ledger.StatusPending {
			out[m.EntityID] = true
		}
	}
	return out
}

type overviewResponse struct {
	Mode         core.Mode         `json:"mode"`
	DisplayName  string            `json:"displayName"`
	Initial      string            `json:"initial"`
	TotalBalance core.Money        `json:"totalBalance"`
	Month        string            `json:"month"`
	MonthIncome  core.Money        `json:"monthIncome"`
	MonthExpense core.Money        `json:"monthExpense"`
	Budget       core.BudgetUsage  `json:"budget"`
	BudgetLevel  string            `json:"budgetLevel"`
	BudgetNotice string            `json:"budgetNotice"`
	CashFlow     []core.FlowPoint  `json:"cashFlow"`
	Recent       []transactionView `json:"recent"`
	Failed       int               `json:"failedMutations"`
}

// budgetLevel colours the usage bar: above 90% is danger, above 70% warning.
func budgetLevel(u core.BudgetUsage) (level, notice string) {
	switch {
	case u.Percent > 90:
		level = "danger"
	case u.Percent > 70:
		level = "warning"
	default:
		level = "ok"
	}
	notice = "Budget under control, keep it up."
	if u.OverBudget {
		notice = "You are over budget; consider cutting non-essential spending."
	}
	return level, notice
}

// initial is the upper-cased first letter of the display name.
func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	st := store.Snapshot()
	month := s.now().Format("2006-01")
	income, expense := core.MonthTotals(st.Transactions, month)

	var name string
	budget := core.Zero
	if st.Profile != nil {
		name = st.Profile.DisplayName
		budget = st.Profile.MonthlyBudget
	}
	usage := core.ComputeBudgetUsage(expense, budget)
	level, notice := budgetLevel(usage)

	failed := 0
	for _, m := range store.Mutations() {
		if m.Status == ledger.StatusFailed {
			failed++
		}
	}

	writeJSON(w, http.StatusOK, overviewResponse{
		Mode:         st.Mode,
		DisplayName:  name,
		Initial:      initial(name),
		TotalBalance: core.TotalBalance(st.Accounts),
		Month:        month,
		MonthIncome:  income,
		MonthExpense: expense,
		Budget:       usage,
		BudgetLevel:  level,
		BudgetNotice: notice,
		CashFlow:     core.CashFlowSeries(st.Transactions),
		Recent:       viewTransactions(st, core.Recent(st.Transactions, recentCount), pendingEntities(store)),
		Failed:       failed,
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	st := store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts":     st.Accounts,
		"totalBalance": core.TotalBalance(st.Accounts),
	})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	m, err := store.AddAccount(r.Context(), sanitizeInput(req.Name), req.Balance)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.accepted(w, r, m)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	var d core.Direction
	if v := r.URL.Query().Get("direction"); v != "" {
		parsed, err := core.ParseDirection(v)
		if err != nil {
			s.fail(w, r, log.OpList, err)
			return
		}
		d = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": store.Snapshot().CategoriesFor(d)})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	txs := store.Search(q)
	writeJSON(w, http.StatusOK, map[string]any{
		"query":        q,
		"transactions": viewTransactions(store.Snapshot(), txs, pendingEntities(store)),
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	m, err := store.AddTransaction(r.Context(), in)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.accepted(w, r, m)
}

// handleDeleteTransaction needs ?confirm=true. Unknown ids answer 204.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	m, found, err := store.DeleteTransaction(r.Context(), r.PathValue("id"), confirmed(r))
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.accepted(w, r, m)
}

func (s *Server) handleListMutations(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mutations": store.Mutations()})
}

func (s *Server) handleRetryMutation(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	m, err := store.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, log.OpRetry, err)
		return
	}
	s.accepted(w, r, m)
}

type profileResponse struct {
	*core.UserProfile
	Initial string `json:"initial"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	p := store.Snapshot().Profile
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{UserProfile: p, Initial: initial(p.DisplayName)})
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	m, err := store.UpdateBudget(r.Context(), req.MonthlyBudget)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.accepted(w, r, m)
}

func (s *Server) handleUpdateName(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	m, err := store.UpdateDisplayName(r.Context(), sanitizeInput(req.DisplayName))
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.accepted(w, r, m)
}

// ledger returns the active store or answers 409 when no mode is chosen.
func (s *Server) ledger(w http.ResponseWriter, r *http.Request) (*ledger.Store, bool) {
	store, err := s.shell.Ledger()
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return nil, false
	}
	return store, true
}

// accepted answers 202: the change is applied locally and its write is in flight.
func (s *Server) accepted(w http.ResponseWriter, r *http.Request, m ledger.Mutation) {
	log.FromContext(r.Context()).MutationAccepted(r.Context(), m.ID, string(m.Kind), m.Amount)
	writeJSON(w, http.StatusAccepted, m)
}
