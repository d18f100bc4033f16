package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/ai"
	"cashflow/internal/app"
	"cashflow/internal/auth"
	"cashflow/internal/backend"
	"cashflow/internal/core"
	"cashflow/internal/export"
	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/storage"
)

var fixedNow = time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)

type stubAuth struct{}

func (stubAuth) SignIn(_ context.Context, email, password string) (auth.Identity, error) {
	if password != "secret" {
		return auth.Identity{}, auth.ErrAuthFailed
	}
	return auth.Identity{UID: "u1", Email: email}, nil
}

func (stubAuth) SignUp(_ context.Context, email, _ string) (auth.Identity, error) {
	return auth.Identity{UID: "u2", Email: email}, nil
}

func (stubAuth) SignOut(context.Context, string) error { return nil }

type stubActivity struct {
	entries []storage.ActivityEntry
	pingErr error
	limit   int
}

func (s *stubActivity) ListActivity(_ context.Context, limit int) ([]storage.ActivityEntry, error) {
	s.limit = limit
	return s.entries, nil
}

func (s *stubActivity) Ping(context.Context) error { return s.pingErr }

type stubArchiver struct{ uids []string }

func (a *stubArchiver) Archive(_ context.Context, uid string, r export.Report) (string, error) {
	a.uids = append(a.uids, uid)
	return "gs://reports/" + export.ObjectName(uid, r.Filename), nil
}

type testServer struct {
	*Server
	shell *app.Shell
}

func newTestServer(t *testing.T, withCloud bool, mutate func(*Deps)) *testServer {
	t.Helper()
	opts := app.Options{Local: backend.NewLocal(backend.NewMemoryKV(), backend.MemoryBackend, nil)}
	if withCloud {
		opts.Cloud = backend.NewLocal(backend.NewMemoryKV(), backend.FirestoreBackend, nil)
		opts.Auth = stubAuth{}
	}
	shell := app.New(opts)
	require.NoError(t, shell.Start(context.Background()))
	t.Cleanup(shell.Close)

	deps := Deps{
		Shell:  shell,
		Logger: log.New(log.Config{Level: log.ParseLevel("error"), Component: "test"}),
		Now:    func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(srv.limiter.Stop)
	return &testServer{Server: srv, shell: shell}
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

// settle waits for in-flight writes so the committed view is observable.
func (ts *testServer) settle(t *testing.T) {
	t.Helper()
	store, err := ts.shell.Ledger()
	require.NoError(t, err)
	store.Wait()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func lunch() map[string]any {
	return map[string]any{
		"accountId":  "acc1",
		"categoryId": "cat3",
		"amount":     "1200",
		"type":       "expense",
		"date":       "2025-03-14",
		"note":       "team lunch",
	}
}

func TestHealthAndReady(t *testing.T) {
	act := &stubActivity{}
	ts := newTestServer(t, false, func(d *Deps) { d.Activity = act })

	ts.do(t, http.MethodGet, "/api/mode", nil)
	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	health := decode[struct {
		Status   string `json:"status"`
		Requests struct {
			Requests int64 `json:"requests"`
		} `json:"requests"`
	}](t, rec)
	assert.Equal(t, "ok", health.Status)
	// The health request itself is counted after the handler returns.
	assert.Equal(t, int64(1), health.Requests.Requests)

	rec = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	act.pingErr = errors.New("database is locked")
	rec = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestModeWithoutCloud(t *testing.T) {
	ts := newTestServer(t, false, nil)

	rec := ts.do(t, http.MethodGet, "/api/mode", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[modeResponse](t, rec)
	assert.Equal(t, core.ModeTest, got.Mode)
	assert.False(t, got.CloudAvailable)
	assert.Equal(t, "memory", got.Backend)
	assert.Nil(t, got.User)

	rec = ts.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "a@b.c", "password": "secret"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSelectionModeBlocksLedger(t *testing.T) {
	ts := newTestServer(t, true, nil)

	rec := ts.do(t, http.MethodGet, "/api/overview", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "mei@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication failed")

	rec = ts.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "mei@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[modeResponse](t, rec)
	assert.Equal(t, core.ModeProduction, got.Mode)
	require.NotNil(t, got.User)
	assert.Equal(t, "u1", got.User.UID)
	assert.Equal(t, "firestore", got.Backend)

	rec = ts.do(t, http.MethodPost, "/api/mode/test", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/signout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.ModeSelection, decode[modeResponse](t, rec).Mode)

	rec = ts.do(t, http.MethodPost, "/api/mode/test", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.ModeTest, decode[modeResponse](t, rec).Mode)
}

func TestTransactionLifecycle(t *testing.T) {
	ts := newTestServer(t, false, nil)

	rec := ts.do(t, http.MethodPost, "/api/transactions", lunch())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	m := decode[map[string]any](t, rec)
	txID, _ := m["entityId"].(string)
	require.NotEmpty(t, txID)
	ts.settle(t)

	type overview struct {
		TotalBalance core.Money        `json:"totalBalance"`
		MonthExpense core.Money        `json:"monthExpense"`
		Month        string            `json:"month"`
		BudgetLevel  string            `json:"budgetLevel"`
		Initial      string            `json:"initial"`
		Recent       []transactionView `json:"recent"`
	}
	rec = ts.do(t, http.MethodGet, "/api/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ov := decode[overview](t, rec)
	assert.Equal(t, "73800.00", ov.TotalBalance.String())
	assert.Equal(t, "1200.00", ov.MonthExpense.String())
	assert.Equal(t, "2025-03", ov.Month)
	assert.Equal(t, "ok", ov.BudgetLevel)
	assert.Equal(t, "N", ov.Initial)
	require.Len(t, ov.Recent, 1)
	assert.Equal(t, "Food", ov.Recent[0].CategoryName)
	assert.Equal(t, "Cathay United", ov.Recent[0].AccountName)
	assert.Equal(t, core.IconUtensils, ov.Recent[0].Icon)

	rec = ts.do(t, http.MethodGet, "/api/transactions?q=LUNCH", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), txID)

	rec = ts.do(t, http.MethodDelete, "/api/transactions/"+txID, nil)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/transactions/"+txID+"?confirm=true", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	ts.settle(t)

	rec = ts.do(t, http.MethodDelete, "/api/transactions/"+txID+"?confirm=true", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalBalance":75000.00`)
}

func TestCreateTransactionRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, false, nil)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"direction mismatch", func() map[string]any { b := lunch(); b["categoryId"] = "cat1"; return b }(), http.StatusUnprocessableEntity},
		{"zero amount", func() map[string]any { b := lunch(); b["amount"] = 0; return b }(), http.StatusUnprocessableEntity},
		{"unknown direction", func() map[string]any { b := lunch(); b["type"] = "transfer"; return b }(), http.StatusUnprocessableEntity},
		{"unknown field", `{"accountId":"acc1","bogus":true}`, http.StatusBadRequest},
		{"malformed json", `{"accountId":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestCategoriesFilter(t *testing.T) {
	ts := newTestServer(t, false, nil)

	rec := ts.do(t, http.MethodGet, "/api/categories?direction=income", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Categories []core.Category `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Categories, 2)
	for _, c := range got.Categories {
		assert.Equal(t, core.Income, c.Direction)
	}

	rec = ts.do(t, http.MethodGet, "/api/categories?direction=sideways", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestProfileUpdates(t *testing.T) {
	ts := newTestServer(t, false, nil)

	rec := ts.do(t, http.MethodPut, "/api/profile/budget", map[string]any{"monthlyBudget": 500})
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = ts.do(t, http.MethodPut, "/api/profile/name", map[string]string{"displayName": "  mei  "})
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = ts.do(t, http.MethodPut, "/api/profile/name", map[string]string{"displayName": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	ts.settle(t)

	rec = ts.do(t, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "mei", got["displayName"])
	assert.Equal(t, "M", got["initial"])
	assert.EqualValues(t, 500, got["monthlyBudget"])

	rec = ts.do(t, http.MethodPost, "/api/transactions", lunch())
	require.Equal(t, http.StatusAccepted, rec.Code)
	ts.settle(t)

	rec = ts.do(t, http.MethodGet, "/api/overview", nil)
	ov := decode[map[string]any](t, rec)
	assert.Equal(t, "danger", ov["budgetLevel"])
	assert.Contains(t, ov["budgetNotice"], "over budget")
}

func TestExport(t *testing.T) {
	arch := &stubArchiver{}
	ts := newTestServer(t, false, func(d *Deps) { d.Archiver = arch })

	rec := ts.do(t, http.MethodGet, "/api/export.csv", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.do(t, http.MethodPost, "/api/transactions", lunch())
	ts.settle(t)

	rec = ts.do(t, http.MethodGet, "/api/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cashflow_report_2025-03-20.csv")
	assert.Equal(t, "1", rec.Header().Get("X-Report-Rows"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\uFEFF"))
	assert.Contains(t, rec.Body.String(), "team lunch")
	// Test mode data is never archived.
	assert.Empty(t, arch.uids)
	assert.Empty(t, rec.Header().Get("X-Archive-URI"))
}

func TestExportArchivesInProduction(t *testing.T) {
	arch := &stubArchiver{}
	ts := newTestServer(t, true, func(d *Deps) { d.Archiver = arch })

	rec := ts.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "mei@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/transactions", lunch())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	ts.settle(t)

	rec = ts.do(t, http.MethodGet, "/api/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u1"}, arch.uids)
	assert.Equal(t, "gs://reports/users/u1/exports/cashflow_report_2025-03-20.csv", rec.Header().Get("X-Archive-URI"))
}

func TestClearData(t *testing.T) {
	ts := newTestServer(t, false, nil)
	ts.do(t, http.MethodPost, "/api/transactions", lunch())
	ts.settle(t)

	rec := ts.do(t, http.MethodDelete, "/api/data", nil)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/data?confirm=true", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/transactions", nil)
	assert.Contains(t, rec.Body.String(), `"transactions":[]`)
}

func TestAnalysisWithoutKey(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec := ts.do(t, http.MethodPost, "/api/ai/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[analysisResponse](t, rec)
	assert.Equal(t, ai.MsgNoAPIKey, got.Advice)
	assert.False(t, got.Enabled)
}

func TestActivityFiltersByUser(t *testing.T) {
	act := &stubActivity{entries: []storage.ActivityEntry{
		{MutationID: "m1", UID: core.LocalUID, Kind: "add_transaction"},
		{MutationID: "m2", UID: "someone-else", Kind: "add_account"},
	}}
	ts := newTestServer(t, false, func(d *Deps) { d.Activity = act })

	rec := ts.do(t, http.MethodGet, "/api/activity?limit=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxActivityLimit, act.limit)
	assert.Contains(t, rec.Body.String(), "m1")
	assert.NotContains(t, rec.Body.String(), "m2")

	rec = ts.do(t, http.MethodGet, "/api/activity?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityNotConfigured(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec := ts.do(t, http.MethodGet, "/api/activity", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWritesAreRateLimited(t *testing.T) {
	ts := newTestServer(t, false, func(d *Deps) {
		d.RateLimit = ratelimit.Config{Requests: 2, Window: time.Minute}
	})

	for range 2 {
		rec := ts.do(t, http.MethodPut, "/api/profile/budget", map[string]any{"monthlyBudget": 100})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	rec := ts.do(t, http.MethodPut, "/api/profile/budget", map[string]any{"monthlyBudget": 100})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are never limited.
	rec = ts.do(t, http.MethodGet, "/api/profile", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ts.settle(t)
}

func TestRetryUnknownMutation(t *testing.T) {
	ts := newTestServer(t, false, nil)
	rec := ts.do(t, http.MethodPost, "/api/mutations/nope/retry", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/mutations", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
