package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cashflow/internal/core"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  lunch  ", "lunch"},
		{"a\x00b\x07c", "abc"},
		{"line1\nline2\ttab", "line1\nline2\ttab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfirmed(t *testing.T) {
	tests := map[string]bool{
		"/x":              false,
		"/x?confirm=true": true,
		"/x?confirm=1":    true,
		"/x?confirm=no":   false,
		"/x?confirm=":     false,
	}
	for target, want := range tests {
		r := httptest.NewRequest(http.MethodDelete, target, nil)
		if got := confirmed(r); got != want {
			t.Errorf("confirmed(%s) = %v, want %v", target, got, want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"Wallet","balance":"100.5"}`, false},
		{"bare number", `{"name":"Wallet","balance":100.5}`, false},
		{"unknown field", `{"name":"Wallet","colour":"red"}`, true},
		{"trailing object", `{"name":"a"}{"name":"b"}`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(tt.body))
			var req accountRequest
			err := decodeJSON(httptest.NewRecorder(), r, &req)
			if tt.wantErr {
				if !errors.Is(err, errBadRequest) {
					t.Fatalf("expected errBadRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Name != "Wallet" || req.Balance.String() != "100.50" {
				t.Errorf("decoded %+v", req)
			}
		})
	}
}

func TestTransactionRequestToInput(t *testing.T) {
	req := transactionRequest{
		AccountID:  " acc1 ",
		CategoryID: "cat3",
		Amount:     core.MoneyFromInt(120),
		Direction:  "Expense",
		Date:       " 2025-03-14 ",
		Note:       "coffee\x00",
	}
	in, err := req.toInput()
	if err != nil {
		t.Fatalf("toInput: %v", err)
	}
	if in.AccountID != "acc1" || in.Direction != core.Expense || in.Date != "2025-03-14" || in.Note != "coffee" {
		t.Errorf("unexpected input %+v", in)
	}

	req.Direction = "refund"
	if _, err := req.toInput(); !errors.Is(err, core.ErrInvalidDirection) {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}
}
