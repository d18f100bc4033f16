package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("invalid request")

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// confirmed reads the confirm query flag.
func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

type transactionRequest struct {
	AccountID  string     `json:"accountId"`
	CategoryID string     `json:"categoryId"`
	Amount     core.Money `json:"amount"`
	Direction  string     `json:"type"`
	Date       string     `json:"date"`
	Note       string     `json:"note"`
}

func (req transactionRequest) toInput() (ledger.TransactionInput, error) {
	d, err := core.ParseDirection(req.Direction)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	return ledger.TransactionInput{
		AccountID:  sanitizeInput(req.AccountID),
		CategoryID: sanitizeInput(req.CategoryID),
		Amount:     req.Amount,
		Direction:  d,
		Date:       strings.TrimSpace(req.Date),
		Note:       sanitizeInput(req.Note),
	}, nil
}

type accountRequest struct {
	Name    string     `json:"name"`
	Balance core.Money `json:"balance"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type budgetRequest struct {
	MonthlyBudget core.Money `json:"monthlyBudget"`
}

type nameRequest struct {
	DisplayName string `json:"displayName"`
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
