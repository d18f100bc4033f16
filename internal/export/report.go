// Package export renders the ledger as a downloadable CSV report.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"cashflow/internal/core"
)

const bom = "\uFEFF"

var ErrNothingToExport = errors.New("there are no transactions to export yet")

var header = []string{"date", "direction", "category", "account", "amount", "note"}

type Report struct {
	Filename string
	Content  []byte
	Rows     int
}

func Filename(now time.Time) string {
	return fmt.Sprintf("cashflow_report_%s.csv", now.Format(core.DateLayout))
}

// Build writes one row per transaction, newest first, after a UTF-8 BOM so
// spreadsheet tools pick the right encoding.
func Build(st core.AppState, now time.Time) (Report, error) {
	if len(st.Transactions) == 0 {
		return Report{}, ErrNothingToExport
	}

	var buf bytes.Buffer
	buf.WriteString(bom)
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return Report{}, fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range st.Transactions {
		row := []string{
			t.Date,
			string(t.Direction),
			st.CategoryName(t.CategoryID),
			st.AccountName(t.AccountID),
			t.Amount.String(),
			strings.ReplaceAll(t.Note, ",", " "),
		}
		if err := w.Write(row); err != nil {
			return Report{}, fmt.Errorf("write csv row %s: %w", t.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Report{}, fmt.Errorf("flush csv: %w", err)
	}

	return Report{
		Filename: Filename(now),
		Content:  buf.Bytes(),
		Rows:     len(st.Transactions),
	}, nil
}
