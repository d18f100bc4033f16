// Package ai produces a short narrative financial-health summary from the
// ledger aggregates using a hosted language model.
package ai

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/message"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

const (
	MsgNoAPIKey    = "AI advice is unavailable because no API key is configured."
	MsgUnavailable = "The AI service is temporarily unavailable, please try again later."
	MsgEmptyReply  = "Could not generate AI advice."
)

// Generator sends a prompt to a model and returns its text reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Aggregates are the figures the prompt is built from.
type Aggregates struct {
	TotalBalance     core.Money
	TotalIncome      core.Money
	TotalExpense     core.Money
	TransactionCount int
	CategoryNames    []string
}

func Aggregate(st core.AppState) Aggregates {
	return Aggregates{
		TotalBalance:     core.TotalBalance(st.Accounts),
		TotalIncome:      core.SumByDirection(st.Transactions, core.Income),
		TotalExpense:     core.SumByDirection(st.Transactions, core.Expense),
		TransactionCount: len(st.Transactions),
		CategoryNames:    st.CategoryNames(),
	}
}

type Advisor struct {
	gen    Generator
	lang   language.Tag
	logger *slog.Logger
}

// NewAdvisor returns an advisor replying in lang (a BCP 47 tag). A nil
// generator means no API key is configured.
func NewAdvisor(gen Generator, lang string, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.TraditionalChinese
	}
	return &Advisor{gen: gen, lang: tag, logger: logger.With(log.FieldComponent, log.ComponentAI)}
}

func (a *Advisor) Enabled() bool { return a.gen != nil }

// Analyze never fails; problems are logged and replaced by a fixed message.
func (a *Advisor) Analyze(ctx context.Context, st core.AppState) string {
	if a.gen == nil {
		return MsgNoAPIKey
	}

	agg := Aggregate(st)
	prompt := a.Prompt(agg)
	reply, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.logger.ErrorContext(ctx, "AI generation failed", "error", err, "transactions", agg.TransactionCount)
		return MsgUnavailable
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		a.logger.WarnContext(ctx, "AI generation returned an empty reply")
		return MsgEmptyReply
	}
	return reply
}

// Prompt renders the fixed advisory template.
func (a *Advisor) Prompt(agg Aggregates) string {
	p := message.NewPrinter(a.lang)
	var b strings.Builder
	b.WriteString("As a professional financial advisor, give advice based on the following user data:\n\n")
	p.Fprintf(&b, "Total account balance: %.2f\n", agg.TotalBalance.Float64())
	p.Fprintf(&b, "Total income this period: %.2f\n", agg.TotalIncome.Float64())
	p.Fprintf(&b, "Total expense this period: %.2f\n", agg.TotalExpense.Float64())
	p.Fprintf(&b, "Number of transactions: %d\n", agg.TransactionCount)
	b.WriteString("Categories: " + strings.Join(agg.CategoryNames, ", ") + "\n\n")
	b.WriteString("Please provide:\n")
	b.WriteString("1. A summary of the current financial status (under 150 words)\n")
	b.WriteString("2. Concrete suggestions to optimize spending (bullet points)\n")
	b.WriteString("3. One motivational line about managing money.\n\n")
	b.WriteString("Answer in " + display.English.Tags().Name(a.lang) + " using concise Markdown.")
	return b.String()
}
