package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/pricing"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
	"github.com/shopspring/decimal"
)

// Store persists usage events.
type Store interface {
	Upsert(ctx context.Context, event *models.TokenUsageEvent) error
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.TokenUsageEvent, error)
	ListByUserSince(ctx context.Context, userID string, since time.Time) ([]models.UsageRow, error)
}

// CostModel prices a model call.
type CostModel interface {
	Cost(model string, inputTokens, outputTokens int) decimal.Decimal
}

var _ CostModel = (*pricing.Calculator)(nil)

// Ledger records the token usage and cost of every model call.
type Ledger struct {
	store Store
	costs CostModel
}

func New(store Store, costs CostModel) *Ledger {
	return &Ledger{store: store, costs: costs}
}

// Record writes event, filling in the id, cost, cost unit and total when absent.
// Recording an existing id overwrites its mutable fields.
func (l *Ledger) Record(ctx context.Context, event *models.TokenUsageEvent) error {
	if event.ID == "" {
		event.ID = utils.GenerateID()
	}
	if event.CostUnit == "" {
		event.CostUnit = models.CostUnitUSD
	}
	if event.TotalTokens == 0 {
		event.TotalTokens = event.InputTokens + event.OutputTokens
	}
	if event.Cost == nil {
		cost := l.costs.Cost(event.ModelUsed, event.InputTokens, event.OutputTokens)
		event.Cost = &cost
	}

	if err := l.store.Upsert(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s usage for invoice %s: %w", event.OperationType, event.InvoiceID, err)
	}
	return nil
}

// ByInvoice returns the events of one pipeline run, oldest first.
func (l *Ledger) ByInvoice(ctx context.Context, invoiceID string) ([]models.TokenUsageEvent, error) {
	events, err := l.store.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage for invoice %s: %w", invoiceID, err)
	}
	return events, nil
}

// ByUser returns the user's events since the given time, newest first.
func (l *Ledger) ByUser(ctx context.Context, userID string, since time.Time) ([]models.UsageRow, error) {
	rows, err := l.store.ListByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage for user %s: %w", userID, err)
	}
	return rows, nil
}

// Summarize totals a usage report. Invoices are counted by distinct run id,
// so rejected documents count too.
func Summarize(rows []models.UsageRow) models.UsageSummary {
	summary := models.UsageSummary{
		TotalCost:             decimal.Zero,
		AverageCostPerInvoice: decimal.Zero,
		CostUnit:              models.CostUnitUSD,
	}

	seen := make(map[string]struct{})
	for _, row := range rows {
		seen[row.InvoiceID] = struct{}{}
		summary.TotalTokens += row.TotalTokens
		if row.Cost != nil {
			summary.TotalCost = summary.TotalCost.Add(*row.Cost)
		}
	}
	summary.TotalInvoices = len(seen)

	if summary.TotalInvoices > 0 {
		n := summary.TotalInvoices
		summary.AverageTokensPerInvoice = float64(summary.TotalTokens) / float64(n)
		summary.AverageCostPerInvoice = summary.TotalCost.Div(decimal.NewFromInt(int64(n)))
	}
	return summary
}
