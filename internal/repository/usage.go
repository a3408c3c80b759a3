package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type UsageRepository interface {
	// Upsert writes the event by id. On conflict the creation time and user are kept.
	Upsert(ctx context.Context, event *models.TokenUsageEvent) error
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.TokenUsageEvent, error)
	ListByUserSince(ctx context.Context, userID string, since time.Time) ([]models.UsageRow, error)
}

type usageRow struct {
	ID            string `db:"id"`
	CreatedAt     int64  `db:"created_at"`
	InvoiceID     string `db:"invoice_id"`
	UserID        string `db:"user_id"`
	OperationType string `db:"operation_type"`
	InputTokens   int    `db:"input_tokens"`
	OutputTokens  int    `db:"output_tokens"`
	TotalTokens   int    `db:"total_tokens"`
	Cost          string `db:"cost"`
	CostUnit      string `db:"cost_unit"`
	ModelUsed     string `db:"model_used"`
}

func (r usageRow) toModel() (models.TokenUsageEvent, error) {
	cost, err := decimal.NewFromString(r.Cost)
	if err != nil {
		return models.TokenUsageEvent{}, fmt.Errorf("invalid cost %q on usage %s: %w", r.Cost, r.ID, err)
	}
	return models.TokenUsageEvent{
		ID:            r.ID,
		UserID:        r.UserID,
		InvoiceID:     r.InvoiceID,
		OperationType: models.OperationType(r.OperationType),
		InputTokens:   r.InputTokens,
		OutputTokens:  r.OutputTokens,
		TotalTokens:   r.TotalTokens,
		Cost:          &cost,
		CostUnit:      r.CostUnit,
		ModelUsed:     r.ModelUsed,
		CreatedAt:     fromMillis(r.CreatedAt),
	}, nil
}

type usageRepository struct {
	db *sqlx.DB
}

func NewUsageRepository(db *sqlx.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Upsert(ctx context.Context, event *models.TokenUsageEvent) error {
	if event.Cost == nil {
		return fmt.Errorf("usage event %s has no cost", event.ID)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tokens (id, created_at, invoice_id, user_id, operation_type,
		                    input_tokens, output_tokens, total_tokens, cost, cost_unit, model_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			invoice_id = excluded.invoice_id,
			operation_type = excluded.operation_type,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			total_tokens = excluded.total_tokens,
			cost = excluded.cost,
			cost_unit = excluded.cost_unit,
			model_used = excluded.model_used
	`,
		event.ID,
		toMillis(event.CreatedAt),
		event.InvoiceID,
		event.UserID,
		string(event.OperationType),
		event.InputTokens,
		event.OutputTokens,
		event.TotalTokens,
		event.Cost.String(),
		event.CostUnit,
		event.ModelUsed,
	)
	return err
}

func (r *usageRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]models.TokenUsageEvent, error) {
	var rows []usageRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM tokens WHERE invoice_id = ? ORDER BY created_at, rowid
	`, invoiceID)
	if err != nil {
		return nil, err
	}

	events := make([]models.TokenUsageEvent, 0, len(rows))
	for _, row := range rows {
		ev, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// ListByUserSince returns the user's usage newest first. Invoice columns are
// null for runs that never produced a saved invoice.
func (r *usageRepository) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]models.UsageRow, error) {
	var rows []struct {
		usageRow
		InvoiceNumber sql.NullString `db:"invoice_number"`
		VendorName    sql.NullString `db:"vendor_name"`
		CustomerName  sql.NullString `db:"customer_name"`
		InvoiceAmount sql.NullString `db:"invoice_amount"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.created_at, t.invoice_id, t.user_id, t.operation_type,
		       t.input_tokens, t.output_tokens, t.total_tokens, t.cost, t.cost_unit, t.model_used,
		       i.invoice_number, i.vendor_name, i.customer_name, i.invoice_amount
		FROM tokens t
		LEFT JOIN invoices i ON t.invoice_id = i.id AND i.user_id = ?
		WHERE t.user_id = ? AND t.created_at >= ?
		ORDER BY t.created_at DESC, t.rowid DESC
	`, userID, userID, toMillis(since))
	if err != nil {
		return nil, err
	}

	result := make([]models.UsageRow, 0, len(rows))
	for _, row := range rows {
		ev, err := row.usageRow.toModel()
		if err != nil {
			return nil, err
		}
		result = append(result, models.UsageRow{
			TokenUsageEvent: ev,
			InvoiceNumber:   nullString(row.InvoiceNumber),
			VendorName:      nullString(row.VendorName),
			CustomerName:    nullString(row.CustomerName),
			InvoiceAmount:   nullString(row.InvoiceAmount),
		})
	}
	return result, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
