package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by mutations that target a row that does not exist.
var ErrNotFound = errors.New("not found")

type InvoiceRepository interface {
	Create(ctx context.Context, inv *models.Invoice) error
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	ListByUser(ctx context.Context, userID string) ([]models.Invoice, error)
	ListFingerprintsByUser(ctx context.Context, userID string) ([]models.InvoiceFingerprint, error)
	Update(ctx context.Context, id string, upd *models.InvoiceUpdate) error
	Delete(ctx context.Context, id string) error
}

type invoiceRow struct {
	ID             string `db:"id"`
	UserID         string `db:"user_id"`
	ChatID         string `db:"chat_id"`
	CustomerName   string `db:"customer_name"`
	VendorName     string `db:"vendor_name"`
	InvoiceNumber  string `db:"invoice_number"`
	InvoiceDate    string `db:"invoice_date"`
	InvoiceDueDate string `db:"invoice_due_date"`
	InvoiceAmount  string `db:"invoice_amount"`
	CreatedAt      int64  `db:"created_at"`
}

func (r invoiceRow) toModel() models.Invoice {
	return models.Invoice{
		ID:             r.ID,
		UserID:         r.UserID,
		ChatID:         r.ChatID,
		CustomerName:   r.CustomerName,
		VendorName:     r.VendorName,
		InvoiceNumber:  r.InvoiceNumber,
		InvoiceDate:    r.InvoiceDate,
		InvoiceDueDate: r.InvoiceDueDate,
		InvoiceAmount:  r.InvoiceAmount,
		LineItems:      []models.LineItem{},
		CreatedAt:      fromMillis(r.CreatedAt),
	}
}

type lineItemRow struct {
	InvoiceID    string `db:"invoice_id"`
	ItemName     string `db:"item_name"`
	ItemQuantity string `db:"item_quantity"`
	ItemPrice    string `db:"item_price"`
	ItemTotal    string `db:"item_total"`
}

type invoiceRepository struct {
	db *sqlx.DB
}

func NewInvoiceRepository(db *sqlx.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create inserts the invoice and its line items atomically.
func (r *invoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO invoices (id, user_id, chat_id, customer_name, vendor_name, invoice_number,
			                      invoice_date, invoice_due_date, invoice_amount, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			inv.ID,
			inv.UserID,
			inv.ChatID,
			inv.CustomerName,
			inv.VendorName,
			inv.InvoiceNumber,
			inv.InvoiceDate,
			inv.InvoiceDueDate,
			inv.InvoiceAmount,
			toMillis(inv.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert invoice: %w", err)
		}

		return insertLineItems(ctx, tx, inv.ID, inv.LineItems, inv.CreatedAt)
	})
}

func insertLineItems(ctx context.Context, tx *sqlx.Tx, invoiceID string, items []models.LineItem, createdAt time.Time) error {
	query := `
		INSERT INTO line_items (id, invoice_id, position, item_name, item_quantity, item_price, item_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, item := range items {
		_, err := tx.ExecContext(ctx, query,
			utils.GenerateID(),
			invoiceID,
			i,
			item.ItemName,
			item.ItemQuantity,
			item.ItemPrice,
			item.ItemTotal,
			toMillis(createdAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert line item %d: %w", i, err)
		}
	}
	return nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	var row invoiceRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM invoices WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []lineItemRow
	err = r.db.SelectContext(ctx, &items, `
		SELECT invoice_id, item_name, item_quantity, item_price, item_total
		FROM line_items
		WHERE invoice_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}

	inv := row.toModel()
	for _, item := range items {
		inv.LineItems = append(inv.LineItems, item.toModel())
	}
	return &inv, nil
}

func (r lineItemRow) toModel() models.LineItem {
	return models.LineItem{
		ItemName:     r.ItemName,
		ItemQuantity: r.ItemQuantity,
		ItemPrice:    r.ItemPrice,
		ItemTotal:    r.ItemTotal,
	}
}

// ListByUser returns the user's invoices, newest first, each with its line items.
func (r *invoiceRepository) ListByUser(ctx context.Context, userID string) ([]models.Invoice, error) {
	var rows []invoiceRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM invoices WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}

	var items []lineItemRow
	err = r.db.SelectContext(ctx, &items, `
		SELECT li.invoice_id, li.item_name, li.item_quantity, li.item_price, li.item_total
		FROM line_items li
		JOIN invoices i ON i.id = li.invoice_id
		WHERE i.user_id = ?
		ORDER BY li.invoice_id, li.position
	`, userID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]models.LineItem, len(rows))
	for _, item := range items {
		grouped[item.InvoiceID] = append(grouped[item.InvoiceID], item.toModel())
	}

	invoices := make([]models.Invoice, 0, len(rows))
	for _, row := range rows {
		inv := row.toModel()
		if li, ok := grouped[row.ID]; ok {
			inv.LineItems = li
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (r *invoiceRepository) ListFingerprintsByUser(ctx context.Context, userID string) ([]models.InvoiceFingerprint, error) {
	var rows []struct {
		VendorName    string `db:"vendor_name"`
		InvoiceNumber string `db:"invoice_number"`
		InvoiceAmount string `db:"invoice_amount"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT vendor_name, invoice_number, invoice_amount
		FROM invoices
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}

	fps := make([]models.InvoiceFingerprint, 0, len(rows))
	for _, row := range rows {
		fps = append(fps, models.InvoiceFingerprint{
			VendorName:    row.VendorName,
			InvoiceNumber: row.InvoiceNumber,
			InvoiceAmount: row.InvoiceAmount,
		})
	}
	return fps, nil
}

// Update applies the non-nil fields of upd. Line items are replaced wholesale when given.
func (r *invoiceRepository) Update(ctx context.Context, id string, upd *models.InvoiceUpdate) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var createdAt int64
		err := tx.GetContext(ctx, &createdAt, `SELECT created_at FROM invoices WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var sets []string
		var args []any
		add := func(column string, value *string) {
			if value != nil {
				sets = append(sets, column+" = ?")
				args = append(args, *value)
			}
		}
		add("customer_name", upd.CustomerName)
		add("vendor_name", upd.VendorName)
		add("invoice_number", upd.InvoiceNumber)
		add("invoice_date", upd.InvoiceDate)
		add("invoice_due_date", upd.InvoiceDueDate)
		add("invoice_amount", upd.InvoiceAmount)

		if len(sets) > 0 {
			args = append(args, id)
			query := "UPDATE invoices SET " + strings.Join(sets, ", ") + " WHERE id = ?"
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to update invoice: %w", err)
			}
		}

		if upd.LineItems != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE invoice_id = ?`, id); err != nil {
				return fmt.Errorf("failed to clear line items: %w", err)
			}
			if err := insertLineItems(ctx, tx, id, *upd.LineItems, time.Now().UTC()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the invoice; line items go with it.
func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
