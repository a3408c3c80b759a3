package services

import (
	"context"
	"errors"
	"strings"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/repository"
	"github.com/BerylCAtieno/invoice-chat-api/internal/storage"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

type InvoiceService interface {
	ListInvoices(ctx context.Context, userID string) ([]models.Invoice, error)
	GetInvoice(ctx context.Context, userID, id string) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, userID, id string, upd *models.InvoiceUpdate) (*models.Invoice, error)
	DeleteInvoice(ctx context.Context, userID, id string, deleteChat bool) error
}

type invoiceService struct {
	invoices repository.InvoiceRepository
	chats    repository.ChatRepository
	archive  storage.Storage
	logger   *utils.Logger
}

func NewInvoiceService(invoices repository.InvoiceRepository, chats repository.ChatRepository, archive storage.Storage, logger *utils.Logger) InvoiceService {
	return &invoiceService{
		invoices: invoices,
		chats:    chats,
		archive:  archive,
		logger:   logger,
	}
}

func (s *invoiceService) ListInvoices(ctx context.Context, userID string) ([]models.Invoice, error) {
	invoices, err := s.invoices.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list invoices", "error", err, "userId", userID)
		return nil, utils.NewInternalError("Failed to retrieve invoices")
	}
	return invoices, nil
}

// GetInvoice returns the invoice if it exists and belongs to userID.
func (s *invoiceService) GetInvoice(ctx context.Context, userID, id string) (*models.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get invoice", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve invoice")
	}
	if inv == nil || inv.UserID != userID {
		return nil, utils.NewNotFoundError("Invoice not found")
	}
	return inv, nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, userID, id string, upd *models.InvoiceUpdate) (*models.Invoice, error) {
	if err := validateUpdate(upd); err != nil {
		return nil, err
	}
	if _, err := s.GetInvoice(ctx, userID, id); err != nil {
		return nil, err
	}

	if err := s.invoices.Update(ctx, id, upd); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NewNotFoundError("Invoice not found")
		}
		s.logger.Error("Failed to update invoice", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to update invoice")
	}

	s.logger.Info("Invoice updated", "id", id)
	return s.GetInvoice(ctx, userID, id)
}

// validateUpdate rejects updates that would blank out a required field.
func validateUpdate(upd *models.InvoiceUpdate) error {
	if upd == nil {
		return utils.NewBadRequestError("Missing update body")
	}

	required := map[string]*string{
		"customerName":   upd.CustomerName,
		"vendorName":     upd.VendorName,
		"invoiceNumber":  upd.InvoiceNumber,
		"invoiceDate":    upd.InvoiceDate,
		"invoiceDueDate": upd.InvoiceDueDate,
		"invoiceAmount":  upd.InvoiceAmount,
	}
	for name, v := range required {
		if v != nil && strings.TrimSpace(*v) == "" {
			return utils.NewBadRequestError("Missing required field: " + name)
		}
	}
	return nil
}

// DeleteInvoice removes the invoice, its archived document and, when
// deleteChat is set, the chat it was uploaded in. Chat and archive cleanup
// failures are logged and do not fail the delete.
func (s *invoiceService) DeleteInvoice(ctx context.Context, userID, id string, deleteChat bool) error {
	inv, err := s.GetInvoice(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.invoices.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NewNotFoundError("Invoice not found")
		}
		s.logger.Error("Failed to delete invoice", "error", err, "id", id)
		return utils.NewInternalError("Failed to delete invoice")
	}

	if s.archive != nil {
		if err := s.archive.RemoveDocument(ctx, id); err != nil {
			s.logger.Warn("Failed to remove archived document", "error", err, "id", id)
		}
	}

	if deleteChat {
		if err := s.chats.Delete(ctx, inv.ChatID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Failed to delete associated chat", "error", err, "chatId", inv.ChatID)
		}
	}

	s.logger.Info("Invoice deleted", "id", id, "deleteChat", deleteChat)
	return nil
}
