package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/document"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/storage"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

type PipelineState string

const (
	StateClassifying       PipelineState = "CLASSIFYING"
	StateExtracting        PipelineState = "EXTRACTING"
	StateDuplicateChecking PipelineState = "DUPLICATE_CHECKING"
	StateSaving            PipelineState = "SAVING"
	StateDone              PipelineState = "DONE"

	StateRejectedNotInvoice PipelineState = "REJECTED_NOT_INVOICE"
	StateExtractionFailed   PipelineState = "EXTRACTION_FAILED"
	StateDuplicateRejected  PipelineState = "DUPLICATE_REJECTED"
	StateSaveFailed         PipelineState = "SAVE_FAILED"
)

const (
	imageErrorMessage   = "There was an issue processing the document images. Please ensure the PDF is valid and try again."
	modelErrorMessage   = "There was an issue with the AI model. Please try again in a moment."
	genericErrorMessage = "An error occurred while processing your invoice. Please try again or contact support."

	extractionFailedMessage = "Failed to extract invoice data: An error occurred while extracting invoice data."
	saveFailedMessage       = "Failed to save invoice: An error occurred while saving the invoice."
)

// DocumentAgent runs the three model-backed stages.
type DocumentAgent interface {
	ClassifyDocument(ctx context.Context, pages []models.Page, userID, invoiceID string) (*models.ClassificationResult, error)
	ExtractInvoiceData(ctx context.Context, pages []models.Page, userID, invoiceID string) (*models.ExtractionResult, error)
	CheckForDuplicates(ctx context.Context, candidate models.InvoiceFingerprint, existing []models.InvoiceFingerprint, userID, invoiceID string) (*models.DuplicateCheckResult, error)
}

type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	ListFingerprintsByUser(ctx context.Context, userID string) ([]models.InvoiceFingerprint, error)
}

type ChatStore interface {
	Create(ctx context.Context, chat *models.Chat) error
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
}

// DocumentUpload is one uploaded document to run through the pipeline.
// Images hold base64 page renderings; OriginalFile is the raw upload, if any.
type DocumentUpload struct {
	ChatID           string
	UserID           string
	Type             string
	Images           []string
	OriginalFileName string
	OriginalFile     []byte
}

type RunResult struct {
	RunID    string               `json:"runId"`
	State    PipelineState        `json:"state"`
	Messages []models.ChatMessage `json:"messages"`
	Invoice  *models.Invoice      `json:"invoice,omitempty"`
}

type Pipeline struct {
	agent    DocumentAgent
	invoices InvoiceStore
	chats    ChatStore
	archive  storage.Storage
	logger   *utils.Logger
	now      func() time.Time
}

// NewPipeline wires the orchestrator. archive may be nil, in which case
// uploads are not archived.
func NewPipeline(agent DocumentAgent, invoices InvoiceStore, chats ChatStore, archive storage.Storage, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		agent:    agent,
		invoices: invoices,
		chats:    chats,
		archive:  archive,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ProcessDocument validates the upload and runs classify, extract,
// duplicate-check and save in order. Validation problems are returned as
// 400 errors before any stage runs; stage failures end the run in a
// terminal state with an assistant message and a nil error.
func (p *Pipeline) ProcessDocument(ctx context.Context, upload *DocumentUpload) (*RunResult, error) {
	pages, pdfInfo, err := validateUpload(upload)
	if err != nil {
		return nil, err
	}

	if err := p.ensureChat(ctx, upload); err != nil {
		return nil, err
	}

	userMsg := p.newMessage(upload.ChatID, models.RoleUser, "Uploaded "+displayName(upload.OriginalFileName))
	if err := p.chats.SaveMessage(ctx, userMsg); err != nil {
		return nil, utils.WrapInternalError("Failed to save message", err)
	}

	r := &run{
		Pipeline: p,
		upload:   upload,
		pages:    pages,
		result:   &RunResult{RunID: utils.GenerateID(), State: StateClassifying},
	}
	r.logger = p.logger.With("runId", r.result.RunID, "chatId", upload.ChatID, "userId", upload.UserID)
	if pdfInfo != nil {
		r.logPDF(pdfInfo)
	}

	r.emit(fmt.Sprintf("Processing your %s invoice (%d %s)...", upload.Type, len(pages), document.PageWord(len(pages))))
	r.archivePages(ctx)
	r.execute(ctx)

	r.logger.Info("Pipeline finished", "state", r.result.State)
	return r.result, nil
}

func validateUpload(upload *DocumentUpload) ([]models.Page, *document.PDFInfo, error) {
	if upload.UserID == "" {
		return nil, nil, utils.NewUnauthorizedError("Unauthorized")
	}
	if upload.ChatID == "" {
		return nil, nil, utils.NewBadRequestError("Chat ID is required")
	}
	if err := document.ValidateType(upload.Type); err != nil {
		return nil, nil, utils.NewBadRequestError("Unsupported document type. Only image and pdf are allowed")
	}

	pages, err := document.DecodePages(upload.Images)
	if err != nil {
		if errors.Is(err, document.ErrNoImages) {
			return nil, nil, utils.NewBadRequestError("No images provided in the document")
		}
		return nil, nil, utils.NewBadRequestError("Invalid image data format. Please ensure the PDF is valid and try again.")
	}

	if upload.Type != document.TypePDF || len(upload.OriginalFile) == 0 {
		return pages, nil, nil
	}
	info, err := document.InspectPDF(upload.OriginalFile)
	if err != nil {
		return nil, nil, utils.NewBadRequestError("The original PDF could not be read")
	}
	return pages, info, nil
}

func (p *Pipeline) ensureChat(ctx context.Context, upload *DocumentUpload) error {
	chat, err := p.chats.GetByID(ctx, upload.ChatID)
	if err != nil {
		return utils.WrapInternalError("Failed to retrieve chat", err)
	}
	if chat != nil {
		if chat.UserID != upload.UserID {
			return utils.NewForbiddenError("Chat belongs to another user")
		}
		return nil
	}

	chat = &models.Chat{
		ID:     upload.ChatID,
		UserID: upload.UserID,
		Title:  "Invoice: " + displayName(upload.OriginalFileName),
	}
	if err := p.chats.Create(ctx, chat); err != nil {
		return utils.WrapInternalError("Failed to create chat", err)
	}
	return nil
}

func (p *Pipeline) newMessage(chatID, role, content string) *models.ChatMessage {
	return &models.ChatMessage{
		ID:        utils.GenerateID(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: p.now(),
	}
}

// run holds the state of one pipeline execution.
type run struct {
	*Pipeline
	upload *DocumentUpload
	pages  []models.Page
	result *RunResult
	logger *utils.Logger
}

func (r *run) execute(ctx context.Context) {
	runID := r.result.RunID
	userID := r.upload.UserID

	classification, err := r.agent.ClassifyDocument(ctx, r.pages, userID, runID)
	if err != nil {
		r.logger.Error("Classification failed", "error", err)
		r.finish(ctx, StateRejectedNotInvoice, userFacingError(err))
		return
	}
	if !classification.IsInvoice {
		r.finish(ctx, StateRejectedNotInvoice, "The uploaded file is not an invoice. Analysis details: "+classification.Reasoning)
		return
	}

	r.result.State = StateExtracting
	extraction, err := r.agent.ExtractInvoiceData(ctx, r.pages, userID, runID)
	if err != nil {
		r.logger.Error("Extraction failed", "error", err)
		r.finish(ctx, StateExtractionFailed, extractionFailedMessage)
		return
	}
	if extraction == nil {
		r.finish(ctx, StateExtractionFailed, extractionFailedMessage)
		return
	}

	r.result.State = StateDuplicateChecking
	existing, err := r.invoices.ListFingerprintsByUser(ctx, userID)
	if err != nil {
		r.logger.Error("Failed to load existing invoices", "error", err)
		r.finish(ctx, StateExtractionFailed, extractionFailedMessage)
		return
	}
	duplicate, err := r.agent.CheckForDuplicates(ctx, extraction.Fingerprint(), existing, userID, runID)
	if err != nil {
		r.logger.Error("Duplicate check failed", "error", err)
		r.finish(ctx, StateExtractionFailed, extractionFailedMessage)
		return
	}
	if duplicate.IsDuplicate {
		r.finish(ctx, StateDuplicateRejected, fmt.Sprintf(
			"⚠️ Duplicate invoice detected. This invoice from %s (Invoice #%s, Amount: %s) appears to already exist in the system. %s",
			extraction.VendorName, extraction.InvoiceNumber, extraction.InvoiceAmount, duplicate.Reasoning))
		return
	}

	r.result.State = StateSaving
	inv := &models.Invoice{
		ID:             runID,
		UserID:         userID,
		ChatID:         r.upload.ChatID,
		CustomerName:   extraction.CustomerName,
		VendorName:     extraction.VendorName,
		InvoiceNumber:  extraction.InvoiceNumber,
		InvoiceDate:    extraction.InvoiceDate,
		InvoiceDueDate: extraction.InvoiceDueDate,
		InvoiceAmount:  extraction.InvoiceAmount,
		LineItems:      extraction.LineItems,
	}
	if err := r.invoices.Create(ctx, inv); err != nil {
		r.logger.Error("Failed to save invoice", "error", err)
		r.finish(ctx, StateSaveFailed, saveFailedMessage)
		return
	}

	r.result.Invoice = inv
	r.finish(ctx, StateDone, successMessage(inv))
}

// logPDF records what the original PDF says about itself. The stages only
// ever see the rendered images.
func (r *run) logPDF(info *document.PDFInfo) {
	r.logger.Info("Original PDF inspected", "pdfPages", info.PageCount, "hasText", info.HasText)
	if info.PageCount != len(r.pages) {
		r.logger.Warn("PDF page count differs from rendered images", "pdfPages", info.PageCount, "images", len(r.pages))
	}
}

// emit appends a message to the run output without persisting it.
func (r *run) emit(content string) *models.ChatMessage {
	msg := r.newMessage(r.upload.ChatID, models.RoleAssistant, content)
	r.result.Messages = append(r.result.Messages, *msg)
	return msg
}

func (r *run) finish(ctx context.Context, state PipelineState, content string) {
	r.result.State = state
	msg := r.emit(content)
	if err := r.chats.SaveMessage(ctx, msg); err != nil {
		r.logger.Error("Failed to persist assistant message", "error", err, "state", state)
	}
}

func (r *run) archivePages(ctx context.Context) {
	if r.archive == nil {
		return
	}

	var original *storage.File
	if len(r.upload.OriginalFile) > 0 {
		contentType := "application/pdf"
		if r.upload.Type == document.TypeImage {
			contentType = r.pages[0].MIMEType
		}
		original = &storage.File{
			Name:        r.upload.OriginalFileName,
			ContentType: contentType,
			Data:        r.upload.OriginalFile,
		}
	}

	keys, err := r.archive.ArchiveDocument(ctx, r.result.RunID, r.pages, original)
	if err != nil {
		r.logger.Warn("Failed to archive document", "error", err, "archived", len(keys))
		return
	}
	r.logger.Debug("Document archived", "objects", len(keys))
}

func successMessage(inv *models.Invoice) string {
	var sb strings.Builder
	sb.WriteString("✅ Invoice processed successfully!\n\n")
	sb.WriteString("**Invoice Details:**\n")
	fmt.Fprintf(&sb, "- Vendor: %s\n", inv.VendorName)
	fmt.Fprintf(&sb, "- Invoice Number: %s\n", inv.InvoiceNumber)
	fmt.Fprintf(&sb, "- Amount: %s\n", inv.InvoiceAmount)
	fmt.Fprintf(&sb, "- Date: %s\n", inv.InvoiceDate)
	fmt.Fprintf(&sb, "- Due Date: %s\n\n", inv.InvoiceDueDate)
	sb.WriteString("The invoice has been saved to your system.")
	return sb.String()
}

// userFacingError picks the message shown for an unexpected stage error.
func userFacingError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "image"):
		return imageErrorMessage
	case strings.Contains(msg, "model"), strings.Contains(msg, "API"):
		return modelErrorMessage
	default:
		return genericErrorMessage
	}
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "document"
	}
	return name
}
