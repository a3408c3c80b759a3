// Package agent runs the three model-backed invoice stages: classification,
// extraction and duplicate identification. Each stage consults the prompt
// cache first; only real model calls are metered in the usage ledger.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/invoice-chat-api/internal/llm"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/promptcache"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

var ErrNoPages = errors.New("document has no pages")

type Cache interface {
	Lookup(ctx context.Context, key string) ([]byte, bool)
	Store(ctx context.Context, key string, value []byte, tokensSaved int)
}

type Ledger interface {
	Record(ctx context.Context, event *models.TokenUsageEvent) error
}

type Agent struct {
	model  llm.Model
	cache  Cache
	ledger Ledger
	logger *utils.Logger
}

func New(model llm.Model, cache Cache, ledger Ledger, logger *utils.Logger) *Agent {
	return &Agent{
		model:  model,
		cache:  cache,
		ledger: ledger,
		logger: logger,
	}
}

// ClassifyDocument decides whether pages form an invoice. Only the first page
// is shown to the model.
func (a *Agent) ClassifyDocument(ctx context.Context, pages []models.Page, userID, invoiceID string) (*models.ClassificationResult, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	multiPage := len(pages) > 1
	key, err := promptcache.Fingerprint(promptcache.PrefixClassify, struct {
		Model     string      `json:"model"`
		Page      models.Page `json:"page"`
		MultiPage bool        `json:"multiPage"`
	}{a.model.ModelID(), pages[0], multiPage})
	if err != nil {
		return nil, err
	}

	text := classifyInstruction
	if multiPage {
		text += "\n\n" + classifyMultiPage
	}

	req := &llm.ObjectRequest{
		Name:   "document_classification",
		Schema: classificationSchema,
		System: classificationPrompt,
		Messages: []llm.Message{{
			Role:  llm.RoleUser,
			Parts: []llm.Part{llm.TextPart(text), llm.DataPart(pages[0].MIMEType, pages[0].Data)},
		}},
	}

	return generate(ctx, a, key, req, models.OperationClassification, userID, invoiceID,
		func(r *models.ClassificationResult, u models.TokenUsage) { r.TokenUsage = u })
}

// ExtractInvoiceData pulls the invoice fields from all pages in a single call.
// LineItems is never nil in the result.
func (a *Agent) ExtractInvoiceData(ctx context.Context, pages []models.Page, userID, invoiceID string) (*models.ExtractionResult, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	key, err := promptcache.Fingerprint(promptcache.PrefixExtract, struct {
		Model string        `json:"model"`
		Pages []models.Page `json:"pages"`
	}{a.model.ModelID(), pages})
	if err != nil {
		return nil, err
	}

	text := extractInstruction
	if len(pages) > 1 {
		text += "\n\n" + extractMultiPage
	}
	parts := []llm.Part{llm.TextPart(text)}
	for _, p := range pages {
		parts = append(parts, llm.DataPart(p.MIMEType, p.Data))
	}

	req := &llm.ObjectRequest{
		Name:     "invoice_extraction",
		Schema:   extractionSchema,
		System:   extractionPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: parts}},
	}

	result, err := generate(ctx, a, key, req, models.OperationExtraction, userID, invoiceID,
		func(r *models.ExtractionResult, u models.TokenUsage) { r.TokenUsage = u })
	if err != nil {
		return nil, err
	}
	if result.LineItems == nil {
		result.LineItems = []models.LineItem{}
	}
	return result, nil
}

// CheckForDuplicates asks the model for one judgment of candidate against
// every existing invoice of the user.
func (a *Agent) CheckForDuplicates(ctx context.Context, candidate models.InvoiceFingerprint, existing []models.InvoiceFingerprint, userID, invoiceID string) (*models.DuplicateCheckResult, error) {
	if existing == nil {
		existing = []models.InvoiceFingerprint{}
	}

	key, err := promptcache.Fingerprint(promptcache.PrefixDuplicate, struct {
		Model            string                      `json:"model"`
		NewInvoice       models.InvoiceFingerprint   `json:"newInvoice"`
		ExistingInvoices []models.InvoiceFingerprint `json:"existingInvoices"`
	}{a.model.ModelID(), candidate, existing})
	if err != nil {
		return nil, err
	}

	req := &llm.ObjectRequest{
		Name:   "duplicate_identification",
		Schema: duplicateSchema,
		System: duplicatePrompt,
		Messages: []llm.Message{{
			Role:  llm.RoleUser,
			Parts: []llm.Part{llm.TextPart(duplicateMessage(candidate, existing))},
		}},
	}

	return generate(ctx, a, key, req, models.OperationDuplicateCheck, userID, invoiceID,
		func(r *models.DuplicateCheckResult, u models.TokenUsage) { r.TokenUsage = u })
}

func duplicateMessage(candidate models.InvoiceFingerprint, existing []models.InvoiceFingerprint) string {
	var sb strings.Builder
	sb.WriteString("Please check if this new invoice is a duplicate of any existing invoices:\n\n")
	sb.WriteString("New Invoice:\n")
	fmt.Fprintf(&sb, "- Vendor: %s\n- Invoice Number: %s\n- Amount: %s\n\n", candidate.VendorName, candidate.InvoiceNumber, candidate.InvoiceAmount)
	sb.WriteString("Existing Invoices:\n")
	if len(existing) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, e := range existing {
		fmt.Fprintf(&sb, "- Vendor: %s - Invoice Number: %s - Amount: %s\n", e.VendorName, e.InvoiceNumber, e.InvoiceAmount)
	}
	return sb.String()
}

// generate is the shared stage body: cache lookup, model call, cache store, ledger write.
func generate[T any](ctx context.Context, a *Agent, key string, req *llm.ObjectRequest, op models.OperationType, userID, invoiceID string, withUsage func(*T, models.TokenUsage)) (*T, error) {
	logger := a.logger.With("operation", op, "invoiceId", invoiceID)

	if cached, ok := a.cache.Lookup(ctx, key); ok {
		var out T
		if err := json.Unmarshal(cached, &out); err == nil {
			logger.Debug("Prompt cache hit")
			return &out, nil
		}
		logger.Warn("Ignoring undecodable cache entry", "hash", key)
	}

	resp, err := a.model.GenerateObject(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strings.ToLower(string(op)), err)
	}

	var out T
	if err := json.Unmarshal(resp.Object, &out); err != nil {
		return nil, fmt.Errorf("%s: model returned an unexpected shape: %w", strings.ToLower(string(op)), err)
	}
	withUsage(&out, resp.Usage)

	if data, err := json.Marshal(&out); err == nil {
		a.cache.Store(ctx, key, data, resp.Usage.TotalTokens)
	}

	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = a.model.ModelID()
	}
	event := &models.TokenUsageEvent{
		UserID:        userID,
		InvoiceID:     invoiceID,
		OperationType: op,
		InputTokens:   resp.Usage.PromptTokens,
		OutputTokens:  resp.Usage.CompletionTokens,
		TotalTokens:   resp.Usage.TotalTokens,
		ModelUsed:     modelUsed,
	}
	if err := a.ledger.Record(ctx, event); err != nil {
		logger.Error("Failed to record token usage", "error", err)
	}

	logger.Info("Model call completed", "model", modelUsed, "totalTokens", resp.Usage.TotalTokens)
	return &out, nil
}
