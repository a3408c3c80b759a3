package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/BerylCAtieno/invoice-chat-api/internal/agent"
	"github.com/BerylCAtieno/invoice-chat-api/internal/db"
	"github.com/BerylCAtieno/invoice-chat-api/internal/ledger"
	"github.com/BerylCAtieno/invoice-chat-api/internal/llm"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/pricing"
	"github.com/BerylCAtieno/invoice-chat-api/internal/promptcache"
	"github.com/BerylCAtieno/invoice-chat-api/internal/repository"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

const (
	invoiceClassification = `{"isInvoice":true,"confidence":0.95,"reasoning":"Has invoice number, vendor and amount due."}`
	receiptClassification = `{"isInvoice":false,"confidence":0.9,"reasoning":"This is a receipt: it shows payment already made."}`
	officeSuppliesInvoice = `{"customerName":"Retail Store LLC","vendorName":"Office Supplies Co","invoiceNumber":"OS-12345","invoiceDate":"12/15/2023","invoiceDueDate":"01/15/2024","invoiceAmount":"$87.50","lineItems":[{"itemName":"Printer Paper","itemQuantity":"5","itemPrice":"$12.50","itemTotal":"$62.50"},{"itemName":"Blue Pens","itemQuantity":"10","itemPrice":"$2.50","itemTotal":"$25.00"}]}`
	notDuplicate          = `{"isDuplicate":false,"confidence":0.9,"reasoning":"No matching invoices."}`
	isDuplicate           = `{"isDuplicate":true,"confidence":0.97,"reasoning":"Same vendor, number and amount as an existing invoice."}`
)

var ErrMockModel = errors.New("mock model API failure")

// MockModel answers object requests by request name. DuplicateFunc, when set,
// decides the duplicate-check answer from the prompt text.
type MockModel struct {
	mu            sync.Mutex
	Responses     map[string]string
	Errors        map[string]error
	DuplicateFunc func(prompt string) string
	Text          string
	Calls         map[string]int
}

func newMockModel(responses map[string]string) *MockModel {
	return &MockModel{Responses: responses, Errors: map[string]error{}, Calls: map[string]int{}}
}

func (m *MockModel) GenerateObject(_ context.Context, req *llm.ObjectRequest) (*llm.ObjectResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[req.Name]++

	if err := m.Errors[req.Name]; err != nil {
		return nil, err
	}

	body := m.Responses[req.Name]
	if req.Name == "duplicate_identification" && m.DuplicateFunc != nil {
		body = m.DuplicateFunc(req.Messages[0].Parts[0].Text)
	}
	return &llm.ObjectResponse{
		Object: json.RawMessage(body),
		Usage:  models.TokenUsage{PromptTokens: 1000, CompletionTokens: 100, TotalTokens: 1100},
		Model:  "chat-model-small",
	}, nil
}

func (m *MockModel) GenerateText(_ context.Context, req *llm.TextRequest) (*llm.TextResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["text"]++
	if err := m.Errors["text"]; err != nil {
		return nil, err
	}
	return &llm.TextResponse{Text: m.Text, Usage: models.TokenUsage{TotalTokens: 10}, Model: "chat-model-small"}, nil
}

func (m *MockModel) ModelID() string { return "chat-model-small" }

func (m *MockModel) calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}

type failingInvoiceStore struct {
	repository.InvoiceRepository
	err     error
	listErr error
}

func (s *failingInvoiceStore) Create(ctx context.Context, inv *models.Invoice) error {
	if s.err != nil {
		return s.err
	}
	return s.InvoiceRepository.Create(ctx, inv)
}

func (s *failingInvoiceStore) ListFingerprintsByUser(ctx context.Context, userID string) ([]models.InvoiceFingerprint, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.InvoiceRepository.ListFingerprintsByUser(ctx, userID)
}

type pipelineFixture struct {
	pipeline *Pipeline
	model    *MockModel
	invoices repository.InvoiceRepository
	chats    repository.ChatRepository
	ledger   *ledger.Ledger
	cache    *promptcache.Cache
}

func newPipelineFixture(t *testing.T, model *MockModel) *pipelineFixture {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	table, err := pricing.LoadDefault()
	if err != nil {
		t.Fatalf("failed to load pricing: %v", err)
	}

	logger := utils.NewNopLogger()
	f := &pipelineFixture{
		model:    model,
		invoices: repository.NewInvoiceRepository(conn),
		chats:    repository.NewChatRepository(conn),
		ledger:   ledger.New(repository.NewUsageRepository(conn), pricing.NewCalculator(table)),
		cache:    promptcache.New(repository.NewPromptCacheRepository(conn), logger),
	}
	docAgent := agent.New(model, f.cache, f.ledger, logger)
	f.pipeline = NewPipeline(docAgent, f.invoices, f.chats, nil, logger)
	return f
}

func page(content string) string {
	return base64.StdEncoding.EncodeToString([]byte(content))
}

func upload(chatID string, images ...string) *DocumentUpload {
	return &DocumentUpload{
		ChatID:           chatID,
		UserID:           "user-1",
		Type:             "pdf",
		Images:           images,
		OriginalFileName: "invoice.pdf",
	}
}

func happyModel() *MockModel {
	return newMockModel(map[string]string{
		"document_classification":  invoiceClassification,
		"invoice_extraction":       officeSuppliesInvoice,
		"duplicate_identification": notDuplicate,
	})
}

func lastMessage(res *RunResult) string {
	return res.Messages[len(res.Messages)-1].Content
}

// wantPersisted checks the last stored message of a chat.
func wantPersisted(t *testing.T, f *pipelineFixture, chatID, want string) {
	t.Helper()
	msgs, err := f.chats.ListMessages(context.Background(), chatID)
	if err != nil || len(msgs) == 0 {
		t.Fatalf("ListMessages() = %+v, %v", msgs, err)
	}
	if got := msgs[len(msgs)-1].Content; got != want {
		t.Errorf("persisted message = %q, want %q", got, want)
	}
}

func TestPipeline_SavesInvoiceAndRecordsThreeEvents(t *testing.T) {
	f := newPipelineFixture(t, happyModel())
	ctx := context.Background()

	res, err := f.pipeline.ProcessDocument(ctx, upload("chat-1", page("page one"), page("page two")))
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("State = %s, want %s (last message: %q)", res.State, StateDone, lastMessage(res))
	}
	if res.Invoice == nil || res.Invoice.ID != res.RunID {
		t.Fatalf("Invoice = %+v, want id %s", res.Invoice, res.RunID)
	}
	if res.Messages[0].Content != "Processing your pdf invoice (2 pages)..." {
		t.Errorf("progress message = %q", res.Messages[0].Content)
	}
	for _, want := range []string{"Office Supplies Co", "OS-12345", "$87.50", "12/15/2023", "01/15/2024"} {
		if !strings.Contains(lastMessage(res), want) {
			t.Errorf("success message missing %q: %q", want, lastMessage(res))
		}
	}

	saved, err := f.invoices.GetByID(ctx, res.RunID)
	if err != nil || saved == nil {
		t.Fatalf("GetByID() = %v, %v", saved, err)
	}
	if len(saved.LineItems) != 2 || saved.ChatID != "chat-1" {
		t.Errorf("saved invoice = %+v", saved)
	}

	events, err := f.ledger.ByInvoice(ctx, res.RunID)
	if err != nil {
		t.Fatalf("ByInvoice() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d usage events, want 3", len(events))
	}
	wantOps := []models.OperationType{models.OperationClassification, models.OperationExtraction, models.OperationDuplicateCheck}
	for i, e := range events {
		if e.OperationType != wantOps[i] {
			t.Errorf("event %d operation = %s, want %s", i, e.OperationType, wantOps[i])
		}
		if e.UserID != "user-1" || e.InvoiceID != res.RunID {
			t.Errorf("event %d = %+v", i, e)
		}
		// 1000 in at $0.60/M + 100 out at $2.40/M
		if e.Cost == nil || e.Cost.String() != "0.00084" {
			t.Errorf("event %d cost = %v, want 0.00084", i, e.Cost)
		}
	}

	// progress is not persisted; user upload and terminal message are
	msgs, err := f.chats.ListMessages(ctx, "chat-1")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != models.RoleUser || msgs[1].Content != lastMessage(res) {
		t.Errorf("persisted messages = %+v", msgs)
	}

	chat, err := f.chats.GetByID(ctx, "chat-1")
	if err != nil || chat == nil || chat.Title != "Invoice: invoice.pdf" {
		t.Errorf("chat = %+v, %v", chat, err)
	}
}

func TestPipeline_EmptyLineItemsStillSaved(t *testing.T) {
	model := happyModel()
	model.Responses["invoice_extraction"] = `{"customerName":"A","vendorName":"B","invoiceNumber":"1","invoiceDate":"01/01/2024","invoiceDueDate":"02/01/2024","invoiceAmount":"$10.00","lineItems":[]}`
	f := newPipelineFixture(t, model)

	res, err := f.pipeline.ProcessDocument(context.Background(), upload("chat-1", page("single page")))
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("State = %s, want %s", res.State, StateDone)
	}
	if res.Messages[0].Content != "Processing your pdf invoice (1 page)..." {
		t.Errorf("progress message = %q", res.Messages[0].Content)
	}

	saved, err := f.invoices.GetByID(context.Background(), res.RunID)
	if err != nil || saved == nil {
		t.Fatalf("GetByID() = %v, %v", saved, err)
	}
	if saved.LineItems == nil || len(saved.LineItems) != 0 {
		t.Errorf("LineItems = %#v, want empty slice", saved.LineItems)
	}
}

func TestPipeline_NotAnInvoiceShortCircuits(t *testing.T) {
	model := happyModel()
	model.Responses["document_classification"] = receiptClassification
	f := newPipelineFixture(t, model)
	ctx := context.Background()

	res, err := f.pipeline.ProcessDocument(ctx, upload("chat-1", page("receipt")))
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if res.State != StateRejectedNotInvoice {
		t.Fatalf("State = %s, want %s", res.State, StateRejectedNotInvoice)
	}
	want := "The uploaded file is not an invoice. Analysis details: This is a receipt: it shows payment already made."
	if lastMessage(res) != want {
		t.Errorf("message = %q, want %q", lastMessage(res), want)
	}
	if model.calls("invoice_extraction") != 0 || model.calls("duplicate_identification") != 0 {
		t.Errorf("later stages ran: %v", model.Calls)
	}

	events, _ := f.ledger.ByInvoice(ctx, res.RunID)
	if len(events) != 1 || events[0].OperationType != models.OperationClassification {
		t.Errorf("events = %+v, want one classification event", events)
	}
	if inv, _ := f.invoices.GetByID(ctx, res.RunID); inv != nil {
		t.Errorf("invoice saved for rejected document: %+v", inv)
	}
}

func TestPipeline_DuplicateRejectedKeepsUsage(t *testing.T) {
	model := happyModel()
	model.DuplicateFunc = func(prompt string) string {
		if strings.Contains(prompt, "(none)") {
			return notDuplicate
		}
		return isDuplicate
	}
	f := newPipelineFixture(t, model)
	ctx := context.Background()

	first, err := f.pipeline.ProcessDocument(ctx, upload("chat-1", page("page one")))
	if err != nil || first.State != StateDone {
		t.Fatalf("first upload = %+v, %v", first, err)
	}

	second, err := f.pipeline.ProcessDocument(ctx, upload("chat-2", page("page one")))
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if second.State != StateDuplicateRejected {
		t.Fatalf("State = %s, want %s", second.State, StateDuplicateRejected)
	}
	msg := lastMessage(second)
	for _, want := range []string{"Duplicate invoice detected", "Office Supplies Co", "Invoice #OS-12345", "Amount: $87.50", "Same vendor"} {
		if !strings.Contains(msg, want) {
			t.Errorf("duplicate message missing %q: %q", want, msg)
		}
	}

	if inv, _ := f.invoices.GetByID(ctx, second.RunID); inv != nil {
		t.Errorf("duplicate invoice was saved: %+v", inv)
	}
	all, _ := f.invoices.ListByUser(ctx, "user-1")
	if len(all) != 1 {
		t.Errorf("got %d invoices, want 1", len(all))
	}

	// classification and extraction were served from the prompt cache
	if model.calls("document_classification") != 1 || model.calls("invoice_extraction") != 1 {
		t.Errorf("model calls = %v, want cached classify/extract", model.Calls)
	}
	events, _ := f.ledger.ByInvoice(ctx, second.RunID)
	if len(events) != 1 || events[0].OperationType != models.OperationDuplicateCheck {
		t.Errorf("events = %+v, want only the duplicate check", events)
	}
}

func TestPipeline_StageErrors(t *testing.T) {
	tests := []struct {
		name      string
		failStage string
		err       error
		wantState PipelineState
		wantMsg   string
	}{
		{
			name:      "classification model error",
			failStage: "document_classification",
			err:       ErrMockModel,
			wantState: StateRejectedNotInvoice,
			wantMsg:   modelErrorMessage,
		},
		{
			name:      "classification image error",
			failStage: "document_classification",
			err:       errors.New("unsupported image format"),
			wantState: StateRejectedNotInvoice,
			wantMsg:   imageErrorMessage,
		},
		{
			name:      "extraction error",
			failStage: "invoice_extraction",
			err:       errors.New(`failed to reach model API: Post "https://openrouter.ai/api/v1/chat/completions": dial tcp 10.0.0.5:443: i/o timeout`),
			wantState: StateExtractionFailed,
			wantMsg:   extractionFailedMessage,
		},
		{
			name:      "duplicate check error",
			failStage: "duplicate_identification",
			err:       errors.New("timeout"),
			wantState: StateExtractionFailed,
			wantMsg:   extractionFailedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := happyModel()
			model.Errors[tt.failStage] = tt.err
			f := newPipelineFixture(t, model)

			res, err := f.pipeline.ProcessDocument(context.Background(), upload("chat-1", page("page")))
			if err != nil {
				t.Fatalf("ProcessDocument() error = %v", err)
			}
			if res.State != tt.wantState {
				t.Errorf("State = %s, want %s", res.State, tt.wantState)
			}
			if lastMessage(res) != tt.wantMsg {
				t.Errorf("message = %q, want %q", lastMessage(res), tt.wantMsg)
			}
			wantPersisted(t, f, "chat-1", tt.wantMsg)
			if inv, _ := f.invoices.GetByID(context.Background(), res.RunID); inv != nil {
				t.Errorf("invoice saved after failure: %+v", inv)
			}
		})
	}
}

func TestPipeline_SaveFailed(t *testing.T) {
	f := newPipelineFixture(t, happyModel())
	f.pipeline.invoices = &failingInvoiceStore{
		InvoiceRepository: f.invoices,
		err:               errors.New("sqlite: constraint failed: UNIQUE constraint failed: invoices.id (1555)"),
	}

	res, err := f.pipeline.ProcessDocument(context.Background(), upload("chat-1", page("page")))
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if res.State != StateSaveFailed {
		t.Fatalf("State = %s, want %s", res.State, StateSaveFailed)
	}
	if lastMessage(res) != saveFailedMessage {
		t.Errorf("message = %q", lastMessage(res))
	}
	wantPersisted(t, f, "chat-1", saveFailedMessage)
	if res.Invoice != nil {
		t.Errorf("Invoice = %+v, want nil", res.Invoice)
	}
}

func TestPipeline_ExistingInvoicesUnavailable(t *testing.T) {
	model := happyModel()
	f := newPipelineFixture(t, model)
	f.pipeline.invoices = &failingInvoiceStore{
		InvoiceRepository: f.invoices,
		listErr:           errors.New("sql: database is closed"),
	}

	res, err := f.pipeline.ProcessDocument(context.Background(), upload("chat-1", page("page")))
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if res.State != StateExtractionFailed {
		t.Fatalf("State = %s, want %s", res.State, StateExtractionFailed)
	}
	if strings.Contains(lastMessage(res), "database") {
		t.Errorf("message leaks the store error: %q", lastMessage(res))
	}
	wantPersisted(t, f, "chat-1", extractionFailedMessage)
	if model.calls("duplicate_identification") != 0 {
		t.Error("duplicate check ran without the existing invoices")
	}
}

func TestPipeline_LogsOriginalPDF(t *testing.T) {
	data, err := os.ReadFile("../document/testdata/scanned-two-pages.pdf")
	if err != nil {
		t.Fatal(err)
	}
	f := newPipelineFixture(t, happyModel())
	var logs bytes.Buffer
	f.pipeline.logger = utils.NewLoggerTo(&logs, "info")

	u := upload("chat-1", page("only one rendered page"))
	u.OriginalFile = data
	res, err := f.pipeline.ProcessDocument(context.Background(), u)
	if err != nil || res.State != StateDone {
		t.Fatalf("ProcessDocument() = %+v, %v", res, err)
	}

	out := logs.String()
	for _, want := range []string{`"msg":"Original PDF inspected"`, `"pdfPages":2`, `"hasText":false`, `"msg":"PDF page count differs from rendered images"`, `"images":1`} {
		if !strings.Contains(out, want) {
			t.Errorf("logs missing %s:\n%s", want, out)
		}
	}
}

func TestPipeline_ValidationRejectsBeforeAnyStage(t *testing.T) {
	tests := []struct {
		name   string
		modify func(u *DocumentUpload)
		status int
	}{
		{"no images", func(u *DocumentUpload) { u.Images = nil }, 400},
		{"bad base64", func(u *DocumentUpload) { u.Images = []string{"not base64!"} }, 400},
		{"unsupported type", func(u *DocumentUpload) { u.Type = "docx" }, 400},
		{"unreadable pdf", func(u *DocumentUpload) { u.OriginalFile = []byte("not a pdf") }, 400},
		{"missing user", func(u *DocumentUpload) { u.UserID = "" }, 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := happyModel()
			f := newPipelineFixture(t, model)
			u := upload("chat-1", page("page"))
			tt.modify(u)

			_, err := f.pipeline.ProcessDocument(context.Background(), u)
			appErr, ok := utils.AsAppError(err)
			if !ok || appErr.StatusCode != tt.status {
				t.Fatalf("error = %v, want AppError %d", err, tt.status)
			}
			if len(model.Calls) != 0 {
				t.Errorf("model called during validation: %v", model.Calls)
			}
		})
	}
}

func TestPipeline_RejectsForeignChat(t *testing.T) {
	f := newPipelineFixture(t, happyModel())
	ctx := context.Background()
	if err := f.chats.Create(ctx, &models.Chat{ID: "chat-1", UserID: "someone-else", Title: "theirs"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := f.pipeline.ProcessDocument(ctx, upload("chat-1", page("page")))
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.StatusCode != 403 {
		t.Fatalf("error = %v, want 403", err)
	}
}

func TestUserFacingError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("bad image data"), imageErrorMessage},
		{errors.New("OpenRouter API returned status 500"), modelErrorMessage},
		{errors.New("unknown model"), modelErrorMessage},
		{errors.New("connection reset"), genericErrorMessage},
	}
	for _, tt := range tests {
		if got := userFacingError(tt.err); got != tt.want {
			t.Errorf("userFacingError(%q) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
