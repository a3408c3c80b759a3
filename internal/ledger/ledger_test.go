package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/pricing"
	"github.com/shopspring/decimal"
)

type mockStore struct {
	events    map[string]models.TokenUsageEvent
	upsertErr error
}

func newMockStore() *mockStore {
	return &mockStore{events: make(map[string]models.TokenUsageEvent)}
}

func (m *mockStore) Upsert(_ context.Context, event *models.TokenUsageEvent) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.events[event.ID] = *event
	return nil
}

func (m *mockStore) ListByInvoice(_ context.Context, invoiceID string) ([]models.TokenUsageEvent, error) {
	var out []models.TokenUsageEvent
	for _, ev := range m.events {
		if ev.InvoiceID == invoiceID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockStore) ListByUserSince(_ context.Context, userID string, since time.Time) ([]models.UsageRow, error) {
	return nil, nil
}

func testCalculator() *pricing.Calculator {
	return pricing.NewCalculator(pricing.PricingTable{
		"chat-model-small": {Input: decimal.RequireFromString("0.60"), Output: decimal.RequireFromString("2.40")},
	})
}

func TestLedger_RecordComputesCost(t *testing.T) {
	store := newMockStore()
	l := New(store, testCalculator())

	event := &models.TokenUsageEvent{
		UserID:        "user-1",
		InvoiceID:     "inv-1",
		OperationType: models.OperationExtraction,
		InputTokens:   1000,
		OutputTokens:  500,
		ModelUsed:     "chat-model-small",
	}
	if err := l.Record(context.Background(), event); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if event.ID == "" {
		t.Error("expected id to be assigned")
	}
	stored := store.events[event.ID]
	if !stored.Cost.Equal(decimal.RequireFromString("0.0018")) {
		t.Errorf("Cost = %s, want 0.0018", stored.Cost)
	}
	if stored.TotalTokens != 1500 {
		t.Errorf("TotalTokens = %d, want 1500", stored.TotalTokens)
	}
	if stored.CostUnit != models.CostUnitUSD {
		t.Errorf("CostUnit = %q", stored.CostUnit)
	}
}

func TestLedger_RecordKeepsExplicitCost(t *testing.T) {
	store := newMockStore()
	l := New(store, testCalculator())

	explicit := decimal.RequireFromString("9.99")
	event := &models.TokenUsageEvent{ID: "e1", ModelUsed: "chat-model-small", InputTokens: 1, Cost: &explicit}
	if err := l.Record(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	if !store.events["e1"].Cost.Equal(explicit) {
		t.Errorf("explicit cost overwritten: %s", store.events["e1"].Cost)
	}
}

func TestLedger_RecordUnknownModelIsFree(t *testing.T) {
	store := newMockStore()
	l := New(store, testCalculator())

	event := &models.TokenUsageEvent{ID: "e1", ModelUsed: "", InputTokens: 1_000_000}
	if err := l.Record(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	if !store.events["e1"].Cost.IsZero() {
		t.Errorf("expected zero cost, got %s", store.events["e1"].Cost)
	}
}

func TestLedger_RecordPropagatesStoreError(t *testing.T) {
	store := newMockStore()
	store.upsertErr = errors.New("disk full")
	l := New(store, testCalculator())

	err := l.Record(context.Background(), &models.TokenUsageEvent{ID: "e1"})
	if !errors.Is(err, store.upsertErr) {
		t.Errorf("Record() error = %v, want wrapped store error", err)
	}
}

func TestSummarize(t *testing.T) {
	cost := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}
	rows := []models.UsageRow{
		{TokenUsageEvent: models.TokenUsageEvent{InvoiceID: "a", TotalTokens: 100, Cost: cost("0.10")}},
		{TokenUsageEvent: models.TokenUsageEvent{InvoiceID: "a", TotalTokens: 300, Cost: cost("0.20")}},
		{TokenUsageEvent: models.TokenUsageEvent{InvoiceID: "b", TotalTokens: 200, Cost: cost("0.30")}},
	}

	got := Summarize(rows)
	if got.TotalInvoices != 2 {
		t.Errorf("TotalInvoices = %d, want 2", got.TotalInvoices)
	}
	if got.TotalTokens != 600 {
		t.Errorf("TotalTokens = %d, want 600", got.TotalTokens)
	}
	if !got.TotalCost.Equal(decimal.RequireFromString("0.60")) {
		t.Errorf("TotalCost = %s, want 0.60", got.TotalCost)
	}
	if got.AverageTokensPerInvoice != 300 {
		t.Errorf("AverageTokensPerInvoice = %v, want 300", got.AverageTokensPerInvoice)
	}
	if !got.AverageCostPerInvoice.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("AverageCostPerInvoice = %s, want 0.30", got.AverageCostPerInvoice)
	}

	empty := Summarize(nil)
	if empty.TotalInvoices != 0 || !empty.TotalCost.IsZero() {
		t.Errorf("unexpected empty summary: %+v", empty)
	}
}
