package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OperationType string

const (
	OperationClassification OperationType = "CLASSIFICATION"
	OperationExtraction     OperationType = "EXTRACTION"
	OperationDuplicateCheck OperationType = "DUPLICATE_CHECK"
)

const CostUnitUSD = "USD"

type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// TokenUsageEvent records the cost of one model call. A nil Cost is
// computed from the pricing table when the event is recorded.
type TokenUsageEvent struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	InvoiceID     string           `json:"invoiceId"`
	OperationType OperationType    `json:"operationType"`
	InputTokens   int              `json:"inputTokens"`
	OutputTokens  int              `json:"outputTokens"`
	TotalTokens   int              `json:"totalTokens"`
	Cost          *decimal.Decimal `json:"cost"`
	CostUnit      string           `json:"costUnit"`
	ModelUsed     string           `json:"modelUsed"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// UsageRow is a usage event joined with the invoice it belongs to, if that invoice was saved.
type UsageRow struct {
	TokenUsageEvent
	InvoiceNumber *string `json:"invoiceNumber"`
	VendorName    *string `json:"vendorName"`
	CustomerName  *string `json:"customerName"`
	InvoiceAmount *string `json:"invoiceAmount"`
}

type UsageSummary struct {
	TotalInvoices           int             `json:"totalInvoices"`
	TotalTokens             int             `json:"totalTokens"`
	TotalCost               decimal.Decimal `json:"totalCost"`
	AverageTokensPerInvoice float64         `json:"averageTokensPerInvoice"`
	AverageCostPerInvoice   decimal.Decimal `json:"averageCostPerInvoice"`
	CostUnit                string          `json:"costUnit"`
}

type UsageReport struct {
	Since   time.Time    `json:"since"`
	Rows    []UsageRow   `json:"rows"`
	Summary UsageSummary `json:"summary"`
}
