package models

// Page is one rendered page of an uploaded document.
type Page struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type ClassificationResult struct {
	IsInvoice  bool       `json:"isInvoice"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	TokenUsage TokenUsage `json:"tokenUsage"`
}

type ExtractionResult struct {
	CustomerName   string     `json:"customerName"`
	VendorName     string     `json:"vendorName"`
	InvoiceNumber  string     `json:"invoiceNumber"`
	InvoiceDate    string     `json:"invoiceDate"`
	InvoiceDueDate string     `json:"invoiceDueDate"`
	InvoiceAmount  string     `json:"invoiceAmount"`
	LineItems      []LineItem `json:"lineItems"`
	TokenUsage     TokenUsage `json:"tokenUsage"`
}

func (r *ExtractionResult) Fingerprint() InvoiceFingerprint {
	return InvoiceFingerprint{
		VendorName:    r.VendorName,
		InvoiceNumber: r.InvoiceNumber,
		InvoiceAmount: r.InvoiceAmount,
	}
}

type DuplicateCheckResult struct {
	IsDuplicate bool       `json:"isDuplicate"`
	Confidence  float64    `json:"confidence"`
	Reasoning   string     `json:"reasoning"`
	TokenUsage  TokenUsage `json:"tokenUsage"`
}
