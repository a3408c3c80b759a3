package models

import "time"

type Invoice struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	ChatID         string     `json:"chatId"`
	CustomerName   string     `json:"customerName"`
	VendorName     string     `json:"vendorName"`
	InvoiceNumber  string     `json:"invoiceNumber"`
	InvoiceDate    string     `json:"invoiceDate"`
	InvoiceDueDate string     `json:"invoiceDueDate"`
	InvoiceAmount  string     `json:"invoiceAmount"`
	LineItems      []LineItem `json:"lineItems"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type LineItem struct {
	ItemName     string `json:"itemName"`
	ItemQuantity string `json:"itemQuantity"`
	ItemPrice    string `json:"itemPrice"`
	ItemTotal    string `json:"itemTotal"`
}

// InvoiceUpdate carries a partial update. Nil fields are left unchanged;
// a non-nil LineItems replaces the invoice's line items.
type InvoiceUpdate struct {
	CustomerName   *string     `json:"customerName,omitempty"`
	VendorName     *string     `json:"vendorName,omitempty"`
	InvoiceNumber  *string     `json:"invoiceNumber,omitempty"`
	InvoiceDate    *string     `json:"invoiceDate,omitempty"`
	InvoiceDueDate *string     `json:"invoiceDueDate,omitempty"`
	InvoiceAmount  *string     `json:"invoiceAmount,omitempty"`
	LineItems      *[]LineItem `json:"lineItems,omitempty"`
}

// InvoiceFingerprint is the subset of an invoice compared during duplicate detection.
type InvoiceFingerprint struct {
	VendorName    string `json:"vendorName"`
	InvoiceNumber string `json:"invoiceNumber"`
	InvoiceAmount string `json:"invoiceAmount"`
}

func (i *Invoice) Fingerprint() InvoiceFingerprint {
	return InvoiceFingerprint{
		VendorName:    i.VendorName,
		InvoiceNumber: i.InvoiceNumber,
		InvoiceAmount: i.InvoiceAmount,
	}
}
