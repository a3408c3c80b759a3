package agent

import "github.com/BerylCAtieno/invoice-chat-api/internal/llm"

var classificationSchema = llm.Object("Invoice classification",
	llm.Prop("isInvoice", llm.Boolean("Whether the document is an invoice")),
	llm.Prop("confidence", llm.Number("Confidence between 0 and 1")),
	llm.Prop("reasoning", llm.String("Why the document was classified this way")),
)

var lineItemSchema = llm.Object("One invoice line",
	llm.Prop("itemName", llm.String("Description of the product or service")),
	llm.Prop("itemQuantity", llm.String("Quantity, with units if printed")),
	llm.Prop("itemPrice", llm.String("Unit price as printed")),
	llm.Prop("itemTotal", llm.String("Line total as printed")),
)

var extractionSchema = llm.Object("Extracted invoice",
	llm.Prop("customerName", llm.String("Customer or bill-to name")),
	llm.Prop("vendorName", llm.String("Issuing vendor name")),
	llm.Prop("invoiceDate", llm.String("Issue date as printed")),
	llm.Prop("invoiceNumber", llm.String("Invoice identifier")),
	llm.Prop("invoiceAmount", llm.String("Total amount due as printed")),
	llm.Prop("invoiceDueDate", llm.String("Due date as printed")),
	llm.Prop("lineItems", llm.ArrayOf("Itemized lines; empty when the invoice has none", lineItemSchema)),
)

var duplicateSchema = llm.Object("Duplicate check",
	llm.Prop("isDuplicate", llm.Boolean("Whether the new invoice duplicates an existing one")),
	llm.Prop("confidence", llm.Number("Confidence between 0 and 1")),
	llm.Prop("reasoning", llm.String("Explanation, naming the matching invoice if any")),
)
