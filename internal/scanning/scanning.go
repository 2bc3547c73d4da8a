package scanning

import "context"

// DefaultCategory is assigned to line items the model could not categorize.
const DefaultCategory = "Uncategorized"

// StructuredReceipt is the validated result of a receipt scan.
type StructuredReceipt struct {
	StoreName string     `json:"storeName"`
	Total     float64    `json:"total"`
	Items     []LineItem `json:"items"`

	// TotalsReconciled reports whether the summed line totals approximately
	// match the stated grand total. A mismatch does not reject the receipt.
	TotalsReconciled bool `json:"totalsReconciled"`
}

// LineItem is one entry on a receipt. A bundle (several components sold under
// one price, e.g. a combo plate) is folded into a single LineItem whose name
// carries the bundle label and its components.
type LineItem struct {
	Name           string  `json:"name"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      float64 `json:"unitPrice"`
	TotalItemPrice float64 `json:"totalItemPrice"`
	Brand          string  `json:"brand"`
	Category       string  `json:"category"`
}

// Transcriber converts a receipt image into unstructured text.
type Transcriber interface {
	Transcribe(ctx context.Context, imageData []byte, contentType string) (string, error)
}

// Structurer converts raw receipt text into a validated StructuredReceipt.
type Structurer interface {
	Structure(ctx context.Context, rawText string) (*StructuredReceipt, error)
}

// TextModel is a plain completion call, used by the category and shopping
// suggestion features.
type TextModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider bundles everything a hosted model backend offers.
type Provider interface {
	Transcriber
	Structurer
	TextModel
	// Close closes the provider and releases resources
	Close() error
}
