package expense

import "time"

// Expense is one purchased item. Money amounts are stored in cents.
type Expense struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Quantity    float64   `json:"quantity"`
	UnitPrice   int       `json:"unit_price"`  // cents
	TotalPrice  int       `json:"total_price"` // cents
	Brand       string    `json:"brand,omitempty"`
	Category    string    `json:"category"`
	StoreName   string    `json:"store_name,omitempty"`
	Date        time.Time `json:"date"`
	ReceiptFile string    `json:"receipt_file,omitempty"` // stored image this expense came from
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Month returns the expense month as YYYY-MM.
func (e *Expense) Month() string {
	return e.Date.Format("2006-01")
}
