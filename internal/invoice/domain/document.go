package domain

// Address is a postal address printed on the invoice document.
type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Party is the clinic or the client on a document.
type Party struct {
	Name    string   `json:"name"`
	Address *Address `json:"address"`
}

// DocumentItem is a line as printed on the PDF. It carries its currency.
type DocumentItem struct {
	Description  string   `json:"description"`
	Quantity     *float64 `json:"quantity"`
	UnitPrice    *float64 `json:"unit_price"`
	Currency     string   `json:"currency"`
	TaxRate      *float64 `json:"tax_rate,omitempty"`
	DiscountRate *float64 `json:"discount_rate,omitempty"`
}

// Document is everything needed to render a printable invoice.
type Document struct {
	Clinic        *Party         `json:"clinic"`
	Client        *Party         `json:"client"`
	InvoiceNumber string         `json:"invoice_number"`
	Date          string         `json:"date"`
	Items         []DocumentItem `json:"items"`
}

// DocumentTotals are the amounts printed under the item table.
//
// They are quantity*unitPrice sums plus tax and ignore discount_rate, unlike
// Totals from the line calculator.
type DocumentTotals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}
