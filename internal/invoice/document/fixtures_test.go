package document

import (
	"fmt"

	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
)

func f(v float64) *float64 { return &v }

func testAddress() *invoicedomain.Address {
	return &invoicedomain.Address{
		Line1:      "12 Harbor Road",
		City:       "Portland",
		State:      "OR",
		PostalCode: "97201",
		Country:    "USA",
	}
}

func testDocument(items int) invoicedomain.Document {
	doc := invoicedomain.Document{
		Clinic:        &invoicedomain.Party{Name: "Riverside Animal Clinic", Address: testAddress()},
		Client:        &invoicedomain.Party{Name: "Dana Brooks", Address: testAddress()},
		InvoiceNumber: "INV-1001",
		Date:          "2024-03-05",
	}
	for i := 0; i < items; i++ {
		doc.Items = append(doc.Items, invoicedomain.DocumentItem{
			Description: fmt.Sprintf("Service %d", i+1),
			Quantity:    f(1),
			UnitPrice:   f(10),
			Currency:    "USD",
		})
	}
	return doc
}
