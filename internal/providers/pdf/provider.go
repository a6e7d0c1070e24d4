package pdf

import "context"

// Provider turns a fully planned invoice into PDF bytes.
type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
}
