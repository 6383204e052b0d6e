package pdf

import (
	"context"
	"errors"
)

// ErrNotCompleted is returned when a receipt is requested for an unpaid order.
var ErrNotCompleted = errors.New("order is not completed")

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}
