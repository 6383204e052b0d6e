package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"github.com/shopspring/decimal"
)

type ReceiptData struct {
	SellerName  string
	SellerEmail string

	OrderID       string
	Reference     string
	DatePaid      string
	PaymentMethod string

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	Description string
	Amount      string
}

// ReceiptFromOrder builds the receipt for a completed order.
func ReceiptFromOrder(order orderdomain.Order, sellerName, sellerEmail string) (ReceiptData, error) {
	if order.Status != orderdomain.StatusCompleted {
		return ReceiptData{}, fmt.Errorf("%w: %s is %s", ErrNotCompleted, order.ID, order.Status)
	}
	return ReceiptData{
		SellerName:    sellerName,
		SellerEmail:   sellerEmail,
		OrderID:       order.ID.String(),
		Reference:     order.Reference(),
		DatePaid:      order.UpdatedAt.UTC().Format("2 January 2006"),
		PaymentMethod: methodLabel(order.PaymentMethod),
		CustomerName:  order.CustomerName(),
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
		Description:   order.ProductName + " (monthly subscription)",
		Amount:        FormatAmount(order.AmountCents, order.Currency),
	}, nil
}

func methodLabel(method string) string {
	switch method {
	case "card":
		return "Card"
	case "crypto":
		return "Crypto"
	default:
		return method
	}
}

// FormatAmount renders cents as "$9.00 USD".
func FormatAmount(cents int64, currency string) string {
	value := decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == "USD" {
		return "$" + value + " USD"
	}
	return value + " " + currency
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(6, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(6, receipt.SellerName, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Order: "+receipt.OrderID, props.Text{Top: 0}),
			text.New("Date paid: "+receipt.DatePaid, props.Text{Top: 4}),
			text.New("Payment method: "+receipt.PaymentMethod, props.Text{Top: 8}),
			text.New("Reference: "+receipt.Reference, props.Text{Top: 12, Size: 8}),
		),
		col.New(6).Add(
			text.New(receipt.SellerEmail, props.Text{Align: align.Right}),
		),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New("Billed to", props.Text{Style: fontstyle.Bold}),
			text.New(receipt.CustomerName, props.Text{Top: 5}),
			text.New(receipt.CustomerEmail, props.Text{Top: 9}),
			text.New(receipt.CustomerPhone, props.Text{Top: 13}),
		),
		col.New(6),
	)

	m.AddRow(15,
		text.NewCol(12, receipt.Amount+" paid on "+receipt.DatePaid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(12,
		text.NewCol(8, receipt.Description, props.Text{Size: 9}),
		text.NewCol(2, "1", props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, receipt.Amount, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, receipt.Amount, props.Text{Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate receipt: %w", err)
	}
	return doc.GetBytes(), nil
}
