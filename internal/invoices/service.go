package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
)

// Line is one billed order line on the invoice snapshot.
type Line struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Invoice is a JSON snapshot of an order and its payment. There is no PDF
// rendering; clients format the document themselves.
type Invoice struct {
	InvoiceNumber   string              `json:"invoice_number"`
	OrderNumber     string              `json:"order_number"`
	OrderStatus     enums.OrderStatus   `json:"order_status"`
	IssuedAt        time.Time           `json:"issued_at"`
	BilledTo        uuid.UUID           `json:"billed_to"`
	ShippingAddress string              `json:"shipping_address"`
	BillingAddress  string              `json:"billing_address"`
	Lines           []Line              `json:"lines"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Currency        enums.Currency      `json:"currency"`
	PaymentNumber   string              `json:"payment_number,omitempty"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method,omitempty"`
}

// Service renders invoice previews for orders.
type Service interface {
	Preview(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Invoice, error)
}

type service struct {
	db *gorm.DB
}

// NewService builds an invoices service bound to the provided DB.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection required")
	}
	return &service{db: db}, nil
}

func (s *service) Preview(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Invoice, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Payment").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}

	invoice := &Invoice{
		InvoiceNumber:   "INV-" + order.OrderNumber,
		OrderNumber:     order.OrderNumber,
		OrderStatus:     order.Status,
		IssuedAt:        time.Now().UTC(),
		BilledTo:        order.UserID,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		TotalAmount:     order.TotalAmount,
		Currency:        enums.CurrencyEUR,
	}
	for _, item := range order.Items {
		line := Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
		}
		invoice.Lines = append(invoice.Lines, line)
	}
	if order.Payment != nil {
		invoice.Currency = order.Payment.Currency
		invoice.PaymentNumber = order.Payment.PaymentNumber
		invoice.PaymentStatus = order.Payment.Status
		invoice.PaymentMethod = order.Payment.Method
	}
	return invoice, nil
}
