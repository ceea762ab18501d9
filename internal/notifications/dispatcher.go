package notifications

import (
	"context"
	"fmt"

	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	"github.com/fatine-labs/souqly-backend/pkg/logger"
)

// Dispatcher turns commerce events into in-app notifications. Writes happen
// after the originating transaction has committed, so failures here only
// lose the notification, never the order or payment.
type Dispatcher struct {
	repo Repository
	log  *logger.Logger
}

// NewDispatcher builds an event dispatcher with the required dependencies.
func NewDispatcher(repo Repository, log *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{repo: repo, log: log}, nil
}

// OrderPlaced confirms a new order to its buyer.
func (d *Dispatcher) OrderPlaced(ctx context.Context, order *models.Order) {
	d.create(ctx, &models.Notification{
		UserID:  order.UserID,
		Type:    enums.NotificationOrderConfirmation,
		Title:   "Order confirmed",
		Message: fmt.Sprintf("Your order %s has been placed for %s.", order.OrderNumber, order.TotalAmount.StringFixed(2)),
	})
}

// LowStock warns the product's seller that stock fell to its threshold.
func (d *Dispatcher) LowStock(ctx context.Context, product *models.Product) {
	d.create(ctx, &models.Notification{
		UserID:  product.SellerID,
		Type:    enums.NotificationLowStock,
		Title:   "Low stock",
		Message: fmt.Sprintf("%s is down to %d units.", product.Name, product.Stock),
	})
}

// PaymentCaptured sends the buyer a receipt.
func (d *Dispatcher) PaymentCaptured(ctx context.Context, order *models.Order, payment *models.Payment) {
	d.create(ctx, &models.Notification{
		UserID:  order.UserID,
		Type:    enums.NotificationPaymentReceipt,
		Title:   "Payment received",
		Message: fmt.Sprintf("Payment %s of %s %s for order %s was captured.", payment.PaymentNumber, payment.Amount.StringFixed(2), payment.Currency, order.OrderNumber),
	})
}

// ReturnDecided informs the requester of a status change on their return.
func (d *Dispatcher) ReturnDecided(ctx context.Context, request *models.ReturnRequest) {
	message := fmt.Sprintf("Your return request is now %s.", request.Status)
	if request.Status == enums.ReturnStatusRefunded && request.RefundAmount != nil {
		message = fmt.Sprintf("Your return was refunded for %s.", request.RefundAmount.StringFixed(2))
	}
	d.create(ctx, &models.Notification{
		UserID:  request.UserID,
		Type:    enums.NotificationReturnStatus,
		Title:   "Return update",
		Message: message,
	})
}

func (d *Dispatcher) create(ctx context.Context, notification *models.Notification) {
	if _, err := d.repo.Create(ctx, notification); err != nil {
		ctx = d.log.WithField(ctx, "notification_type", notification.Type.String())
		d.log.Error(ctx, "failed to store notification", err)
	}
}
