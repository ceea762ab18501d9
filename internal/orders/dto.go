package orders

import (
	"github.com/google/uuid"

	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
)

// LineInput is one requested order line.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// PlaceInput carries everything needed to create an order directly.
type PlaceInput struct {
	Items           []LineInput
	PaymentMethod   *enums.PaymentMethod
	ShippingAddress string
	BillingAddress  string
}

// CheckoutInput places an order from the actor's cart.
type CheckoutInput struct {
	PaymentMethod   *enums.PaymentMethod
	ShippingAddress string
	BillingAddress  string
}

// Filters narrows order listings.
type Filters struct {
	Status *enums.OrderStatus
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}
