package cart

import (
	"github.com/shopspring/decimal"

	"github.com/fatine-labs/souqly-backend/pkg/db/models"
)

// View is the cart as returned to clients: the rows plus derived totals.
type View struct {
	Cart      models.Cart     `json:"cart"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
}

func buildView(cart *models.Cart) *View {
	view := &View{Cart: *cart, Subtotal: decimal.Zero}
	for _, item := range cart.Items {
		view.Subtotal = view.Subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		view.ItemCount += item.Quantity
	}
	return view
}
