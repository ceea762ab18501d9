package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/internal/cart"
	"github.com/fatine-labs/souqly-backend/internal/stock"
	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/config"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
	"github.com/fatine-labs/souqly-backend/pkg/metrics"
	"github.com/fatine-labs/souqly-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier receives lifecycle events after the surrounding transaction has
// committed. Implementations must not block the request path.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *models.Order)
	LowStock(ctx context.Context, product *models.Product)
}

// Service creates and manages orders. Placement is atomic: the order, its
// lines, the stock decrements, and the ledger entries commit together or not
// at all.
type Service interface {
	Place(ctx context.Context, actor auth.Actor, input PlaceInput) (*models.Order, error)
	Checkout(ctx context.Context, actor auth.Actor, input CheckoutInput) (*models.Order, error)
	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor auth.Actor, params pagination.Params, filters Filters) (*OrderList, error)
	UpdateStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
}

type service struct {
	repo     Repository
	cartRepo cart.Repository
	ledger   stock.Ledger
	tx       txRunner
	cfg      config.OrdersConfig
	notifier Notifier
	metrics  *metrics.CommerceMetrics
}

// NewService builds an orders service with the required dependencies. The
// metrics collector may be nil; it degrades to a no-op.
func NewService(repo Repository, cartRepo cart.Repository, ledger stock.Ledger, tx txRunner, cfg config.OrdersConfig, notifier Notifier, m *metrics.CommerceMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		repo:     repo,
		cartRepo: cartRepo,
		ledger:   ledger,
		tx:       tx,
		cfg:      cfg,
		notifier: notifier,
		metrics:  m,
	}, nil
}

func (s *service) Place(ctx context.Context, actor auth.Actor, input PlaceInput) (*models.Order, error) {
	lines, err := normalizeLines(input.Items)
	if err != nil {
		return nil, err
	}
	if err := validateAddresses(input.ShippingAddress, input.BillingAddress); err != nil {
		return nil, err
	}
	if input.PaymentMethod != nil && !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var (
		orderID  uuid.UUID
		lowStock []models.Product
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		id, low, perr := s.placeLines(ctx, tx, actor, lines, input.PaymentMethod, input.ShippingAddress, input.BillingAddress)
		if perr != nil {
			return perr
		}
		orderID = id
		lowStock = low
		return nil
	})
	if err != nil {
		s.recordPlacementFailure(err)
		return nil, err
	}
	return s.finishPlacement(ctx, orderID, lowStock)
}

func (s *service) Checkout(ctx context.Context, actor auth.Actor, input CheckoutInput) (*models.Order, error) {
	if err := validateAddresses(input.ShippingAddress, input.BillingAddress); err != nil {
		return nil, err
	}
	if input.PaymentMethod != nil && !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var (
		orderID  uuid.UUID
		lowStock []models.Product
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)

		userCart, err := cartRepo.FindByUser(ctx, actor.UserID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(userCart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		lines := make([]LineInput, 0, len(userCart.Items))
		for _, item := range userCart.Items {
			lines = append(lines, LineInput{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		id, low, perr := s.placeLines(ctx, tx, actor, lines, input.PaymentMethod, input.ShippingAddress, input.BillingAddress)
		if perr != nil {
			return perr
		}
		orderID = id
		lowStock = low

		// the cart empties only when the order commits
		if err := cartRepo.DeleteItemsByCart(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		s.recordPlacementFailure(err)
		return nil, err
	}
	return s.finishPlacement(ctx, orderID, lowStock)
}

// placeLines runs inside the caller's transaction and creates the order row,
// its items, and the matching stock deductions.
func (s *service) placeLines(ctx context.Context, tx *gorm.DB, actor auth.Actor, lines []LineInput, method *enums.PaymentMethod, shipping, billing string) (uuid.UUID, []models.Product, error) {
	repo := s.repo.WithTx(tx)
	orderID := uuid.New()

	number, err := newOrderNumber(s.cfg.NumberPrefix, s.cfg.NumberTokenLn)
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	var lowStock []models.Product
	for _, line := range lines {
		product, err := s.ledger.Deduct(ctx, tx, stock.Movement{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			ActorID:     actor.UserID,
			Type:        enums.StockChangeSale,
			ReferenceID: &orderID,
		})
		if err != nil {
			return uuid.Nil, nil, err
		}
		if !product.Active {
			return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		items = append(items, models.OrderItem{
			OrderID:   orderID,
			ProductID: product.ID,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		if product.LowStock() {
			lowStock = append(lowStock, *product)
		}
	}

	order := &models.Order{
		ID:              orderID,
		UserID:          actor.UserID,
		OrderNumber:     number,
		Status:          enums.OrderStatusPending,
		TotalAmount:     total,
		PaymentMethod:   method,
		ShippingAddress: shipping,
		BillingAddress:  billing,
	}
	if _, err := repo.Create(ctx, order); err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
	}
	return orderID, lowStock, nil
}

func (s *service) finishPlacement(ctx context.Context, orderID uuid.UUID, lowStock []models.Product) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}

	s.metrics.IncOrderPlaced("success")
	s.notifier.OrderPlaced(ctx, order)
	for i := range lowStock {
		s.notifier.LowStock(ctx, &lowStock[i])
	}
	return order, nil
}

func (s *service) recordPlacementFailure(err error) {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
		s.metrics.IncStockRejection()
		s.metrics.IncOrderPlaced("insufficient_stock")
		return
	}
	s.metrics.IncOrderPlaced("error")
}

func (s *service) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := s.authorizeRead(ctx, actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, params pagination.Params, filters Filters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var (
		orders []models.Order
		err    error
	)
	switch {
	case actor.Can(auth.CapViewAllOrders):
		orders, err = s.repo.ListAll(ctx, params, filters)
	case actor.IsVendor():
		orders, err = s.repo.ListBySeller(ctx, actor.UserID, params, filters)
	default:
		orders, err = s.repo.ListByUser(ctx, actor.UserID, params, filters)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	normalized := pagination.NormalizeLimit(params.Limit)
	page := &OrderList{Orders: orders}
	if len(orders) > normalized {
		page.Orders = orders[:normalized]
		last := page.Orders[len(page.Orders)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !actor.Can(auth.CapUpdateOrders) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to update order status")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status == status {
		return order, nil
	}

	if err := s.repo.UpdateStatus(ctx, orderID, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	order.Status = status
	return order, nil
}

func (s *service) authorizeRead(ctx context.Context, actor auth.Actor, order *models.Order) error {
	if actor.Can(auth.CapViewAllOrders) || order.UserID == actor.UserID {
		return nil
	}
	if actor.IsVendor() {
		ok, err := s.repo.SellerHasLines(ctx, order.ID, actor.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check seller lines")
		}
		if ok {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
}

func normalizeLines(items []LineInput) ([]LineInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	merged := make(map[uuid.UUID]int, len(items))
	ordered := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if _, seen := merged[item.ProductID]; !seen {
			ordered = append(ordered, item.ProductID)
		}
		merged[item.ProductID] += item.Quantity
	}

	lines := make([]LineInput, 0, len(ordered))
	for _, id := range ordered {
		lines = append(lines, LineInput{ProductID: id, Quantity: merged[id]})
	}
	return lines, nil
}

func validateAddresses(shipping, billing string) error {
	if strings.TrimSpace(shipping) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if strings.TrimSpace(billing) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "billing address required")
	}
	return nil
}
