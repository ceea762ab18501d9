package orders

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/internal/cart"
	"github.com/fatine-labs/souqly-backend/internal/stock"
	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/config"
	"github.com/fatine-labs/souqly-backend/pkg/db"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
	"github.com/fatine-labs/souqly-backend/pkg/pagination"
)

type stubNotifier struct {
	placed   []uuid.UUID
	lowStock []uuid.UUID
}

func (s *stubNotifier) OrderPlaced(ctx context.Context, order *models.Order) {
	s.placed = append(s.placed, order.ID)
}

func (s *stubNotifier) LowStock(ctx context.Context, product *models.Product) {
	s.lowStock = append(s.lowStock, product.ID)
}

func errCode(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return ""
}

func newTestService(t *testing.T) (Service, *gorm.DB, *stubNotifier) {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{}, &models.StockHistory{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := db.FromConn(conn)
	ledger, err := stock.NewLedger(stock.NewRepository(conn), client)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	notifier := &stubNotifier{}
	cfg := config.OrdersConfig{NumberPrefix: "ORD", Currency: "EUR", NumberTokenLn: 10}
	svc, err := NewService(NewRepository(conn), cart.NewRepository(conn), ledger, client, cfg, notifier, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn, notifier
}

func seedProduct(t *testing.T, conn *gorm.DB, price float64, stockQty int) *models.Product {
	t.Helper()
	product := &models.Product{
		SellerID:       uuid.New(),
		Name:           "Test Product",
		Slug:           "order-product-" + uuid.NewString(),
		Price:          decimal.NewFromFloat(price),
		Stock:          stockQty,
		StockThreshold: 2,
		Active:         true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func clientActor() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
}

func TestPlaceCreatesOrderAtomically(t *testing.T) {
	t.Parallel()

	svc, conn, notifier := newTestService(t)
	ctx := context.Background()
	actor := clientActor()
	productA := seedProduct(t, conn, 10.00, 10)
	productB := seedProduct(t, conn, 4.50, 10)

	order, err := svc.Place(ctx, actor, PlaceInput{
		Items: []LineInput{
			{ProductID: productA.ID, Quantity: 2},
			{ProductID: productB.ID, Quantity: 3},
		},
		ShippingAddress: "1 Rue des Fleurs, Casablanca",
		BillingAddress:  "1 Rue des Fleurs, Casablanca",
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if !order.TotalAmount.Equal(decimal.NewFromFloat(33.50)) {
		t.Fatalf("expected total 33.50, got %s", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(order.Items))
	}

	var a models.Product
	if err := conn.First(&a, "id = ?", productA.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if a.Stock != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", a.Stock)
	}

	var entries []models.StockHistory
	if err := conn.Find(&entries, "reference_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Type != enums.StockChangeSale {
			t.Fatalf("expected sale entries, got %s", entry.Type)
		}
	}

	if len(notifier.placed) != 1 || notifier.placed[0] != order.ID {
		t.Fatalf("expected order placed notification, got %+v", notifier.placed)
	}
}

func TestPlaceInsufficientStockRollsBackWholeOrder(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	productA := seedProduct(t, conn, 10, 10)
	productB := seedProduct(t, conn, 10, 1)

	_, err := svc.Place(ctx, clientActor(), PlaceInput{
		Items: []LineInput{
			{ProductID: productA.ID, Quantity: 2},
			{ProductID: productB.ID, Quantity: 5},
		},
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	})
	if errCode(err) != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var a models.Product
	if err := conn.First(&a, "id = ?", productA.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if a.Stock != 10 {
		t.Fatalf("first line must roll back too, stock %d", a.Stock)
	}
	var orderCount, itemCount, ledgerCount int64
	conn.Model(&models.Order{}).Count(&orderCount)
	conn.Model(&models.OrderItem{}).Count(&itemCount)
	conn.Model(&models.StockHistory{}).Count(&ledgerCount)
	if orderCount != 0 || itemCount != 0 || ledgerCount != 0 {
		t.Fatalf("expected clean rollback, got orders=%d items=%d ledger=%d", orderCount, itemCount, ledgerCount)
	}
}

func TestPlaceMergesDuplicateLines(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, conn, 5, 10)

	order, err := svc.Place(ctx, clientActor(), PlaceInput{
		Items: []LineInput{
			{ProductID: product.ID, Quantity: 2},
			{ProductID: product.ID, Quantity: 3},
		},
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 5 {
		t.Fatalf("expected single merged line of 5, got %+v", order.Items)
	}
}

func TestPlaceCapturesPriceAtPurchase(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	actor := clientActor()
	product := seedProduct(t, conn, 20, 10)

	order, err := svc.Place(ctx, actor, PlaceInput{
		Items:           []LineInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if err := conn.Model(&models.Product{}).Where("id = ?", product.ID).
		UpdateColumn("price", decimal.NewFromInt(99)).Error; err != nil {
		t.Fatalf("reprice: %v", err)
	}

	reloaded, err := svc.Get(ctx, actor, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reloaded.Items[0].UnitPrice.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unit price must stay at purchase value, got %s", reloaded.Items[0].UnitPrice)
	}
	if !reloaded.TotalAmount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("total must stay at purchase value, got %s", reloaded.TotalAmount)
	}
}

func TestPlaceNotifiesLowStock(t *testing.T) {
	t.Parallel()

	svc, conn, notifier := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, conn, 5, 4) // threshold 2, sale of 3 leaves 1

	if _, err := svc.Place(ctx, clientActor(), PlaceInput{
		Items:           []LineInput{{ProductID: product.ID, Quantity: 3}},
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	}); err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(notifier.lowStock) != 1 || notifier.lowStock[0] != product.ID {
		t.Fatalf("expected low stock notification, got %+v", notifier.lowStock)
	}
}

func TestCheckoutPlacesOrderAndClearsCart(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	actor := clientActor()
	product := seedProduct(t, conn, 12, 10)

	cartSvc, err := cart.NewService(cart.NewRepository(conn), db.FromConn(conn))
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	if _, err := cartSvc.AddItem(ctx, actor, product.ID, 2); err != nil {
		t.Fatalf("add to cart: %v", err)
	}

	method := enums.PaymentMethodCreditCard
	order, err := svc.Checkout(ctx, actor, CheckoutInput{
		PaymentMethod:   &method,
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(24)) {
		t.Fatalf("expected total 24, got %s", order.TotalAmount)
	}

	count, err := cartSvc.Count(ctx, actor)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("cart must be empty after checkout, got %d", count)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	_, err := svc.Checkout(context.Background(), clientActor(), CheckoutInput{
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	})
	if errCode(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVisibilityByRole(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	seller := uuid.New()
	buyerA := clientActor()
	buyerB := clientActor()
	sellerProduct := seedProduct(t, conn, 10, 20)
	otherProduct := seedProduct(t, conn, 10, 20)

	orderA, err := svc.Place(ctx, buyerA, PlaceInput{
		Items:           []LineInput{{ProductID: sellerProduct.ID, Quantity: 1}},
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	})
	if err != nil {
		t.Fatalf("place a: %v", err)
	}
	if _, err := svc.Place(ctx, buyerB, PlaceInput{
		Items:           []LineInput{{ProductID: otherProduct.ID, Quantity: 1}},
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	}); err != nil {
		t.Fatalf("place b: %v", err)
	}

	// give the seller ownership of the first product
	if err := conn.Model(&models.Product{}).Where("id = ?", sellerProduct.ID).
		UpdateColumn("seller_id", seller).Error; err != nil {
		t.Fatalf("reassign product: %v", err)
	}

	pageA, err := svc.List(ctx, buyerA, pagination.Params{}, Filters{})
	if err != nil {
		t.Fatalf("list buyer a: %v", err)
	}
	if len(pageA.Orders) != 1 || pageA.Orders[0].ID != orderA.ID {
		t.Fatalf("buyer must only see own orders, got %d", len(pageA.Orders))
	}

	vendor := auth.Actor{UserID: seller, Role: enums.RoleVendor}
	pageV, err := svc.List(ctx, vendor, pagination.Params{}, Filters{})
	if err != nil {
		t.Fatalf("list vendor: %v", err)
	}
	if len(pageV.Orders) != 1 || pageV.Orders[0].ID != orderA.ID {
		t.Fatalf("vendor must see orders containing own products, got %d", len(pageV.Orders))
	}

	admin := auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	pageAdm, err := svc.List(ctx, admin, pagination.Params{}, Filters{})
	if err != nil {
		t.Fatalf("list admin: %v", err)
	}
	if len(pageAdm.Orders) != 2 {
		t.Fatalf("admin must see all orders, got %d", len(pageAdm.Orders))
	}

	if _, err := svc.Get(ctx, buyerB, orderA.ID); errCode(err) != pkgerrors.CodeForbidden {
		t.Fatalf("stranger must not read order, got %v", err)
	}
	if _, err := svc.Get(ctx, vendor, orderA.ID); err != nil {
		t.Fatalf("vendor with lines must read order: %v", err)
	}
}

func TestUpdateStatusAdminOnly(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	buyer := clientActor()
	product := seedProduct(t, conn, 10, 10)

	order, err := svc.Place(ctx, buyer, PlaceInput{
		Items:           []LineInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, buyer, order.ID, enums.OrderStatusCompleted); errCode(err) != pkgerrors.CodeForbidden {
		t.Fatalf("client must not update status, got %v", err)
	}
	vendor := auth.Actor{UserID: uuid.New(), Role: enums.RoleVendor}
	if _, err := svc.UpdateStatus(ctx, vendor, order.ID, enums.OrderStatusCompleted); errCode(err) != pkgerrors.CodeForbidden {
		t.Fatalf("vendor must not update status, got %v", err)
	}

	admin := auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	updated, err := svc.UpdateStatus(ctx, admin, order.ID, enums.OrderStatusProcessing)
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}

	if _, err := svc.UpdateStatus(ctx, admin, order.ID, "bogus"); errCode(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
