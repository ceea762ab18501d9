package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/internal/cart"
	"github.com/fatine-labs/souqly-backend/internal/invoices"
	"github.com/fatine-labs/souqly-backend/internal/notifications"
	"github.com/fatine-labs/souqly-backend/internal/orders"
	"github.com/fatine-labs/souqly-backend/internal/payments"
	"github.com/fatine-labs/souqly-backend/internal/products"
	"github.com/fatine-labs/souqly-backend/internal/returns"
	"github.com/fatine-labs/souqly-backend/internal/stock"
	pkgauth "github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/config"
	"github.com/fatine-labs/souqly-backend/pkg/db"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	"github.com/fatine-labs/souqly-backend/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Env: "test", Port: "0"},
		JWT:    config.JWTConfig{Secret: "router-test-secret", Issuer: "souqly", ExpirationMinutes: 60},
		Orders: config.OrdersConfig{NumberPrefix: "ORD", Currency: "EUR", NumberTokenLn: 10},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()

	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.User{}, &models.Category{}, &models.Product{}, &models.StockHistory{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
		&models.ReturnRequest{}, &models.ReturnItem{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	client := db.FromConn(conn)

	ledger, err := stock.NewLedger(stock.NewRepository(conn), client)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	dispatcher, err := notifications.NewDispatcher(notifications.NewRepository(conn), logg)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	productSvc, err := products.NewService(products.NewRepository(conn), ledger, client)
	if err != nil {
		t.Fatalf("new products: %v", err)
	}
	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, client)
	if err != nil {
		t.Fatalf("new cart: %v", err)
	}
	cfg := testConfig()
	orderSvc, err := orders.NewService(orders.NewRepository(conn), cartRepo, ledger, client, cfg.Orders, dispatcher, nil)
	if err != nil {
		t.Fatalf("new orders: %v", err)
	}
	paymentSvc, err := payments.NewService(payments.NewRepository(conn), client, cfg.Orders, dispatcher, nil)
	if err != nil {
		t.Fatalf("new payments: %v", err)
	}
	returnSvc, err := returns.NewService(returns.NewRepository(conn), ledger, client, dispatcher, nil)
	if err != nil {
		t.Fatalf("new returns: %v", err)
	}
	invoiceSvc, err := invoices.NewService(conn)
	if err != nil {
		t.Fatalf("new invoices: %v", err)
	}
	notificationSvc, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		t.Fatalf("new notifications: %v", err)
	}

	router := NewRouter(Deps{
		Config:        cfg,
		Logger:        logg,
		Products:      productSvc,
		Cart:          cartSvc,
		Orders:        orderSvc,
		Payments:      paymentSvc,
		Returns:       returnSvc,
		Invoices:      invoiceSvc,
		Notifications: notificationSvc,
		Stock:         ledger,
	})
	return router, conn
}

func mintToken(t *testing.T, role enums.Role) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, userID
}

func TestHealthLiveIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if env := resp.Header().Get("X-Souqly-Env"); env != "test" {
		t.Fatalf("expected env header, got %q", env)
	}
}

func TestCatalogueIsPublicAndCartIsNot(t *testing.T) {
	router, conn := newTestRouter(t)

	product := &models.Product{
		SellerID: uuid.New(),
		Name:     "Visible",
		Slug:     "visible-" + uuid.NewString(),
		Price:    decimal.NewFromFloat(9.99),
		Stock:    5,
		Active:   true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("catalogue should be public, got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("cart requires auth, got %d", resp.Code)
	}
}

func TestAuthenticatedCartRoundTrip(t *testing.T) {
	router, conn := newTestRouter(t)
	token, _ := mintToken(t, enums.RoleClient)

	product := &models.Product{
		SellerID: uuid.New(),
		Name:     "Cartable",
		Slug:     "cartable-" + uuid.NewString(),
		Price:    decimal.NewFromFloat(4.50),
		Stock:    10,
		Active:   true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	body := `{"product_id":"` + product.ID.String() + `","quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/add", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("add item: got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart/count", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("cart count: got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestVendorRoutesRejectClients(t *testing.T) {
	router, _ := newTestRouter(t)
	token, _ := mintToken(t, enums.RoleClient)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("client on vendor route: expected 403 got %d", resp.Code)
	}

	vendorToken, _ := mintToken(t, enums.RoleVendor)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/vendor/products", nil)
	req.Header.Set("Authorization", "Bearer "+vendorToken)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("vendor listing: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminRoutesRejectVendors(t *testing.T) {
	router, _ := newTestRouter(t)
	token, _ := mintToken(t, enums.RoleVendor)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("vendor on admin route: expected 403 got %d", resp.Code)
	}
}
