package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fatine-labs/souqly-backend/api/controllers"
	"github.com/fatine-labs/souqly-backend/api/middleware"
	"github.com/fatine-labs/souqly-backend/internal/cart"
	"github.com/fatine-labs/souqly-backend/internal/invoices"
	"github.com/fatine-labs/souqly-backend/internal/notifications"
	"github.com/fatine-labs/souqly-backend/internal/orders"
	"github.com/fatine-labs/souqly-backend/internal/payments"
	"github.com/fatine-labs/souqly-backend/internal/products"
	"github.com/fatine-labs/souqly-backend/internal/returns"
	"github.com/fatine-labs/souqly-backend/internal/stock"
	"github.com/fatine-labs/souqly-backend/pkg/config"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	"github.com/fatine-labs/souqly-backend/pkg/logger"
	"github.com/fatine-labs/souqly-backend/pkg/metrics"
	pkgredis "github.com/fatine-labs/souqly-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs wired in.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.CommerceMetrics

	DBPinger    controllers.Pinger
	RedisPinger controllers.Pinger

	IdempotencyStore pkgredis.IdempotencyStore

	MetricsHandler http.Handler

	Products      products.Service
	Cart          cart.Service
	Orders        orders.Service
	Payments      payments.Service
	Returns       returns.Service
	Invoices      invoices.Service
	Notifications notifications.Service
	Stock         stock.Ledger
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(),
		middleware.Logging(logg, d.Metrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": d.DBPinger,
			"redis":    d.RedisPinger,
		}))
	})

	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	// Catalogue browsing needs no session.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(d.Products, logg))
		r.Get("/{productId}", controllers.GetProduct(d.Products, logg))
	})
	r.Get("/api/v1/categories", controllers.ListCategories(d.Products, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if cfg.FeatureFlags.Idempotency && d.IdempotencyStore != nil {
			r.Use(middleware.Idempotency(d.IdempotencyStore, logg))
		}

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(d.Cart, logg))
			r.Get("/count", controllers.CartCount(d.Cart, logg))
			r.Post("/add", controllers.CartAddItem(d.Cart, logg))
			r.Put("/update/{itemId}", controllers.CartUpdateItem(d.Cart, logg))
			r.Delete("/remove/{itemId}", controllers.CartRemoveItem(d.Cart, logg))
			r.Delete("/clear", controllers.CartClear(d.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.PlaceOrder(d.Orders, logg))
			r.Post("/checkout", controllers.CheckoutOrder(d.Orders, logg))
			r.Get("/", controllers.ListOrders(d.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(d.Orders, logg))
			r.Post("/{orderId}/payment", controllers.ProcessPayment(d.Payments, logg))
			r.Get("/{orderId}/payment/status", controllers.PaymentStatus(d.Payments, logg))
			r.Get("/{orderId}/invoice", controllers.OrderInvoice(d.Invoices, logg))
			r.Post("/{orderId}/return", controllers.OpenReturn(d.Returns, logg))
		})

		r.Route("/returns", func(r chi.Router) {
			r.Get("/", controllers.ListReturns(d.Returns, logg))
			r.Get("/{returnId}", controllers.GetReturn(d.Returns, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(d.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleVendor, enums.RoleAdmin))
			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.VendorListProducts(d.Products, logg))
				r.Post("/", controllers.VendorCreateProduct(d.Products, logg))
				r.Get("/low-stock", controllers.VendorLowStock(d.Stock, logg))
				r.Put("/{productId}", controllers.VendorUpdateProduct(d.Products, logg))
				r.Delete("/{productId}", controllers.VendorDeactivateProduct(d.Products, logg))
				r.Put("/{productId}/stock", controllers.VendorAdjustStock(d.Stock, logg))
				r.Get("/{productId}/stock-history", controllers.VendorStockHistory(d.Stock, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Get("/orders", controllers.ListOrders(d.Orders, logg))
			r.Put("/orders/{orderId}/status", controllers.AdminUpdateOrderStatus(d.Orders, logg))
			r.Get("/returns", controllers.ListReturns(d.Returns, logg))
			r.Put("/returns/{returnId}/status", controllers.AdminDecideReturn(d.Returns, logg))
		})
	})

	return r
}
