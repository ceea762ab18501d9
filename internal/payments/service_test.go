package payments

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/config"
	"github.com/fatine-labs/souqly-backend/pkg/db"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
)

type stubNotifier struct {
	captured []uuid.UUID
}

func (s *stubNotifier) PaymentCaptured(ctx context.Context, order *models.Order, payment *models.Payment) {
	s.captured = append(s.captured, payment.ID)
}

func errCode(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return ""
}

func newTestService(t *testing.T) (Service, *gorm.DB, *stubNotifier) {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	notifier := &stubNotifier{}
	cfg := config.OrdersConfig{NumberPrefix: "ORD", Currency: "EUR", NumberTokenLn: 10}
	svc, err := NewService(NewRepository(conn), db.FromConn(conn), cfg, notifier, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn, notifier
}

func seedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, total float64) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:          userID,
		OrderNumber:     "ORD-" + uuid.NewString()[:8],
		Status:          enums.OrderStatusPending,
		TotalAmount:     decimal.NewFromFloat(total),
		ShippingAddress: "addr",
		BillingAddress:  "addr",
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestProcessCapturesPayment(t *testing.T) {
	t.Parallel()

	svc, conn, notifier := newTestService(t)
	ctx := context.Background()
	buyer := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	order := seedOrder(t, conn, buyer.UserID, 42.50)

	payment, err := svc.Process(ctx, buyer, order.ID, ProcessInput{
		Method:  enums.PaymentMethodCreditCard,
		Details: map[string]any{"last4": "4242"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", payment.Status)
	}
	if !strings.HasPrefix(payment.PaymentNumber, "PAY-") {
		t.Fatalf("unexpected payment number %q", payment.PaymentNumber)
	}
	if !payment.Amount.Equal(order.TotalAmount) {
		t.Fatalf("amount must match order total, got %s", payment.Amount)
	}

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusProcessing {
		t.Fatalf("order must move to processing, got %s", reloaded.Status)
	}
	if len(notifier.captured) != 1 {
		t.Fatalf("expected capture notification, got %d", len(notifier.captured))
	}
}

func TestProcessRejectsDoublePayment(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	buyer := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	order := seedOrder(t, conn, buyer.UserID, 10)

	if _, err := svc.Process(ctx, buyer, order.ID, ProcessInput{Method: enums.PaymentMethodPaypal}); err != nil {
		t.Fatalf("first process: %v", err)
	}
	_, err := svc.Process(ctx, buyer, order.ID, ProcessInput{Method: enums.PaymentMethodPaypal})
	if errCode(err) != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	var count int64
	conn.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected single payment row, got %d", count)
	}
}

func TestProcessReusesPendingRow(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	buyer := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	order := seedOrder(t, conn, buyer.UserID, 15)

	pending := &models.Payment{
		OrderID:       order.ID,
		PaymentNumber: "PAY-PENDING00001",
		Amount:        decimal.NewFromInt(15),
		Currency:      enums.CurrencyEUR,
		Status:        enums.PaymentStatusPending,
		Method:        enums.PaymentMethodCreditCard,
	}
	if err := conn.Create(pending).Error; err != nil {
		t.Fatalf("seed pending payment: %v", err)
	}

	payment, err := svc.Process(ctx, buyer, order.ID, ProcessInput{Method: enums.PaymentMethodPaypal})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if payment.ID != pending.ID {
		t.Fatal("pending payment row must be reused")
	}
	if payment.Method != enums.PaymentMethodPaypal || payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("unexpected payment state: %+v", payment)
	}

	var count int64
	conn.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected single payment row, got %d", count)
	}
}

func TestProcessOwnershipAndValidation(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	buyer := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	order := seedOrder(t, conn, buyer.UserID, 10)

	stranger := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	if _, err := svc.Process(ctx, stranger, order.ID, ProcessInput{Method: enums.PaymentMethodPaypal}); errCode(err) != pkgerrors.CodeForbidden {
		t.Fatalf("stranger must not pay, got %v", err)
	}

	if _, err := svc.Process(ctx, buyer, order.ID, ProcessInput{Method: "cash"}); errCode(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad method, got %v", err)
	}

	if _, err := svc.Process(ctx, buyer, uuid.New(), ProcessInput{Method: enums.PaymentMethodPaypal}); errCode(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDetailsVisibility(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	buyer := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	order := seedOrder(t, conn, buyer.UserID, 10)

	if _, err := svc.Details(ctx, buyer, order.ID); errCode(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found before payment, got %v", err)
	}

	if _, err := svc.Process(ctx, buyer, order.ID, ProcessInput{Method: enums.PaymentMethodPaypal}); err != nil {
		t.Fatalf("process: %v", err)
	}

	if _, err := svc.Details(ctx, buyer, order.ID); err != nil {
		t.Fatalf("owner details: %v", err)
	}
	admin := auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	if _, err := svc.Details(ctx, admin, order.ID); err != nil {
		t.Fatalf("admin details: %v", err)
	}
	stranger := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	if _, err := svc.Details(ctx, stranger, order.ID); errCode(err) != pkgerrors.CodeForbidden {
		t.Fatalf("stranger must not read payment, got %v", err)
	}
}
