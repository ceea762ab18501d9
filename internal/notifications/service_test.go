package notifications

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
	"github.com/fatine-labs/souqly-backend/pkg/logger"
	"github.com/fatine-labs/souqly-backend/pkg/pagination"
)

func errCode(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return ""
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedNotification(t *testing.T, conn *gorm.DB, userID uuid.UUID) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		UserID:  userID,
		Type:    enums.NotificationOrderConfirmation,
		Title:   "Order confirmed",
		Message: "Your order has been placed.",
	}
	if err := conn.Create(notification).Error; err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return notification
}

func TestListMineScopesToActor(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	me := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}

	mine := seedNotification(t, conn, me.UserID)
	seedNotification(t, conn, uuid.New())

	page, err := svc.ListMine(ctx, me, ListFilters{}, pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Notifications) != 1 || page.Notifications[0].ID != mine.ID {
		t.Fatalf("expected only own notifications, got %+v", page.Notifications)
	}
}

func TestMarkReadOwnershipAndIdempotence(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	me := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	notification := seedNotification(t, conn, me.UserID)

	stranger := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	if _, err := svc.MarkRead(ctx, stranger, notification.ID); errCode(err) != pkgerrors.CodeNotFound {
		t.Fatalf("foreign notification must read as not found, got %v", err)
	}

	read, err := svc.MarkRead(ctx, me, notification.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if read.ReadAt == nil {
		t.Fatal("read_at must be set")
	}
	first := *read.ReadAt

	again, err := svc.MarkRead(ctx, me, notification.ID)
	if err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	if again.ReadAt == nil || !again.ReadAt.Equal(first) {
		t.Fatal("marking twice must keep the original read time")
	}
}

func TestMarkAllReadAndUnreadCount(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	me := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}

	seedNotification(t, conn, me.UserID)
	seedNotification(t, conn, me.UserID)
	seedNotification(t, conn, uuid.New())

	count, err := svc.UnreadCount(ctx, me)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unread, got %d", count)
	}

	updated, err := svc.MarkAllRead(ctx, me)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 updated, got %d", updated)
	}

	count, err = svc.UnreadCount(ctx, me)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unread, got %d", count)
	}

	page, err := svc.ListMine(ctx, me, ListFilters{UnreadOnly: true}, pagination.Params{})
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(page.Notifications) != 0 {
		t.Fatalf("expected empty unread page, got %d", len(page.Notifications))
	}
}

func TestDispatcherWritesTypedRows(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	dispatcher, err := NewDispatcher(NewRepository(conn), log)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	ctx := context.Background()

	buyerID := uuid.New()
	sellerID := uuid.New()
	order := &models.Order{
		UserID:      buyerID,
		OrderNumber: "ORD-DISPATCH01",
		TotalAmount: decimal.NewFromFloat(19.99),
	}
	product := &models.Product{SellerID: sellerID, Name: "Ceramic Mug", Stock: 2}
	payment := &models.Payment{
		PaymentNumber: "PAY-DISPATCH01",
		Amount:        decimal.NewFromFloat(19.99),
		Currency:      enums.CurrencyEUR,
	}
	refund := decimal.NewFromFloat(9.99)
	request := &models.ReturnRequest{
		UserID:       buyerID,
		Status:       enums.ReturnStatusRefunded,
		RefundAmount: &refund,
	}

	dispatcher.OrderPlaced(ctx, order)
	dispatcher.LowStock(ctx, product)
	dispatcher.PaymentCaptured(ctx, order, payment)
	dispatcher.ReturnDecided(ctx, request)

	cases := []struct {
		userID uuid.UUID
		kind   enums.NotificationType
	}{
		{buyerID, enums.NotificationOrderConfirmation},
		{sellerID, enums.NotificationLowStock},
		{buyerID, enums.NotificationPaymentReceipt},
		{buyerID, enums.NotificationReturnStatus},
	}
	for _, tc := range cases {
		var count int64
		conn.Model(&models.Notification{}).
			Where("user_id = ? AND type = ?", tc.userID, tc.kind).
			Count(&count)
		if count != 1 {
			t.Fatalf("expected one %s notification for %s, got %d", tc.kind, tc.userID, count)
		}
	}
}
