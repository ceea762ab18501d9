package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fatine-labs/souqly-backend/api/middleware"
	"github.com/fatine-labs/souqly-backend/internal/notifications"
	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	"github.com/fatine-labs/souqly-backend/pkg/enums"
	"github.com/fatine-labs/souqly-backend/pkg/logger"
	"github.com/fatine-labs/souqly-backend/pkg/pagination"
)

type fakeNotificationsService struct {
	listFn        func(ctx context.Context, actor auth.Actor, filters notifications.ListFilters, params pagination.Params) (*notifications.NotificationList, error)
	markReadFn    func(ctx context.Context, actor auth.Actor, notificationID uuid.UUID) (*models.Notification, error)
	markAllReadFn func(ctx context.Context, actor auth.Actor) (int64, error)
	unreadFn      func(ctx context.Context, actor auth.Actor) (int64, error)
}

func (s *fakeNotificationsService) ListMine(ctx context.Context, actor auth.Actor, filters notifications.ListFilters, params pagination.Params) (*notifications.NotificationList, error) {
	if s.listFn != nil {
		return s.listFn(ctx, actor, filters, params)
	}
	return &notifications.NotificationList{}, nil
}

func (s *fakeNotificationsService) MarkRead(ctx context.Context, actor auth.Actor, notificationID uuid.UUID) (*models.Notification, error) {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, actor, notificationID)
	}
	return &models.Notification{}, nil
}

func (s *fakeNotificationsService) MarkAllRead(ctx context.Context, actor auth.Actor) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, actor)
	}
	return 0, nil
}

func (s *fakeNotificationsService) UnreadCount(ctx context.Context, actor auth.Actor) (int64, error) {
	if s.unreadFn != nil {
		return s.unreadFn(ctx, actor)
	}
	return 0, nil
}

func discardLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authedRequest(method, target string, actor auth.Actor) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func withURLParam(req *http.Request, name, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestMarkNotificationReadForwardsActorAndID(t *testing.T) {
	actor := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	notificationID := uuid.New()
	called := false
	svc := &fakeNotificationsService{
		markReadFn: func(ctx context.Context, got auth.Actor, id uuid.UUID) (*models.Notification, error) {
			called = true
			if got.UserID != actor.UserID {
				t.Fatalf("unexpected actor %s", got.UserID)
			}
			if id != notificationID {
				t.Fatalf("unexpected notification %s", id)
			}
			return &models.Notification{ID: id, UserID: got.UserID}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", actor)
	req = withURLParam(req, "notificationId", notificationID.String())
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, discardLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestMarkNotificationReadRejectsBadID(t *testing.T) {
	actor := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	svc := &fakeNotificationsService{
		markReadFn: func(ctx context.Context, got auth.Actor, id uuid.UUID) (*models.Notification, error) {
			t.Fatal("service must not be called for invalid id")
			return nil, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/nope/read", actor)
	req = withURLParam(req, "notificationId", "nope")
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, discardLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestListNotificationsParsesUnreadFilter(t *testing.T) {
	actor := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	svc := &fakeNotificationsService{
		listFn: func(ctx context.Context, got auth.Actor, filters notifications.ListFilters, params pagination.Params) (*notifications.NotificationList, error) {
			if !filters.UnreadOnly {
				t.Fatal("expected unread_only filter to be set")
			}
			if params.Limit != 5 {
				t.Fatalf("expected limit 5, got %d", params.Limit)
			}
			return &notifications.NotificationList{Notifications: []models.Notification{}}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/notifications?unread_only=true&limit=5", actor)
	resp := httptest.NewRecorder()
	ListNotifications(svc, discardLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestNotificationsRequireActor(t *testing.T) {
	svc := &fakeNotificationsService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	resp := httptest.NewRecorder()
	ListNotifications(svc, discardLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestMarkAllNotificationsReadReportsCount(t *testing.T) {
	actor := auth.Actor{UserID: uuid.New(), Role: enums.RoleClient}
	svc := &fakeNotificationsService{
		markAllReadFn: func(ctx context.Context, got auth.Actor) (int64, error) {
			return 3, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/read-all", actor)
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, discardLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["updated"] != 3 {
		t.Fatalf("expected 3 updated, got %d", envelope.Data["updated"])
	}
}
