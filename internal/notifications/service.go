package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fatine-labs/souqly-backend/pkg/auth"
	"github.com/fatine-labs/souqly-backend/pkg/db/models"
	pkgerrors "github.com/fatine-labs/souqly-backend/pkg/errors"
	"github.com/fatine-labs/souqly-backend/pkg/pagination"
)

// ListFilters narrows a notification listing.
type ListFilters struct {
	UnreadOnly bool
}

// NotificationList is a cursor page of notifications.
type NotificationList struct {
	Notifications []models.Notification
	NextCursor    string
}

// Service exposes the per-user notification inbox.
type Service interface {
	ListMine(ctx context.Context, actor auth.Actor, filters ListFilters, params pagination.Params) (*NotificationList, error)
	MarkRead(ctx context.Context, actor auth.Actor, notificationID uuid.UUID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, actor auth.Actor) (int64, error)
	UnreadCount(ctx context.Context, actor auth.Actor) (int64, error)
}

type service struct {
	repo Repository
}

// NewService builds a notifications service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, filters ListFilters, params pagination.Params) (*NotificationList, error) {
	params.Limit = pagination.NormalizeLimit(params.Limit)

	notifications, err := s.repo.ListByUser(ctx, actor.UserID, filters.UnreadOnly, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	page := &NotificationList{Notifications: notifications}
	if len(notifications) > params.Limit {
		page.Notifications = notifications[:params.Limit]
		last := page.Notifications[params.Limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *service) MarkRead(ctx context.Context, actor auth.Actor, notificationID uuid.UUID) (*models.Notification, error) {
	if notificationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	notification, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification")
	}
	if notification.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	if notification.ReadAt != nil {
		return notification, nil
	}

	now := time.Now().UTC()
	if err := s.repo.MarkRead(ctx, notificationID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	notification.ReadAt = &now
	return notification, nil
}

func (s *service) MarkAllRead(ctx context.Context, actor auth.Actor) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, actor.UserID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return updated, nil
}

func (s *service) UnreadCount(ctx context.Context, actor auth.Actor) (int64, error) {
	count, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}
