package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
	"github.com/firmdesk/firmdesk-backend/internal/realtime"
	"github.com/firmdesk/firmdesk-backend/internal/repos"
	"github.com/firmdesk/firmdesk-backend/internal/types"
)

// =========================
// Activity notifier
// =========================

// ActivityNotifier persists an activity-feed row, then emits activity:new to
// the tenant. Write-then-notify: if the process dies between the two, the
// row exists and the next feed fetch picks it up.
type ActivityNotifier interface {
	ActivityRecorded(ctx context.Context, tenantID string, actorID uuid.UUID, kind, message, entityID string) (*types.ActivityItem, error)
}

type activityNotifier struct {
	log  *logger.Logger
	db   *gorm.DB
	repo repos.ActivityRepo
	emit Emitter
}

func NewActivityNotifier(log *logger.Logger, db *gorm.DB, repo repos.ActivityRepo, emit Emitter) ActivityNotifier {
	return &activityNotifier{
		log:  log.With("service", "ActivityNotifier"),
		db:   db,
		repo: repo,
		emit: emit,
	}
}

func (n *activityNotifier) ActivityRecorded(ctx context.Context, tenantID string, actorID uuid.UUID, kind, message, entityID string) (*types.ActivityItem, error) {
	item := &types.ActivityItem{
		TenantID: tenantID,
		ActorID:  actorID,
		Kind:     kind,
		Message:  message,
		EntityID: entityID,
	}
	item, err := n.repo.Create(ctx, nil, item)
	if err != nil {
		return nil, err
	}

	n.emit.Emit(ctx, tenantID, realtime.Event{
		Type: realtime.EventActivityNew,
		ID:   item.ID.String(),
		Data: item,
	})
	return item, nil
}

// =========================
// Notification notifier
// =========================

type NotificationNotifier interface {
	NotificationCreated(ctx context.Context, tenantID string, userID uuid.UUID, title, body string) (*types.Notification, error)
}

type notificationNotifier struct {
	log  *logger.Logger
	db   *gorm.DB
	repo repos.NotificationRepo
	emit Emitter
}

func NewNotificationNotifier(log *logger.Logger, db *gorm.DB, repo repos.NotificationRepo, emit Emitter) NotificationNotifier {
	return &notificationNotifier{
		log:  log.With("service", "NotificationNotifier"),
		db:   db,
		repo: repo,
		emit: emit,
	}
}

func (n *notificationNotifier) NotificationCreated(ctx context.Context, tenantID string, userID uuid.UUID, title, body string) (*types.Notification, error) {
	notification := &types.Notification{
		TenantID: tenantID,
		UserID:   userID,
		Title:    title,
		Body:     body,
	}
	notification, err := n.repo.Create(ctx, nil, notification)
	if err != nil {
		return nil, err
	}

	n.emit.Emit(ctx, tenantID, realtime.Event{
		Type: realtime.EventNotificationNew,
		ID:   notification.ID.String(),
		Data: notification,
	})
	return notification, nil
}
