package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
	"github.com/firmdesk/firmdesk-backend/internal/types"
)

type NotificationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, n *types.Notification) (*types.Notification, error)
	ListUnread(ctx context.Context, tenantID string, userID uuid.UUID) ([]*types.Notification, error)
	MarkRead(ctx context.Context, tenantID string, id uuid.UUID) error
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
	return &notificationRepo{db: db, log: baseLog.With("repo", "NotificationRepo")}
}

func (r *notificationRepo) Create(ctx context.Context, tx *gorm.DB, n *types.Notification) (*types.Notification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

func (r *notificationRepo) ListUnread(ctx context.Context, tenantID string, userID uuid.UUID) ([]*types.Notification, error) {
	var items []*types.Notification
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND read_at IS NULL", tenantID, userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, tenantID string, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&types.Notification{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("read_at", &now).Error
}
