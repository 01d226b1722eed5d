package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
	"github.com/firmdesk/firmdesk-backend/internal/types"
)

type ActivityRepo interface {
	Create(ctx context.Context, tx *gorm.DB, item *types.ActivityItem) (*types.ActivityItem, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*types.ActivityItem, error)
}

type activityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRepo {
	return &activityRepo{db: db, log: baseLog.With("repo", "ActivityRepo")}
}

func (r *activityRepo) Create(ctx context.Context, tx *gorm.DB, item *types.ActivityItem) (*types.ActivityItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *activityRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*types.ActivityItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []*types.ActivityItem
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
