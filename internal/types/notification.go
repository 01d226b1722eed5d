package types

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID  string     `gorm:"not null;index;column:tenant_id" json:"tenant_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;index;column:user_id" json:"user_id"`
	Title     string     `gorm:"not null;column:title" json:"title"`
	Body      string     `gorm:"column:body" json:"body,omitempty"`
	ReadAt    *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (Notification) TableName() string {
	return "notification"
}
