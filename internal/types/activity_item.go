package types

import (
	"time"

	"github.com/google/uuid"
)

// ActivityItem is a row in the tenant's activity feed. The durable write
// happens before the realtime emit; realtime delivery is best-effort and the
// feed is the source of truth a client re-fetches from.
type ActivityItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID  string    `gorm:"not null;index;column:tenant_id" json:"tenant_id"`
	ActorID   uuid.UUID `gorm:"type:uuid;column:actor_id" json:"actor_id"`
	Kind      string    `gorm:"not null;column:kind" json:"kind"`
	Message   string    `gorm:"not null;column:message" json:"message"`
	EntityID  string    `gorm:"column:entity_id" json:"entity_id,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ActivityItem) TableName() string {
	return "activity_item"
}
