package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kbenali/resto-backend/pkg/enums"
)

// Notification is a persisted staff alert. One row is fanned out per target
// role so each role tracks its own read state.
type Notification struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind      enums.NotificationKind     `gorm:"column:kind;type:text;not null" json:"kind"`
	Priority  enums.NotificationPriority `gorm:"column:priority;type:text;not null;default:'medium'" json:"priority"`
	Role      enums.StaffRole            `gorm:"column:role;type:text;not null;index:idx_notifications_role_read" json:"role"`
	Title     string                     `gorm:"column:title;type:text;not null" json:"title"`
	Body      string                     `gorm:"column:body;type:text" json:"body"`
	RefID     *uuid.UUID                 `gorm:"column:ref_id;type:uuid" json:"ref_id,omitempty"`
	IsRead    bool                       `gorm:"column:is_read;not null;default:false;index:idx_notifications_role_read" json:"is_read"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}
