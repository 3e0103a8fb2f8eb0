package models

import (
	"time"

	"github.com/google/uuid"
)

// TableSession is one customer's exclusive occupancy window on a table. At
// most one session per table may have IsActive true at any instant; the lock
// manager is the only writer that can uphold that.
type TableSession struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TableID      uuid.UUID `gorm:"column:table_id;type:uuid;not null;index:idx_table_sessions_table_active" json:"table_id"`
	Table        *Table    `gorm:"foreignKey:TableID" json:"table,omitempty"`
	Token        string    `gorm:"column:token;type:text;not null;uniqueIndex" json:"token"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true;index:idx_table_sessions_table_active" json:"is_active"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	LastAccessed time.Time `gorm:"column:last_accessed;not null" json:"last_accessed"`
	IPAddress    string    `gorm:"column:ip_address;type:text;not null" json:"-"`
	UserAgent    string    `gorm:"column:user_agent;type:text;not null" json:"-"`
	OrderPlaced  bool      `gorm:"column:order_placed;not null;default:false" json:"order_placed"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// IsExpired reports whether the session passed its validity window. Expiry
// blocks the token but never frees the table.
func (s TableSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsValid reports whether the token may still be used.
func (s TableSession) IsValid(now time.Time) bool {
	return s.IsActive && !s.IsExpired(now)
}
