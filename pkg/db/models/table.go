package models

import (
	"time"

	"github.com/google/uuid"
)

// Table is a physical table. IsAvailable is a cached occupancy flag owned by
// the session lock manager and order finalization; nothing else writes it.
type Table struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Number      string    `gorm:"column:number;type:text;not null;uniqueIndex" json:"number"`
	Capacity    int       `gorm:"column:capacity;not null;default:4" json:"capacity"`
	IsAvailable bool      `gorm:"column:is_available;not null;default:true" json:"is_available"`
	Location    string    `gorm:"column:location;type:text" json:"location"`
	Notes       string    `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
