package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngredientTrace is the immutable audit record of one deduction applied to
// one ingredient for one order. Its existence is also the idempotency guard:
// a (used_by, ingredient) pair with a trace is never deducted again.
type IngredientTrace struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	IngredientID   uuid.UUID       `gorm:"column:ingredient_id;type:uuid;not null;uniqueIndex:idx_trace_used_by_ingredient" json:"ingredient_id"`
	Ingredient     *Ingredient     `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
	UsedBy         string          `gorm:"column:used_by;type:text;not null;uniqueIndex:idx_trace_used_by_ingredient" json:"used_by"`
	QuantityBefore decimal.Decimal `gorm:"column:quantity_before;type:numeric(10,2);not null" json:"quantity_before"`
	QuantityUsed   decimal.Decimal `gorm:"column:quantity_used;type:numeric(10,2);not null" json:"quantity_used"`
	QuantityAfter  decimal.Decimal `gorm:"column:quantity_after;type:numeric(10,2);not null" json:"quantity_after"`
	Clamped        bool            `gorm:"column:clamped;not null;default:false" json:"clamped"`
	ActorID        *uuid.UUID      `gorm:"column:actor_id;type:uuid" json:"actor_id,omitempty"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}
