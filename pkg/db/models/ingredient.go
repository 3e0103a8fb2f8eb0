package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ingredient describes a stocked raw material. The live quantity is owned by
// IngredientStock; this row carries identity and the reorder threshold only.
type Ingredient struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string          `gorm:"column:name;type:text;not null" json:"name"`
	Unit         string          `gorm:"column:unit;type:text;not null;default:'g'" json:"unit"`
	ReorderLevel decimal.Decimal `gorm:"column:reorder_level;type:numeric(10,2);not null;default:10" json:"reorder_level"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// IngredientStock is the single source of truth for an ingredient's current
// quantity. One row per ingredient, mutated only inside deduction and
// restock transactions.
type IngredientStock struct {
	IngredientID uuid.UUID       `gorm:"column:ingredient_id;type:uuid;primaryKey" json:"ingredient_id"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(10,2);not null;default:0" json:"quantity"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// IngredientWithStock is the read projection joining identity and quantity.
type IngredientWithStock struct {
	Ingredient
	Quantity decimal.Decimal `json:"quantity"`
}

// IsLowStock reports whether the projected quantity fell to the reorder level.
func (i IngredientWithStock) IsLowStock() bool {
	return i.Quantity.LessThanOrEqual(i.ReorderLevel)
}

// MenuItemIngredient links a sizeless menu item to one ingredient and the
// quantity consumed per unit sold.
type MenuItemIngredient struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MenuItemID   uuid.UUID       `gorm:"column:menu_item_id;type:uuid;not null;uniqueIndex:idx_menu_item_ingredient" json:"menu_item_id"`
	IngredientID uuid.UUID       `gorm:"column:ingredient_id;type:uuid;not null;uniqueIndex:idx_menu_item_ingredient" json:"ingredient_id"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(10,2);not null" json:"quantity"`
}

// MenuItemSizeIngredient links a size variant to one ingredient and the
// quantity consumed per unit sold.
type MenuItemSizeIngredient struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SizeID       uuid.UUID       `gorm:"column:size_id;type:uuid;not null;uniqueIndex:idx_size_ingredient" json:"size_id"`
	IngredientID uuid.UUID       `gorm:"column:ingredient_id;type:uuid;not null;uniqueIndex:idx_size_ingredient" json:"ingredient_id"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(10,2);not null" json:"quantity"`
}
