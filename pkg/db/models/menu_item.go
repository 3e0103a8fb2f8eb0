package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MenuItem is a sellable catalog entry. Catalog CRUD lives outside this
// service; the engine only reads prices and recipe links.
type MenuItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string          `gorm:"column:name;type:text;not null" json:"name"`
	Description string          `gorm:"column:description;type:text" json:"description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	CostPrice   decimal.Decimal `gorm:"column:cost_price;type:numeric(10,2);not null;default:0" json:"cost_price"`
	Category    string          `gorm:"column:category;type:text" json:"category"`
	Sizes       []MenuItemSize  `gorm:"foreignKey:MenuItemID;constraint:OnDelete:CASCADE" json:"sizes,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// MenuItemSize is a size variant with its own price and recipe.
type MenuItemSize struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MenuItemID uuid.UUID       `gorm:"column:menu_item_id;type:uuid;not null;index" json:"menu_item_id"`
	Size       string          `gorm:"column:size;type:text;not null" json:"size"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	CostPrice  decimal.Decimal `gorm:"column:cost_price;type:numeric(10,2);not null;default:0" json:"cost_price"`
}
