package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kbenali/resto-backend/pkg/enums"
)

// OfflineOrder is a counter sale keyed in by staff. It shares the kitchen
// state machine and the deduction engine with online orders but never a
// table session.
type OfflineOrder struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber string             `gorm:"column:order_number;type:text;not null;uniqueIndex" json:"order_number"`
	Status      enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'Pending';index" json:"status"`
	CashierID   uuid.UUID          `gorm:"column:cashier_id;type:uuid;not null" json:"cashier_id"`
	CustomerID  *uuid.UUID         `gorm:"column:customer_id;type:uuid" json:"customer_id,omitempty"`
	Customer    *LoyaltyCustomer   `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Total       decimal.Decimal    `gorm:"column:total;type:numeric(10,2);not null;default:0" json:"total"`
	Discount    decimal.Decimal    `gorm:"column:discount;type:numeric(10,2);not null;default:0" json:"discount"`
	Items       []OfflineOrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// OfflineOrderItem is one line of a counter sale.
type OfflineOrderItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	MenuItemID uuid.UUID       `gorm:"column:menu_item_id;type:uuid;not null" json:"menu_item_id"`
	MenuItem   *MenuItem       `gorm:"foreignKey:MenuItemID" json:"menu_item,omitempty"`
	SizeID     *uuid.UUID      `gorm:"column:size_id;type:uuid" json:"size_id,omitempty"`
	Size       *MenuItemSize   `gorm:"foreignKey:SizeID" json:"size,omitempty"`
	Quantity   int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null" json:"unit_price"`
}

// LoyaltyCustomer is a repeat customer attached to counter sales for points.
type LoyaltyCustomer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"column:name;type:text;not null" json:"name"`
	Phone     string    `gorm:"column:phone;type:text;not null;uniqueIndex" json:"phone"`
	Points    int       `gorm:"column:points;not null;default:0" json:"points"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
