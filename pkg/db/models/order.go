package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kbenali/resto-backend/pkg/enums"
)

// Order is an online order placed through a table session or for delivery.
// Status moves only along the kitchen state machine; Total is recomputed
// whenever items change.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber        string            `gorm:"column:order_number;type:text;not null;uniqueIndex" json:"order_number"`
	OrderType          enums.OrderType   `gorm:"column:order_type;type:text;not null" json:"order_type"`
	Status             enums.OrderStatus `gorm:"column:status;type:text;not null;default:'Pending';index" json:"status"`
	TableID            *uuid.UUID        `gorm:"column:table_id;type:uuid;index:idx_orders_table_status" json:"table_id,omitempty"`
	Table              *Table            `gorm:"foreignKey:TableID" json:"table,omitempty"`
	SessionID          *uuid.UUID        `gorm:"column:session_id;type:uuid;index" json:"session_id,omitempty"`
	CustomerName       string            `gorm:"column:customer_name;type:text" json:"customer_name"`
	CustomerPhone      string            `gorm:"column:customer_phone;type:text" json:"customer_phone"`
	DeliveryAddress    string            `gorm:"column:delivery_address;type:text" json:"delivery_address"`
	Notes              string            `gorm:"column:notes;type:text" json:"notes"`
	Total              decimal.Decimal   `gorm:"column:total;type:numeric(10,2);not null;default:0" json:"total"`
	IsConfirmedCashier bool              `gorm:"column:is_confirmed_cashier;not null;default:false" json:"is_confirmed_cashier"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// OrderItem is one line of an online order. SizeID is nil for sizeless items.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	MenuItemID uuid.UUID       `gorm:"column:menu_item_id;type:uuid;not null" json:"menu_item_id"`
	MenuItem   *MenuItem       `gorm:"foreignKey:MenuItemID" json:"menu_item,omitempty"`
	SizeID     *uuid.UUID      `gorm:"column:size_id;type:uuid" json:"size_id,omitempty"`
	Size       *MenuItemSize   `gorm:"foreignKey:SizeID" json:"size,omitempty"`
	Quantity   int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null" json:"unit_price"`
	Notes      string          `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// LineTotal is quantity times the captured unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
