package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kbenali/resto-backend/pkg/enums"
)

// ItemInput is one requested line in an order submission.
type ItemInput struct {
	MenuItemID uuid.UUID
	SizeID     *uuid.UUID
	Quantity   int
	Notes      string
}

// PlaceSessionOrderInput is a dine-in submission made through a table session.
type PlaceSessionOrderInput struct {
	Items []ItemInput
	Notes string
}

// CreateOrderInput is an online delivery or takeaway submission.
type CreateOrderInput struct {
	OrderType       enums.OrderType
	Items           []ItemInput
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	Notes           string
}

// CreateOfflineOrderInput is a counter sale keyed in by a cashier.
type CreateOfflineOrderInput struct {
	Items      []ItemInput
	CustomerID *uuid.UUID
	Discount   decimal.Decimal
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status    *enums.OrderStatus
	OrderType *enums.OrderType
	TableID   *uuid.UUID
}
