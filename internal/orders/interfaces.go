package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/pagination"
)

// Repository defines persistence operations for online and offline orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockTable(ctx context.Context, tableID uuid.UUID) error
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindOpenTableOrder returns the newest order on the table still in an
	// open status, the merge target for repeat submissions. Served and
	// terminal orders are never candidates.
	FindOpenTableOrder(ctx context.Context, tableID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// MarkSessionOrderPlaced flags the session and extends its validity
	// window; every order keeps the occupancy alive.
	MarkSessionOrderPlaced(ctx context.Context, sessionID uuid.UUID, now, expiresAt time.Time) error
	ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, string, error)
	FinalizeOpenOrdersForTable(ctx context.Context, tableID uuid.UUID) (int64, error)
	CreateOfflineOrder(ctx context.Context, order *models.OfflineOrder) (*models.OfflineOrder, error)
	CreateOfflineOrderItems(ctx context.Context, items []models.OfflineOrderItem) error
	FindOfflineOrder(ctx context.Context, id uuid.UUID) (*models.OfflineOrder, error)
	UpdateOfflineOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListOfflineOrders(ctx context.Context, params pagination.Params) ([]models.OfflineOrder, string, error)
	AddLoyaltyPoints(ctx context.Context, customerID uuid.UUID, points int) error
}
