package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/enums"
	"github.com/kbenali/resto-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) supportsRowLocks() bool {
	return r.db.Dialector.Name() != "sqlite"
}

// LockTable serializes merges against session acquisition on the same table.
func (r *repository) LockTable(ctx context.Context, tableID uuid.UUID) error {
	q := r.db.WithContext(ctx)
	if r.supportsRowLocks() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"})
	}
	var table models.Table
	return q.Where("id = ?", tableID).First(&table).Error
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOpenTableOrder(ctx context.Context, tableID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("table_id = ? AND status IN ?", tableID, enums.OpenOrderStatuses()).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) MarkSessionOrderPlaced(ctx context.Context, sessionID uuid.UUID, now, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.TableSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{
			"order_placed":  true,
			"last_accessed": now,
			"expires_at":    expiresAt,
		}).Error
}

func (r *repository) ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(limit)
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.OrderType != nil {
		q = q.Where("order_type = ?", *filters.OrderType)
	}
	if filters.TableID != nil {
		q = q.Where("table_id = ?", *filters.TableID)
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := q.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) == limit {
		rows = rows[:limit-1]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (r *repository) FinalizeOpenOrdersForTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("table_id = ? AND status IN ?", tableID, enums.OpenOrderStatuses()).
		Update("status", enums.OrderStatusServed)
	return res.RowsAffected, res.Error
}

func (r *repository) CreateOfflineOrder(ctx context.Context, order *models.OfflineOrder) (*models.OfflineOrder, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOfflineOrderItems(ctx context.Context, items []models.OfflineOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindOfflineOrder(ctx context.Context, id uuid.UUID) (*models.OfflineOrder, error) {
	var order models.OfflineOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOfflineOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OfflineOrder{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListOfflineOrders(ctx context.Context, params pagination.Params) ([]models.OfflineOrder, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.OfflineOrder
	if err := q.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) == limit {
		rows = rows[:limit-1]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (r *repository) AddLoyaltyPoints(ctx context.Context, customerID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).
		Model(&models.LoyaltyCustomer{}).
		Where("id = ?", customerID).
		Update("points", gorm.Expr("points + ?", points)).Error
}
