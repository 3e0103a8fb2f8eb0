package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/enums"
	"github.com/kbenali/resto-backend/pkg/pagination"
)

// Repository defines persistence operations for staff notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateNotifications(ctx context.Context, rows []models.Notification) error
	ListByRole(ctx context.Context, role enums.StaffRole, unreadOnly bool, params pagination.Params) ([]models.Notification, string, error)
	MarkRead(ctx context.Context, id uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, role enums.StaffRole) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a notifications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateNotifications(ctx context.Context, rows []models.Notification) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) ListByRole(ctx context.Context, role enums.StaffRole, unreadOnly bool, params pagination.Params) ([]models.Notification, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Notification
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

func (r *repository) MarkRead(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *repository) MarkAllRead(ctx context.Context, role enums.StaffRole) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("role = ? AND is_read = ?", role, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
