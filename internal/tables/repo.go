package tables

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbenali/resto-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a tables repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// sqlite has no row locks; its whole-file write lock already serializes
// concurrent acquisitions.
func (r *repository) supportsRowLocks() bool {
	return r.db.Dialector.Name() != "sqlite"
}

func (r *repository) FindTable(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	var table models.Table
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&table).Error
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) FindTableForUpdate(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	q := r.db.WithContext(ctx)
	if r.supportsRowLocks() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"})
	}

	var table models.Table
	if err := q.Where("id = ?", id).First(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) ListTables(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	err := r.db.WithContext(ctx).
		Order("number ASC").
		Find(&tables).Error
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *repository) UpdateTableAvailability(ctx context.Context, tableID uuid.UUID, available bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Table{}).
		Where("id = ?", tableID).
		Update("is_available", available).Error
}

func (r *repository) FindActiveSession(ctx context.Context, tableID uuid.UUID) (*models.TableSession, error) {
	var session models.TableSession
	err := r.db.WithContext(ctx).
		Where("table_id = ? AND is_active = ?", tableID, true).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) DeactivateSessionsForTable(ctx context.Context, tableID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.TableSession{}).
		Where("table_id = ? AND is_active = ?", tableID, true).
		Update("is_active", false).Error
}

func (r *repository) CreateSession(ctx context.Context, session *models.TableSession) (*models.TableSession, error) {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repository) UpdateSession(ctx context.Context, sessionID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.TableSession{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

func (r *repository) FindSessionByToken(ctx context.Context, token string) (*models.TableSession, error) {
	var session models.TableSession
	err := r.db.WithContext(ctx).
		Preload("Table").
		Where("token = ?", token).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindSession(ctx context.Context, id uuid.UUID) (*models.TableSession, error) {
	var session models.TableSession
	err := r.db.WithContext(ctx).
		Preload("Table").
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) ListExpiredActiveSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.TableSession, error) {
	var sessions []models.TableSession
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_at <= ?", true, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
