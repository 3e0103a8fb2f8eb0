package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/pkg/db/models"
)

// Repository defines read-only persistence operations over the menu catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	FindMenuItemSize(ctx context.Context, id uuid.UUID) (*models.MenuItemSize, error)
	FindItemRecipe(ctx context.Context, menuItemID uuid.UUID) ([]models.MenuItemIngredient, error)
	FindSizeRecipe(ctx context.Context, sizeID uuid.UUID) ([]models.MenuItemSizeIngredient, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.db.WithContext(ctx).
		Preload("Sizes").
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindMenuItemSize(ctx context.Context, id uuid.UUID) (*models.MenuItemSize, error) {
	var size models.MenuItemSize
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&size).Error
	if err != nil {
		return nil, err
	}
	return &size, nil
}

func (r *repository) FindItemRecipe(ctx context.Context, menuItemID uuid.UUID) ([]models.MenuItemIngredient, error) {
	var links []models.MenuItemIngredient
	err := r.db.WithContext(ctx).
		Where("menu_item_id = ?", menuItemID).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *repository) FindSizeRecipe(ctx context.Context, sizeID uuid.UUID) ([]models.MenuItemSizeIngredient, error) {
	var links []models.MenuItemSizeIngredient
	err := r.db.WithContext(ctx).
		Where("size_id = ?", sizeID).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}
