package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// sqlite serializes writers with a whole-file lock, so row locking clauses
// are unsupported and unnecessary there.
func (r *repository) supportsRowLocks() bool {
	return r.db.Dialector.Name() != "sqlite"
}

func (r *repository) FindIngredient(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&ingredient).Error
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func (r *repository) FindIngredientWithStock(ctx context.Context, id uuid.UUID) (*models.IngredientWithStock, error) {
	var row models.IngredientWithStock
	err := r.db.WithContext(ctx).
		Model(&models.Ingredient{}).
		Select("ingredients.*, COALESCE(ingredient_stocks.quantity, 0) AS quantity").
		Joins("LEFT JOIN ingredient_stocks ON ingredient_stocks.ingredient_id = ingredients.id").
		Where("ingredients.id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListIngredientsWithStock(ctx context.Context) ([]models.IngredientWithStock, error) {
	var rows []models.IngredientWithStock
	err := r.db.WithContext(ctx).
		Model(&models.Ingredient{}).
		Select("ingredients.*, COALESCE(ingredient_stocks.quantity, 0) AS quantity").
		Joins("LEFT JOIN ingredient_stocks ON ingredient_stocks.ingredient_id = ingredients.id").
		Order("ingredients.name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindStockForUpdate(ctx context.Context, ingredientID uuid.UUID) (*models.IngredientStock, error) {
	q := r.db.WithContext(ctx)
	if r.supportsRowLocks() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var stock models.IngredientStock
	err := q.Where("ingredient_id = ?", ingredientID).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stock = models.IngredientStock{IngredientID: ingredientID, Quantity: decimal.Zero}
		if createErr := r.db.WithContext(ctx).Create(&stock).Error; createErr != nil {
			return nil, createErr
		}
		return &stock, nil
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *repository) UpdateStockQuantity(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.IngredientStock{}).
		Where("ingredient_id = ?", ingredientID).
		Update("quantity", quantity).Error
}

func (r *repository) AddStock(ctx context.Context, ingredientID uuid.UUID, delta decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.IngredientStock{}).
		Where("ingredient_id = ?", ingredientID).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		stock := models.IngredientStock{IngredientID: ingredientID, Quantity: delta}
		return r.db.WithContext(ctx).Create(&stock).Error
	}
	return nil
}

func (r *repository) CreateTrace(ctx context.Context, trace *models.IngredientTrace) error {
	return r.db.WithContext(ctx).Create(trace).Error
}

func (r *repository) AnyTraceExists(ctx context.Context, usedBy string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.IngredientTrace{}).
		Where("used_by = ?", usedBy).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListTracesByUsedBy(ctx context.Context, usedBy string) ([]models.IngredientTrace, error) {
	var traces []models.IngredientTrace
	err := r.db.WithContext(ctx).
		Preload("Ingredient").
		Where("used_by = ?", usedBy).
		Order("created_at ASC").
		Find(&traces).Error
	if err != nil {
		return nil, err
	}
	return traces, nil
}

func (r *repository) ListTraces(ctx context.Context, params pagination.Params) ([]models.IngredientTrace, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.db.WithContext(ctx).
		Preload("Ingredient").
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var traces []models.IngredientTrace
	if err := q.Find(&traces).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(traces) == limit {
		traces = traces[:limit-1]
		last := traces[len(traces)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return traces, next, nil
}
