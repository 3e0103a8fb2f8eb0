package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/pagination"
)

// Repository defines persistence operations for ingredients, stock and traces.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindIngredient(ctx context.Context, id uuid.UUID) (*models.Ingredient, error)
	FindIngredientWithStock(ctx context.Context, id uuid.UUID) (*models.IngredientWithStock, error)
	ListIngredientsWithStock(ctx context.Context) ([]models.IngredientWithStock, error)
	// FindStockForUpdate loads the stock row under an exclusive row lock,
	// creating a zero row when the ingredient has never been stocked.
	FindStockForUpdate(ctx context.Context, ingredientID uuid.UUID) (*models.IngredientStock, error)
	UpdateStockQuantity(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) error
	AddStock(ctx context.Context, ingredientID uuid.UUID, delta decimal.Decimal) error
	CreateTrace(ctx context.Context, trace *models.IngredientTrace) error
	AnyTraceExists(ctx context.Context, usedBy string) (bool, error)
	ListTracesByUsedBy(ctx context.Context, usedBy string) ([]models.IngredientTrace, error)
	ListTraces(ctx context.Context, params pagination.Params) ([]models.IngredientTrace, string, error)
}
