package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/internal/catalog"
	"github.com/kbenali/resto-backend/pkg/db/models"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/metrics"
	"github.com/kbenali/resto-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ConsumptionLine is one order line item to deduct stock for.
type ConsumptionLine struct {
	MenuItemID uuid.UUID
	SizeID     *uuid.UUID
	Quantity   int
}

// ConsumptionOrder identifies one order's consumption run. UsedBy is the
// stable order reference written on every trace and doubles as the
// idempotency key.
type ConsumptionOrder struct {
	UsedBy  string
	ActorID *uuid.UUID
	Lines   []ConsumptionLine
}

// ConsumptionResult summarizes one deduction run.
type ConsumptionResult struct {
	TracesCreated int
	ItemsSkipped  int
	// LowStock lists ingredients at or below their reorder level after the
	// run. The caller alerts on these after its transaction commits.
	LowStock []models.IngredientWithStock
}

// Service owns the stock ledger: deduction on order readiness, restocking,
// and trace/stock reads.
type Service interface {
	// ApplyConsumption deducts ingredient stock for the order exactly once,
	// inside the caller's transaction. A second call for the same UsedBy is a
	// no-op returning zero traces.
	ApplyConsumption(ctx context.Context, tx *gorm.DB, order ConsumptionOrder) (*ConsumptionResult, error)
	Restock(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) (*models.IngredientWithStock, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (*models.IngredientWithStock, error)
	ListIngredients(ctx context.Context) ([]models.IngredientWithStock, error)
	ListOrderTraces(ctx context.Context, usedBy string) ([]models.IngredientTrace, error)
	ListTraces(ctx context.Context, params pagination.Params) ([]models.IngredientTrace, string, error)
}

type service struct {
	repo    Repository
	catalog catalog.Service
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
}

// NewService builds the inventory service with the required dependencies.
func NewService(repo Repository, catalogSvc catalog.Service, tx txRunner, logg *logger.Logger, m *metrics.EngineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, catalog: catalogSvc, tx: tx, logg: logg, metrics: m}, nil
}

func (s *service) ApplyConsumption(ctx context.Context, tx *gorm.DB, order ConsumptionOrder) (*ConsumptionResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for consumption")
	}
	if order.UsedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference required")
	}

	repo := s.repo.WithTx(tx)
	cat := s.catalog.WithTx(tx)

	// Trace existence is the authoritative duplicate guard. It also covers
	// replayed or concurrent triggers that slip past the status edge check.
	exists, err := repo.AnyTraceExists(ctx, order.UsedBy)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing traces")
	}
	if exists {
		s.metrics.IncDeduction("skipped")
		s.logg.Info(s.logg.WithField(ctx, "used_by", order.UsedBy), "consumption already applied, skipping")
		return &ConsumptionResult{}, nil
	}

	result := &ConsumptionResult{}
	touched := map[uuid.UUID]struct{}{}

	for _, line := range order.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}

		recipe, err := cat.ResolveRecipe(ctx, line.MenuItemID, line.SizeID)
		if err != nil {
			return nil, err
		}
		if len(recipe) == 0 {
			result.ItemsSkipped++
			continue
		}

		for _, rl := range recipe {
			consumed := rl.QtyPerUnit.Mul(decimal.NewFromInt(int64(line.Quantity)))
			if err := s.deductIngredient(ctx, repo, order, rl.IngredientID, consumed, result); err != nil {
				return nil, err
			}
			touched[rl.IngredientID] = struct{}{}
		}
	}

	for id := range touched {
		row, err := repo.FindIngredientWithStock(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload ingredient stock")
		}
		if row.IsLowStock() {
			result.LowStock = append(result.LowStock, *row)
		}
	}

	return result, nil
}

// clampAtZero is the overselling policy: a deduction larger than the
// remaining stock floors the ledger at zero instead of failing the order.
// The shortfall is recorded on the trace and logged.
func clampAtZero(before, consumed decimal.Decimal) (after decimal.Decimal, clamped bool) {
	after = before.Sub(consumed)
	if after.IsNegative() {
		return decimal.Zero, true
	}
	return after, false
}

func (s *service) deductIngredient(ctx context.Context, repo Repository, order ConsumptionOrder, ingredientID uuid.UUID, consumed decimal.Decimal, result *ConsumptionResult) error {
	stock, err := repo.FindStockForUpdate(ctx, ingredientID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock ingredient stock")
	}

	before := stock.Quantity
	after, clamped := clampAtZero(before, consumed)
	if clamped {
		s.metrics.IncDeduction("clamped")
		lctx := s.logg.WithFields(ctx, map[string]any{
			"used_by":       order.UsedBy,
			"ingredient_id": ingredientID.String(),
			"requested":     consumed.String(),
			"available":     before.String(),
		})
		s.logg.Warn(lctx, "stock oversold, clamping at zero")
	}

	if err := repo.UpdateStockQuantity(ctx, ingredientID, after); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ingredient stock")
	}

	trace := &models.IngredientTrace{
		IngredientID:   ingredientID,
		UsedBy:         order.UsedBy,
		QuantityBefore: before,
		QuantityUsed:   consumed,
		QuantityAfter:  after,
		Clamped:        clamped,
		ActorID:        order.ActorID,
	}
	if err := repo.CreateTrace(ctx, trace); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ingredient trace")
	}

	s.metrics.IncDeduction("traced")
	result.TracesCreated++
	return nil
}

func (s *service) Restock(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) (*models.IngredientWithStock, error) {
	if ingredientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient id required")
	}
	if !quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindIngredient(ctx, ingredientID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ingredient not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ingredient")
		}
		if err := repo.AddStock(ctx, ingredientID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add stock")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetIngredient(ctx, ingredientID)
}

func (s *service) GetIngredient(ctx context.Context, id uuid.UUID) (*models.IngredientWithStock, error) {
	row, err := s.repo.FindIngredientWithStock(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ingredient not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ingredient")
	}
	return row, nil
}

func (s *service) ListIngredients(ctx context.Context) ([]models.IngredientWithStock, error) {
	rows, err := s.repo.ListIngredientsWithStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ingredients")
	}
	return rows, nil
}

func (s *service) ListOrderTraces(ctx context.Context, usedBy string) ([]models.IngredientTrace, error) {
	if usedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference required")
	}
	traces, err := s.repo.ListTracesByUsedBy(ctx, usedBy)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list traces")
	}
	return traces, nil
}

func (s *service) ListTraces(ctx context.Context, params pagination.Params) ([]models.IngredientTrace, string, error) {
	traces, next, err := s.repo.ListTraces(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list traces")
	}
	return traces, next, nil
}
