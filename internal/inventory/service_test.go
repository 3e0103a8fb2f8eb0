package inventory

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/internal/catalog"
	"github.com/kbenali/resto-backend/pkg/db/models"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeCatalog struct {
	recipes map[uuid.UUID][]catalog.RecipeLine
}

func (f *fakeCatalog) WithTx(tx *gorm.DB) catalog.Service { return f }

func (f *fakeCatalog) ResolveRecipe(ctx context.Context, menuItemID uuid.UUID, sizeID *uuid.UUID) ([]catalog.RecipeLine, error) {
	return f.recipes[menuItemID], nil
}

func (f *fakeCatalog) ResolvePrice(ctx context.Context, menuItemID uuid.UUID, sizeID *uuid.UUID) (decimal.Decimal, error) {
	return decimal.NewFromInt(5), nil
}

type fakeInventoryRepo struct {
	ingredients map[uuid.UUID]*models.Ingredient
	stock       map[uuid.UUID]decimal.Decimal
	traces      []models.IngredientTrace
	existing    map[string]bool
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{
		ingredients: map[uuid.UUID]*models.Ingredient{},
		stock:       map[uuid.UUID]decimal.Decimal{},
		existing:    map[string]bool{},
	}
}

func (f *fakeInventoryRepo) addIngredient(name string, quantity, reorder decimal.Decimal) uuid.UUID {
	id := uuid.New()
	f.ingredients[id] = &models.Ingredient{ID: id, Name: name, Unit: "g", ReorderLevel: reorder}
	f.stock[id] = quantity
	return id
}

func (f *fakeInventoryRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeInventoryRepo) FindIngredient(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	ing, ok := f.ingredients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return ing, nil
}

func (f *fakeInventoryRepo) FindIngredientWithStock(ctx context.Context, id uuid.UUID) (*models.IngredientWithStock, error) {
	ing, ok := f.ingredients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.IngredientWithStock{Ingredient: *ing, Quantity: f.stock[id]}, nil
}

func (f *fakeInventoryRepo) ListIngredientsWithStock(ctx context.Context) ([]models.IngredientWithStock, error) {
	rows := make([]models.IngredientWithStock, 0, len(f.ingredients))
	for id, ing := range f.ingredients {
		rows = append(rows, models.IngredientWithStock{Ingredient: *ing, Quantity: f.stock[id]})
	}
	return rows, nil
}

func (f *fakeInventoryRepo) FindStockForUpdate(ctx context.Context, ingredientID uuid.UUID) (*models.IngredientStock, error) {
	return &models.IngredientStock{IngredientID: ingredientID, Quantity: f.stock[ingredientID]}, nil
}

func (f *fakeInventoryRepo) UpdateStockQuantity(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) error {
	f.stock[ingredientID] = quantity
	return nil
}

func (f *fakeInventoryRepo) AddStock(ctx context.Context, ingredientID uuid.UUID, delta decimal.Decimal) error {
	f.stock[ingredientID] = f.stock[ingredientID].Add(delta)
	return nil
}

func (f *fakeInventoryRepo) CreateTrace(ctx context.Context, trace *models.IngredientTrace) error {
	f.traces = append(f.traces, *trace)
	return nil
}

func (f *fakeInventoryRepo) AnyTraceExists(ctx context.Context, usedBy string) (bool, error) {
	if f.existing[usedBy] {
		return true, nil
	}
	for _, trace := range f.traces {
		if trace.UsedBy == usedBy {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInventoryRepo) ListTracesByUsedBy(ctx context.Context, usedBy string) ([]models.IngredientTrace, error) {
	var out []models.IngredientTrace
	for _, trace := range f.traces {
		if trace.UsedBy == usedBy {
			out = append(out, trace)
		}
	}
	return out, nil
}

func (f *fakeInventoryRepo) ListTraces(ctx context.Context, params pagination.Params) ([]models.IngredientTrace, string, error) {
	return f.traces, "", nil
}

func newTestService(t *testing.T, repo *fakeInventoryRepo, cat *fakeCatalog) Service {
	t.Helper()
	svc, err := NewService(
		repo,
		cat,
		fakeTxRunner{},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		nil,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestApplyConsumptionDeductsAndTraces(t *testing.T) {
	repo := newFakeInventoryRepo()
	flour := repo.addIngredient("flour", decimal.NewFromInt(1000), decimal.NewFromInt(100))
	cheese := repo.addIngredient("cheese", decimal.NewFromInt(500), decimal.NewFromInt(50))
	menuItemID := uuid.New()
	cat := &fakeCatalog{recipes: map[uuid.UUID][]catalog.RecipeLine{
		menuItemID: {
			{IngredientID: flour, QtyPerUnit: decimal.NewFromInt(200)},
			{IngredientID: cheese, QtyPerUnit: decimal.NewFromInt(80)},
		},
	}}
	svc := newTestService(t, repo, cat)
	actorID := uuid.New()

	result, err := svc.ApplyConsumption(context.Background(), &gorm.DB{}, ConsumptionOrder{
		UsedBy:  "order:abc",
		ActorID: &actorID,
		Lines:   []ConsumptionLine{{MenuItemID: menuItemID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("ApplyConsumption: %v", err)
	}
	if result.TracesCreated != 2 {
		t.Fatalf("expected 2 traces, got %d", result.TracesCreated)
	}
	if want := decimal.NewFromInt(600); !repo.stock[flour].Equal(want) {
		t.Fatalf("expected flour at %s, got %s", want, repo.stock[flour])
	}
	if want := decimal.NewFromInt(340); !repo.stock[cheese].Equal(want) {
		t.Fatalf("expected cheese at %s, got %s", want, repo.stock[cheese])
	}

	trace := repo.traces[0]
	if trace.UsedBy != "order:abc" {
		t.Fatalf("unexpected trace key %q", trace.UsedBy)
	}
	if trace.ActorID == nil || *trace.ActorID != actorID {
		t.Fatal("trace must record the acting user")
	}
	if !trace.QuantityBefore.Sub(trace.QuantityUsed).Equal(trace.QuantityAfter) {
		t.Fatal("trace arithmetic must balance")
	}
}

func TestApplyConsumptionIsIdempotentPerOrder(t *testing.T) {
	repo := newFakeInventoryRepo()
	flour := repo.addIngredient("flour", decimal.NewFromInt(1000), decimal.NewFromInt(100))
	menuItemID := uuid.New()
	cat := &fakeCatalog{recipes: map[uuid.UUID][]catalog.RecipeLine{
		menuItemID: {{IngredientID: flour, QtyPerUnit: decimal.NewFromInt(100)}},
	}}
	svc := newTestService(t, repo, cat)
	order := ConsumptionOrder{
		UsedBy: "order:dup",
		Lines:  []ConsumptionLine{{MenuItemID: menuItemID, Quantity: 1}},
	}

	if _, err := svc.ApplyConsumption(context.Background(), &gorm.DB{}, order); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.ApplyConsumption(context.Background(), &gorm.DB{}, order)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.TracesCreated != 0 {
		t.Fatal("replay must not create traces")
	}
	if want := decimal.NewFromInt(900); !repo.stock[flour].Equal(want) {
		t.Fatalf("replay must not deduct again, stock at %s", repo.stock[flour])
	}
}

func TestApplyConsumptionClampsAtZero(t *testing.T) {
	repo := newFakeInventoryRepo()
	saffron := repo.addIngredient("saffron", decimal.NewFromInt(3), decimal.NewFromInt(1))
	menuItemID := uuid.New()
	cat := &fakeCatalog{recipes: map[uuid.UUID][]catalog.RecipeLine{
		menuItemID: {{IngredientID: saffron, QtyPerUnit: decimal.NewFromInt(5)}},
	}}
	svc := newTestService(t, repo, cat)

	result, err := svc.ApplyConsumption(context.Background(), &gorm.DB{}, ConsumptionOrder{
		UsedBy: "order:oversell",
		Lines:  []ConsumptionLine{{MenuItemID: menuItemID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("ApplyConsumption: %v", err)
	}
	if !repo.stock[saffron].IsZero() {
		t.Fatalf("oversold stock must floor at zero, got %s", repo.stock[saffron])
	}
	if !repo.traces[0].Clamped {
		t.Fatal("trace must flag the clamp")
	}
	if !repo.traces[0].QuantityUsed.Equal(decimal.NewFromInt(5)) {
		t.Fatal("trace must keep the requested quantity, not the clamped delta")
	}
	if len(result.LowStock) != 1 {
		t.Fatalf("zeroed ingredient must report low stock, got %d", len(result.LowStock))
	}
}

func TestApplyConsumptionSkipsRecipelessItems(t *testing.T) {
	repo := newFakeInventoryRepo()
	svc := newTestService(t, repo, &fakeCatalog{recipes: map[uuid.UUID][]catalog.RecipeLine{}})

	result, err := svc.ApplyConsumption(context.Background(), &gorm.DB{}, ConsumptionOrder{
		UsedBy: "order:bare",
		Lines:  []ConsumptionLine{{MenuItemID: uuid.New(), Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("ApplyConsumption: %v", err)
	}
	if result.ItemsSkipped != 1 {
		t.Fatalf("expected 1 skipped item, got %d", result.ItemsSkipped)
	}
	if result.TracesCreated != 0 {
		t.Fatal("no recipe means no traces")
	}
}

func TestApplyConsumptionRequiresTransaction(t *testing.T) {
	svc := newTestService(t, newFakeInventoryRepo(), &fakeCatalog{})
	_, err := svc.ApplyConsumption(context.Background(), nil, ConsumptionOrder{UsedBy: "order:x"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestApplyConsumptionRequiresOrderReference(t *testing.T) {
	svc := newTestService(t, newFakeInventoryRepo(), &fakeCatalog{})
	_, err := svc.ApplyConsumption(context.Background(), &gorm.DB{}, ConsumptionOrder{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRestockAddsQuantity(t *testing.T) {
	repo := newFakeInventoryRepo()
	flour := repo.addIngredient("flour", decimal.NewFromInt(50), decimal.NewFromInt(100))
	svc := newTestService(t, repo, &fakeCatalog{})

	row, err := svc.Restock(context.Background(), flour, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("Restock: %v", err)
	}
	if want := decimal.NewFromInt(550); !row.Quantity.Equal(want) {
		t.Fatalf("expected %s after restock, got %s", want, row.Quantity)
	}
}

func TestRestockRejectsNonPositiveQuantity(t *testing.T) {
	repo := newFakeInventoryRepo()
	flour := repo.addIngredient("flour", decimal.NewFromInt(50), decimal.NewFromInt(100))
	svc := newTestService(t, repo, &fakeCatalog{})

	if _, err := svc.Restock(context.Background(), flour, decimal.Zero); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Restock(context.Background(), flour, decimal.NewFromInt(-5)); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRestockUnknownIngredientNotFound(t *testing.T) {
	svc := newTestService(t, newFakeInventoryRepo(), &fakeCatalog{})
	_, err := svc.Restock(context.Background(), uuid.New(), decimal.NewFromInt(10))
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
