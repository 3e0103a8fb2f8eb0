package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/internal/catalog"
	"github.com/kbenali/resto-backend/internal/inventory"
	"github.com/kbenali/resto-backend/internal/notifications"
	"github.com/kbenali/resto-backend/pkg/clock"
	"github.com/kbenali/resto-backend/pkg/config"
	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/enums"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/pagination"
	"github.com/kbenali/resto-backend/pkg/types"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeCatalog struct {
	price decimal.Decimal
}

func (f *fakeCatalog) WithTx(tx *gorm.DB) catalog.Service { return f }

func (f *fakeCatalog) ResolveRecipe(ctx context.Context, menuItemID uuid.UUID, sizeID *uuid.UUID) ([]catalog.RecipeLine, error) {
	return nil, nil
}

func (f *fakeCatalog) ResolvePrice(ctx context.Context, menuItemID uuid.UUID, sizeID *uuid.UUID) (decimal.Decimal, error) {
	return f.price, nil
}

type fakeDeduction struct {
	calls  []inventory.ConsumptionOrder
	result *inventory.ConsumptionResult
}

func (f *fakeDeduction) ApplyConsumption(ctx context.Context, tx *gorm.DB, order inventory.ConsumptionOrder) (*inventory.ConsumptionResult, error) {
	f.calls = append(f.calls, order)
	if f.result != nil {
		return f.result, nil
	}
	return &inventory.ConsumptionResult{TracesCreated: len(order.Lines)}, nil
}

type fakeNotifier struct {
	events []notifications.Event
}

func (f *fakeNotifier) Notify(ctx context.Context, event notifications.Event) {
	f.events = append(f.events, event)
}

type fakeOrderRepo struct {
	orders        map[uuid.UUID]*models.Order
	openOrder     *models.Order
	offlineOrders map[uuid.UUID]*models.OfflineOrder

	createdItems     []models.OrderItem
	updates          map[uuid.UUID]map[string]any
	offlineUpdates   map[uuid.UUID]map[string]any
	openOrderLookups []uuid.UUID
	sessionPlaced    []uuid.UUID
	sessionExpiries  []time.Time
	loyaltyAwards    map[uuid.UUID]int
	finalizedTables  []uuid.UUID
	lockErr          error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:         map[uuid.UUID]*models.Order{},
		offlineOrders:  map[uuid.UUID]*models.OfflineOrder{},
		updates:        map[uuid.UUID]map[string]any{},
		offlineUpdates: map[uuid.UUID]map[string]any{},
		loyaltyAwards:  map[uuid.UUID]int{},
	}
}

func (f *fakeOrderRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeOrderRepo) LockTable(ctx context.Context, tableID uuid.UUID) error { return f.lockErr }

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrderRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	f.createdItems = append(f.createdItems, items...)
	return nil
}

func (f *fakeOrderRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) FindOpenTableOrder(ctx context.Context, tableID uuid.UUID) (*models.Order, error) {
	f.openOrderLookups = append(f.openOrderLookups, tableID)
	if f.openOrder == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.openOrder, nil
}

func (f *fakeOrderRepo) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	f.updates[id] = updates
	if order, ok := f.orders[id]; ok {
		if status, ok := updates["status"].(enums.OrderStatus); ok {
			order.Status = status
		}
	}
	return nil
}

func (f *fakeOrderRepo) MarkSessionOrderPlaced(ctx context.Context, sessionID uuid.UUID, now, expiresAt time.Time) error {
	f.sessionPlaced = append(f.sessionPlaced, sessionID)
	f.sessionExpiries = append(f.sessionExpiries, expiresAt)
	return nil
}

func (f *fakeOrderRepo) ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, string, error) {
	return nil, "", nil
}

func (f *fakeOrderRepo) FinalizeOpenOrdersForTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	f.finalizedTables = append(f.finalizedTables, tableID)
	return 2, nil
}

func (f *fakeOrderRepo) CreateOfflineOrder(ctx context.Context, order *models.OfflineOrder) (*models.OfflineOrder, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	f.offlineOrders[order.ID] = order
	return order, nil
}

func (f *fakeOrderRepo) CreateOfflineOrderItems(ctx context.Context, items []models.OfflineOrderItem) error {
	return nil
}

func (f *fakeOrderRepo) FindOfflineOrder(ctx context.Context, id uuid.UUID) (*models.OfflineOrder, error) {
	order, ok := f.offlineOrders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) UpdateOfflineOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	f.offlineUpdates[id] = updates
	return nil
}

func (f *fakeOrderRepo) ListOfflineOrders(ctx context.Context, params pagination.Params) ([]models.OfflineOrder, string, error) {
	return nil, "", nil
}

func (f *fakeOrderRepo) AddLoyaltyPoints(ctx context.Context, customerID uuid.UUID, points int) error {
	f.loyaltyAwards[customerID] += points
	return nil
}

var testNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo *fakeOrderRepo, deduction *fakeDeduction, notifier *fakeNotifier) Service {
	t.Helper()
	svc, err := NewService(
		repo,
		&fakeCatalog{price: decimal.NewFromInt(10)},
		deduction,
		notifier,
		fakeTxRunner{},
		clock.Fixed(testNow),
		config.SessionConfig{TTL: time.Hour},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		nil,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func testSession() *models.TableSession {
	return &models.TableSession{
		ID:      uuid.New(),
		TableID: uuid.New(),
		Token:   "token",
	}
}

func TestPlaceSessionOrderCreatesDineInOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, &fakeDeduction{}, notifier)
	session := testSession()

	order, err := svc.PlaceSessionOrder(context.Background(), session, PlaceSessionOrderInput{
		Items: []ItemInput{{MenuItemID: uuid.New(), Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("PlaceSessionOrder: %v", err)
	}

	if order.OrderType != enums.OrderTypeDineIn {
		t.Fatalf("expected dine_in, got %s", order.OrderType)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected Pending, got %s", order.Status)
	}
	if want := decimal.NewFromInt(30); !order.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, order.Total)
	}
	if order.SessionID == nil || *order.SessionID != session.ID {
		t.Fatal("order not linked to session")
	}
	if len(repo.sessionPlaced) != 1 || repo.sessionPlaced[0] != session.ID {
		t.Fatal("session order_placed flag not set")
	}
	if len(repo.sessionExpiries) != 1 || !repo.sessionExpiries[0].Equal(testNow.Add(time.Hour)) {
		t.Fatal("placing an order must extend the session's validity window")
	}
	if len(notifier.events) != 2 {
		t.Fatalf("expected staff and kitchen notifications, got %+v", notifier.events)
	}
	staff := notifier.events[0]
	if staff.Priority != enums.NotificationPriorityCritical {
		t.Fatalf("staff alert must be critical, got %s", staff.Priority)
	}
	if len(staff.Roles) != 2 || staff.Roles[0] != enums.StaffRoleCashier || staff.Roles[1] != enums.StaffRoleAdmin {
		t.Fatalf("staff alert must reach cashier and admin, got %v", staff.Roles)
	}
	kitchen := notifier.events[1]
	if len(kitchen.Roles) != 1 || kitchen.Roles[0] != enums.StaffRoleChef {
		t.Fatalf("kitchen must hear about the order, got %v", kitchen.Roles)
	}
	if kitchen.Priority != enums.NotificationPriorityMedium {
		t.Fatalf("kitchen heads-up is medium priority, got %s", kitchen.Priority)
	}
}

func TestPlaceSessionOrderMergesIntoOpenOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	existing := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        "ORD-EXISTING",
		OrderType:          enums.OrderTypeDineIn,
		Status:             enums.OrderStatusReady,
		Total:              decimal.NewFromInt(50),
		Notes:              "no onions",
		IsConfirmedCashier: true,
	}
	repo.orders[existing.ID] = existing
	repo.openOrder = existing
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, &fakeDeduction{}, notifier)
	session := testSession()

	_, err := svc.PlaceSessionOrder(context.Background(), session, PlaceSessionOrderInput{
		Items: []ItemInput{{MenuItemID: uuid.New(), Quantity: 2}},
		Notes: "extra fries",
	})
	if err != nil {
		t.Fatalf("PlaceSessionOrder: %v", err)
	}

	if len(repo.openOrderLookups) != 1 || repo.openOrderLookups[0] != session.TableID {
		t.Fatal("merge target lookup must be keyed by the table")
	}
	updates := repo.updates[existing.ID]
	if updates == nil {
		t.Fatal("expected merge update")
	}
	if updates["status"] != enums.OrderStatusPending {
		t.Fatalf("merge must reset status to Pending, got %v", updates["status"])
	}
	if updates["is_confirmed_cashier"] != false {
		t.Fatal("merge must clear cashier confirmation")
	}
	if want := decimal.NewFromInt(70); !updates["total"].(decimal.Decimal).Equal(want) {
		t.Fatalf("expected merged total %s, got %v", want, updates["total"])
	}
	if got := updates["notes"]; got != "no onions\n[Update]: extra fries" {
		t.Fatalf("merge must append to prior notes, got %v", got)
	}
	for _, item := range repo.createdItems {
		if item.OrderID != existing.ID {
			t.Fatal("appended items must target the existing order")
		}
	}
}

func TestPlaceSessionOrderRejectsEmptyItems(t *testing.T) {
	svc := newTestService(t, newFakeOrderRepo(), &fakeDeduction{}, &fakeNotifier{})
	_, err := svc.PlaceSessionOrder(context.Background(), testSession(), PlaceSessionOrderInput{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderRejectsDineInWithoutSession(t *testing.T) {
	svc := newTestService(t, newFakeOrderRepo(), &fakeDeduction{}, &fakeNotifier{})
	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		OrderType: enums.OrderTypeDineIn,
		Items:     []ItemInput{{MenuItemID: uuid.New(), Quantity: 1}},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderRequiresDeliveryAddress(t *testing.T) {
	svc := newTestService(t, newFakeOrderRepo(), &fakeDeduction{}, &fakeNotifier{})
	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		OrderType: enums.OrderTypeDelivery,
		Items:     []ItemInput{{MenuItemID: uuid.New(), Quantity: 1}},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatusReadyTriggersDeduction(t *testing.T) {
	repo := newFakeOrderRepo()
	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        "ORD-1",
		Status:             enums.OrderStatusPreparing,
		IsConfirmedCashier: true,
		Items: []models.OrderItem{
			{MenuItemID: uuid.New(), Quantity: 2},
			{MenuItemID: uuid.New(), Quantity: 1},
		},
	}
	repo.orders[order.ID] = order
	deduction := &fakeDeduction{}
	svc := newTestService(t, repo, deduction, &fakeNotifier{})
	chef := types.Actor{UserID: uuid.New(), Role: enums.StaffRoleChef}

	updated, err := svc.UpdateStatus(context.Background(), chef, order.ID, enums.OrderStatusReady)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != enums.OrderStatusReady {
		t.Fatalf("expected Ready, got %s", updated.Status)
	}
	if len(deduction.calls) != 1 {
		t.Fatalf("expected one deduction call, got %d", len(deduction.calls))
	}
	call := deduction.calls[0]
	if call.UsedBy != UsedByOnline(order.ID) {
		t.Fatalf("unexpected trace key %q", call.UsedBy)
	}
	if call.ActorID == nil || *call.ActorID != chef.UserID {
		t.Fatal("deduction must carry the acting user")
	}
	if len(call.Lines) != 2 {
		t.Fatalf("expected 2 consumption lines, got %d", len(call.Lines))
	}
}

func TestUpdateStatusSameTargetIsNoOp(t *testing.T) {
	repo := newFakeOrderRepo()
	order := &models.Order{
		ID:                 uuid.New(),
		Status:             enums.OrderStatusReady,
		IsConfirmedCashier: true,
	}
	repo.orders[order.ID] = order
	deduction := &fakeDeduction{}
	svc := newTestService(t, repo, deduction, &fakeNotifier{})

	_, err := svc.UpdateStatus(context.Background(), types.Actor{UserID: uuid.New(), Role: enums.StaffRoleChef}, order.ID, enums.OrderStatusReady)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if len(deduction.calls) != 0 {
		t.Fatal("retried transition must not fire deduction again")
	}
	if len(repo.updates) != 0 {
		t.Fatal("same-status write must not touch the row")
	}
}

func TestUpdateStatusChefBlockedBeforeConfirmation(t *testing.T) {
	repo := newFakeOrderRepo()
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPending}
	repo.orders[order.ID] = order
	svc := newTestService(t, repo, &fakeDeduction{}, &fakeNotifier{})

	_, err := svc.UpdateStatus(context.Background(), types.Actor{UserID: uuid.New(), Role: enums.StaffRoleChef}, order.ID, enums.OrderStatusPreparing)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestConfirmMovesPendingToConfirmed(t *testing.T) {
	repo := newFakeOrderRepo()
	order := &models.Order{ID: uuid.New(), OrderNumber: "ORD-2", Status: enums.OrderStatusPending}
	repo.orders[order.ID] = order
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, &fakeDeduction{}, notifier)

	confirmed, err := svc.Confirm(context.Background(), types.Actor{UserID: uuid.New(), Role: enums.StaffRoleCashier}, order.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !confirmed.IsConfirmedCashier {
		t.Fatal("expected cashier confirmation flag")
	}
	if confirmed.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected Confirmed, got %s", confirmed.Status)
	}
	if len(notifier.events) != 1 || notifier.events[0].Roles[0] != enums.StaffRoleChef {
		t.Fatal("confirmation must notify the kitchen")
	}
}

func TestConfirmRejectsChef(t *testing.T) {
	svc := newTestService(t, newFakeOrderRepo(), &fakeDeduction{}, &fakeNotifier{})
	_, err := svc.Confirm(context.Background(), types.Actor{UserID: uuid.New(), Role: enums.StaffRoleChef}, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateOfflineStatusAwardsLoyaltyOnDelivery(t *testing.T) {
	repo := newFakeOrderRepo()
	customerID := uuid.New()
	order := &models.OfflineOrder{
		ID:         uuid.New(),
		Status:     enums.OrderStatusReady,
		CustomerID: &customerID,
		Total:      decimal.NewFromFloat(42.75),
	}
	repo.offlineOrders[order.ID] = order
	deduction := &fakeDeduction{}
	svc := newTestService(t, repo, deduction, &fakeNotifier{})

	_, err := svc.UpdateOfflineStatus(context.Background(), types.Actor{UserID: uuid.New(), Role: enums.StaffRoleChef}, order.ID, enums.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("UpdateOfflineStatus: %v", err)
	}
	if repo.loyaltyAwards[customerID] != 42 {
		t.Fatalf("expected 42 points, got %d", repo.loyaltyAwards[customerID])
	}
}

func TestUpdateOfflineStatusReadyDeductsWithOfflineKey(t *testing.T) {
	repo := newFakeOrderRepo()
	order := &models.OfflineOrder{
		ID:     uuid.New(),
		Status: enums.OrderStatusPreparing,
		Items:  []models.OfflineOrderItem{{MenuItemID: uuid.New(), Quantity: 1}},
	}
	repo.offlineOrders[order.ID] = order
	deduction := &fakeDeduction{}
	svc := newTestService(t, repo, deduction, &fakeNotifier{})

	_, err := svc.UpdateOfflineStatus(context.Background(), types.Actor{UserID: uuid.New(), Role: enums.StaffRoleChef}, order.ID, enums.OrderStatusReady)
	if err != nil {
		t.Fatalf("UpdateOfflineStatus: %v", err)
	}
	if len(deduction.calls) != 1 {
		t.Fatalf("expected one deduction call, got %d", len(deduction.calls))
	}
	if deduction.calls[0].UsedBy != UsedByOffline(order.ID) {
		t.Fatalf("unexpected trace key %q", deduction.calls[0].UsedBy)
	}
}

func TestDeliveredNotifiesAdmin(t *testing.T) {
	repo := newFakeOrderRepo()
	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        "ORD-4",
		Status:             enums.OrderStatusReady,
		IsConfirmedCashier: true,
	}
	repo.orders[order.ID] = order
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, &fakeDeduction{}, notifier)

	_, err := svc.UpdateStatus(context.Background(), types.Actor{UserID: uuid.New(), Role: enums.StaffRoleChef}, order.ID, enums.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected one notification, got %+v", notifier.events)
	}
	event := notifier.events[0]
	if len(event.Roles) != 1 || event.Roles[0] != enums.StaffRoleAdmin {
		t.Fatalf("delivery completion goes to admins, got %v", event.Roles)
	}
}

func TestLowStockAlertsAdminAndChef(t *testing.T) {
	repo := newFakeOrderRepo()
	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        "ORD-3",
		Status:             enums.OrderStatusPreparing,
		IsConfirmedCashier: true,
		Items:              []models.OrderItem{{MenuItemID: uuid.New(), Quantity: 1}},
	}
	repo.orders[order.ID] = order
	deduction := &fakeDeduction{
		result: &inventory.ConsumptionResult{
			TracesCreated: 1,
			LowStock: []models.IngredientWithStock{
				{Ingredient: models.Ingredient{ID: uuid.New(), Name: "flour", Unit: "g"}, Quantity: decimal.NewFromInt(5)},
			},
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, deduction, notifier)

	_, err := svc.UpdateStatus(context.Background(), types.Actor{UserID: uuid.New(), Role: enums.StaffRoleChef}, order.ID, enums.OrderStatusReady)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	foundStockAlert := false
	for _, event := range notifier.events {
		if event.Kind == enums.NotificationKindStock {
			foundStockAlert = true
			if event.Priority != enums.NotificationPriorityCritical {
				t.Fatalf("low stock alerts are critical, got %s", event.Priority)
			}
			if len(event.Roles) != 2 || event.Roles[0] != enums.StaffRoleAdmin || event.Roles[1] != enums.StaffRoleChef {
				t.Fatalf("low stock alerts go to admin and chef, got %v", event.Roles)
			}
		}
	}
	if !foundStockAlert {
		t.Fatal("expected a low stock notification")
	}
}
