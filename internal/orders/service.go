package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/internal/catalog"
	"github.com/kbenali/resto-backend/internal/inventory"
	"github.com/kbenali/resto-backend/internal/notifications"
	"github.com/kbenali/resto-backend/pkg/clock"
	"github.com/kbenali/resto-backend/pkg/config"
	"github.com/kbenali/resto-backend/pkg/db"
	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/enums"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/metrics"
	"github.com/kbenali/resto-backend/pkg/pagination"
	"github.com/kbenali/resto-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// deductionEngine is the slice of the inventory service the state machine
// invokes on the Ready edge.
type deductionEngine interface {
	ApplyConsumption(ctx context.Context, tx *gorm.DB, order inventory.ConsumptionOrder) (*inventory.ConsumptionResult, error)
}

// Service owns order submission, aggregation and the status state machine
// for both online and counter orders.
type Service interface {
	PlaceSessionOrder(ctx context.Context, session *models.TableSession, input PlaceSessionOrderInput) (*models.Order, error)
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	Confirm(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*models.Order, error)
	Decline(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, string, error)

	CreateOfflineOrder(ctx context.Context, actor types.Actor, input CreateOfflineOrderInput) (*models.OfflineOrder, error)
	UpdateOfflineStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.OfflineOrder, error)
	GetOfflineOrder(ctx context.Context, id uuid.UUID) (*models.OfflineOrder, error)
	ListOfflineOrders(ctx context.Context, params pagination.Params) ([]models.OfflineOrder, string, error)

	// FinalizeOpenOrdersForTable settles every open order on the table as
	// served; invoked by the lock manager when staff end a session.
	FinalizeOpenOrdersForTable(ctx context.Context, tx *gorm.DB, tableID uuid.UUID) (int, error)
}

type service struct {
	repo      Repository
	catalog   catalog.Service
	inventory deductionEngine
	notifier  notifications.Dispatcher
	tx        txRunner
	clock     clock.Clock
	cfg       config.SessionConfig
	logg      *logger.Logger
	metrics   *metrics.EngineMetrics
}

// NewService builds the orders service with the required dependencies.
func NewService(repo Repository, catalogSvc catalog.Service, inv deductionEngine, notifier notifications.Dispatcher, tx txRunner, clk clock.Clock, cfg config.SessionConfig, logg *logger.Logger, m *metrics.EngineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory engine required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		catalog:   catalogSvc,
		inventory: inv,
		notifier:  notifier,
		tx:        tx,
		clock:     clk,
		cfg:       cfg,
		logg:      logg,
		metrics:   m,
	}, nil
}

// UsedByOnline is the audit trace key for an online order's deduction.
func UsedByOnline(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

// UsedByOffline is the audit trace key for a counter sale's deduction.
func UsedByOffline(orderID uuid.UUID) string {
	return "offline:" + orderID.String()
}

func newOrderNumber(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]))
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	for _, item := range items {
		if item.MenuItemID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}
	return nil
}

// priceItems freezes each line's unit price at order time so later catalog
// edits cannot rewrite historical orders.
func (s *service) priceItems(ctx context.Context, cat catalog.Service, inputs []ItemInput) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	total := decimal.Zero
	for _, in := range inputs {
		price, err := cat.ResolvePrice(ctx, in.MenuItemID, in.SizeID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		item := models.OrderItem{
			MenuItemID: in.MenuItemID,
			SizeID:     in.SizeID,
			Quantity:   in.Quantity,
			UnitPrice:  price,
			Notes:      in.Notes,
		}
		items = append(items, item)
		total = total.Add(item.LineTotal())
	}
	return items, total, nil
}

func (s *service) PlaceSessionOrder(ctx context.Context, session *models.TableSession, input PlaceSessionOrderInput) (*models.Order, error) {
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required")
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}

	var order *models.Order
	var merged bool

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cat := s.catalog.WithTx(tx)

		if err := repo.LockTable(ctx, session.TableID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "table not found")
			}
			if db.IsLockNotAvailable(err) {
				return pkgerrors.New(pkgerrors.CodeLockBusy, "table is busy, retry shortly")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock table")
		}

		items, addedTotal, err := s.priceItems(ctx, cat, input.Items)
		if err != nil {
			return err
		}

		existing, err := repo.FindOpenTableOrder(ctx, session.TableID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open order")
		}

		if existing != nil {
			// Merge: append lines and push the order back to triage. The
			// cashier flag resets so the kitchen never starts the new items
			// unconfirmed. Prior items and their traces stay untouched.
			for i := range items {
				items[i].OrderID = existing.ID
			}
			if err := repo.CreateOrderItems(ctx, items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order items")
			}
			updates := map[string]any{
				"total":                existing.Total.Add(addedTotal),
				"status":               enums.OrderStatusPending,
				"is_confirmed_cashier": false,
			}
			if input.Notes != "" {
				// Earlier submissions' notes stay visible to the cashier.
				notes := input.Notes
				if existing.Notes != "" {
					notes = existing.Notes + "\n[Update]: " + input.Notes
				}
				updates["notes"] = notes
			}
			if err := repo.UpdateOrder(ctx, existing.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge order")
			}
			merged = true
			order, err = repo.FindOrder(ctx, existing.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
		} else {
			tableID := session.TableID
			sessionID := session.ID
			created := &models.Order{
				OrderNumber: newOrderNumber("ORD"),
				OrderType:   enums.OrderTypeDineIn,
				Status:      enums.OrderStatusPending,
				TableID:     &tableID,
				SessionID:   &sessionID,
				Notes:       input.Notes,
				Total:       addedTotal,
			}
			if _, err := repo.CreateOrder(ctx, created); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}
			for i := range items {
				items[i].OrderID = created.ID
			}
			if err := repo.CreateOrderItems(ctx, items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
			}
			created.Items = items
			order = created
		}

		// Ordering proves the customer is still there; keep the occupancy
		// window open instead of letting it lapse mid-meal.
		now := s.clock.Now()
		return repo.MarkSessionOrderPlaced(ctx, session.ID, now, now.Add(s.cfg.TTL))
	})
	if err != nil {
		return nil, err
	}

	title := "New dine-in order"
	chefBody := fmt.Sprintf("Order %s incoming once confirmed", order.OrderNumber)
	if merged {
		title = "Dine-in order updated"
		chefBody = fmt.Sprintf("Order %s has new items pending confirmation", order.OrderNumber)
	}
	orderID := order.ID
	s.notifier.Notify(ctx, notifications.Event{
		Kind:     enums.NotificationKindOrder,
		Priority: enums.NotificationPriorityCritical,
		Roles:    []enums.StaffRole{enums.StaffRoleCashier, enums.StaffRoleAdmin},
		Title:    title,
		Body:     fmt.Sprintf("Order %s awaits confirmation, total %s", order.OrderNumber, order.Total),
		RefID:    &orderID,
	})
	s.notifier.Notify(ctx, notifications.Event{
		Kind:     enums.NotificationKindOrder,
		Priority: enums.NotificationPriorityMedium,
		Roles:    []enums.StaffRole{enums.StaffRoleChef},
		Title:    title,
		Body:     chefBody,
		RefID:    &orderID,
	})

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "dine-in order placed")
	return order, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if !input.OrderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}
	if input.OrderType == enums.OrderTypeDineIn {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dine-in orders require a table session")
	}
	if input.OrderType == enums.OrderTypeDelivery && input.DeliveryAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cat := s.catalog.WithTx(tx)

		items, total, err := s.priceItems(ctx, cat, input.Items)
		if err != nil {
			return err
		}

		created := &models.Order{
			OrderNumber:     newOrderNumber("ORD"),
			OrderType:       input.OrderType,
			Status:          enums.OrderStatusPending,
			CustomerName:    input.CustomerName,
			CustomerPhone:   input.CustomerPhone,
			DeliveryAddress: input.DeliveryAddress,
			Notes:           input.Notes,
			Total:           total,
		}
		if _, err := repo.CreateOrder(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range items {
			items[i].OrderID = created.ID
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		created.Items = items
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	orderID := order.ID
	s.notifier.Notify(ctx, notifications.Event{
		Kind:     enums.NotificationKindOrder,
		Priority: enums.NotificationPriorityMedium,
		Roles:    []enums.StaffRole{enums.StaffRoleCashier},
		Title:    "New online order",
		Body:     fmt.Sprintf("Order %s awaits confirmation", order.OrderNumber),
		RefID:    &orderID,
	})
	s.notifier.Notify(ctx, notifications.Event{
		Kind:     enums.NotificationKindOrder,
		Priority: enums.NotificationPriorityMedium,
		Roles:    []enums.StaffRole{enums.StaffRoleChef},
		Title:    "New online order",
		Body:     fmt.Sprintf("New %s order %s", order.OrderType, order.OrderNumber),
		RefID:    &orderID,
	})
	return order, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var order *models.Order
	var consumption *inventory.ConsumptionResult
	transitioned := false

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		order = loaded

		// Same-value writes are idempotent no-ops; the Ready edge in
		// particular must not fire twice just because a client retried.
		if order.Status == target {
			return nil
		}

		if err := canTransition(actor.Role, order.Status, target, order.IsConfirmedCashier); err != nil {
			return err
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": target}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = target
		transitioned = true

		if target == enums.OrderStatusReady {
			actorID := actor.UserID
			consumption, err = s.inventory.ApplyConsumption(ctx, tx, inventory.ConsumptionOrder{
				UsedBy:  UsedByOnline(order.ID),
				ActorID: &actorID,
				Lines:   consumptionLines(order.Items),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		lctx := s.logg.WithActor(s.logg.WithOrderID(ctx, order.ID.String()), actor.UserID.String(), actor.Role.String())
		s.logg.Info(s.logg.WithField(lctx, "status", target.String()), "order status changed")
		s.notifyStatus(ctx, order.OrderNumber, order.ID, target)
		s.notifyLowStock(ctx, consumption)
	}
	return order, nil
}

func consumptionLines(items []models.OrderItem) []inventory.ConsumptionLine {
	lines := make([]inventory.ConsumptionLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.ConsumptionLine{
			MenuItemID: item.MenuItemID,
			SizeID:     item.SizeID,
			Quantity:   item.Quantity,
		})
	}
	return lines
}

func (s *service) notifyStatus(ctx context.Context, orderNumber string, orderID uuid.UUID, status enums.OrderStatus) {
	var event notifications.Event
	switch status {
	case enums.OrderStatusReady:
		event = notifications.Event{
			Kind:     enums.NotificationKindOrder,
			Priority: enums.NotificationPriorityMedium,
			Roles:    []enums.StaffRole{enums.StaffRoleCashier},
			Title:    "Order ready",
			Body:     fmt.Sprintf("Order %s is ready for handoff", orderNumber),
		}
	case enums.OrderStatusDelivered:
		event = notifications.Event{
			Kind:     enums.NotificationKindOrder,
			Priority: enums.NotificationPriorityMedium,
			Roles:    []enums.StaffRole{enums.StaffRoleAdmin},
			Title:    "Order delivered",
			Body:     fmt.Sprintf("Order %s has been delivered", orderNumber),
		}
	case enums.OrderStatusCancelled:
		event = notifications.Event{
			Kind:     enums.NotificationKindOrder,
			Priority: enums.NotificationPriorityLow,
			Roles:    []enums.StaffRole{enums.StaffRoleChef},
			Title:    "Order cancelled",
			Body:     fmt.Sprintf("Order %s was cancelled", orderNumber),
		}
	default:
		return
	}
	event.RefID = &orderID
	s.notifier.Notify(ctx, event)
}

func (s *service) notifyLowStock(ctx context.Context, consumption *inventory.ConsumptionResult) {
	if consumption == nil {
		return
	}
	for _, row := range consumption.LowStock {
		ingredientID := row.ID
		s.notifier.Notify(ctx, notifications.Event{
			Kind:     enums.NotificationKindStock,
			Priority: enums.NotificationPriorityCritical,
			Roles:    []enums.StaffRole{enums.StaffRoleAdmin, enums.StaffRoleChef},
			Title:    "Low stock",
			Body:     fmt.Sprintf("%s is at %s %s (reorder at %s)", row.Name, row.Quantity, row.Unit, row.ReorderLevel),
			RefID:    &ingredientID,
		})
	}
}

func (s *service) Confirm(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*models.Order, error) {
	if actor.Role != enums.StaffRoleCashier && actor.Role != enums.StaffRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only cashiers confirm orders")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		order = loaded

		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already settled")
		}
		if order.IsConfirmedCashier {
			return nil
		}

		updates := map[string]any{"is_confirmed_cashier": true}
		if order.Status == enums.OrderStatusPending {
			updates["status"] = enums.OrderStatusConfirmed
			order.Status = enums.OrderStatusConfirmed
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		order.IsConfirmedCashier = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	refID := order.ID
	s.notifier.Notify(ctx, notifications.Event{
		Kind:     enums.NotificationKindOrder,
		Priority: enums.NotificationPriorityMedium,
		Roles:    []enums.StaffRole{enums.StaffRoleChef},
		Title:    "Order confirmed",
		Body:     fmt.Sprintf("Order %s is queued for the kitchen", order.OrderNumber),
		RefID:    &refID,
	})
	return order, nil
}

func (s *service) Decline(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.UpdateStatus(ctx, actor, orderID, enums.OrderStatusCancelled)
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, string, error) {
	rows, next, err := s.repo.ListOrders(ctx, params, filters)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, next, nil
}

func (s *service) FinalizeOpenOrdersForTable(ctx context.Context, tx *gorm.DB, tableID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for finalization")
	}
	affected, err := s.repo.WithTx(tx).FinalizeOpenOrdersForTable(ctx, tableID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize open orders")
	}
	return int(affected), nil
}
