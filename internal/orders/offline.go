package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/internal/inventory"
	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/enums"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
	"github.com/kbenali/resto-backend/pkg/pagination"
	"github.com/kbenali/resto-backend/pkg/types"
)

func (s *service) CreateOfflineOrder(ctx context.Context, actor types.Actor, input CreateOfflineOrderInput) (*models.OfflineOrder, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.StaffRoleCashier && actor.Role != enums.StaffRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only cashiers create counter orders")
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}
	if input.Discount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}

	var order *models.OfflineOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cat := s.catalog.WithTx(tx)

		items, total, err := s.priceItems(ctx, cat, input.Items)
		if err != nil {
			return err
		}
		total = total.Sub(input.Discount)
		if total.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds order total")
		}

		created := &models.OfflineOrder{
			OrderNumber: newOrderNumber("OFF"),
			Status:      enums.OrderStatusPending,
			CashierID:   actor.UserID,
			CustomerID:  input.CustomerID,
			Total:       total,
			Discount:    input.Discount,
		}
		if _, err := repo.CreateOfflineOrder(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offline order")
		}

		offlineItems := make([]models.OfflineOrderItem, 0, len(items))
		for _, item := range items {
			offlineItems = append(offlineItems, models.OfflineOrderItem{
				OrderID:    created.ID,
				MenuItemID: item.MenuItemID,
				SizeID:     item.SizeID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
			})
		}
		if err := repo.CreateOfflineOrderItems(ctx, offlineItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offline order items")
		}
		created.Items = offlineItems
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "counter order created")
	return order, nil
}

func (s *service) UpdateOfflineStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.OfflineOrder, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var order *models.OfflineOrder
	var consumption *inventory.ConsumptionResult
	transitioned := false

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindOfflineOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offline order")
		}
		order = loaded

		if order.Status == target {
			return nil
		}

		// Counter orders are keyed in by the cashier, so they count as
		// confirmed for kitchen gating purposes.
		if err := canTransition(actor.Role, order.Status, target, true); err != nil {
			return err
		}

		if err := repo.UpdateOfflineOrder(ctx, order.ID, map[string]any{"status": target}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offline order status")
		}
		order.Status = target
		transitioned = true

		if target == enums.OrderStatusReady {
			actorID := actor.UserID
			consumption, err = s.inventory.ApplyConsumption(ctx, tx, inventory.ConsumptionOrder{
				UsedBy:  UsedByOffline(order.ID),
				ActorID: &actorID,
				Lines:   offlineConsumptionLines(order.Items),
			})
			if err != nil {
				return err
			}
		}

		if target == enums.OrderStatusDelivered && order.CustomerID != nil {
			points := int(order.Total.IntPart())
			if points > 0 {
				if err := repo.AddLoyaltyPoints(ctx, *order.CustomerID, points); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "award loyalty points")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		lctx := s.logg.WithActor(s.logg.WithOrderID(ctx, order.ID.String()), actor.UserID.String(), actor.Role.String())
		s.logg.Info(s.logg.WithField(lctx, "status", target.String()), "counter order status changed")
		s.notifyStatus(ctx, order.OrderNumber, order.ID, target)
		s.notifyLowStock(ctx, consumption)
	}
	return order, nil
}

func offlineConsumptionLines(items []models.OfflineOrderItem) []inventory.ConsumptionLine {
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

func (s *service) GetOfflineOrder(ctx context.Context, id uuid.UUID) (*models.OfflineOrder, error) {
	order, err := s.repo.FindOfflineOrder(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offline order")
	}
	return order, nil
}

func (s *service) ListOfflineOrders(ctx context.Context, params pagination.Params) ([]models.OfflineOrder, string, error) {
	rows, next, err := s.repo.ListOfflineOrders(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offline orders")
	}
	return rows, next, nil
}
