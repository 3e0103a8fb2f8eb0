package orders

import (
	"fmt"

	"github.com/kbenali/resto-backend/pkg/enums"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
)

// kitchenPath is the only forward movement kitchen staff may drive, and only
// on orders the cashier has confirmed.
var kitchenPath = map[enums.OrderStatus]map[enums.OrderStatus]bool{
	enums.OrderStatusPending:   {enums.OrderStatusPreparing: true},
	enums.OrderStatusConfirmed: {enums.OrderStatusPreparing: true},
	enums.OrderStatusPreparing: {enums.OrderStatusReady: true},
	enums.OrderStatusReady:     {enums.OrderStatusDelivered: true},
}

// canTransition decides whether the actor role may move an order between the
// two statuses. Same-status writes are handled by the caller before this
// check; terminal states are never left except by admins.
func canTransition(role enums.StaffRole, from, to enums.OrderStatus, cashierConfirmed bool) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target status %q", to))
	}

	if role == enums.StaffRoleAdmin {
		return nil
	}

	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in terminal status %s cannot change", from))
	}

	switch role {
	case enums.StaffRoleCashier:
		if to == enums.OrderStatusConfirmed && from == enums.OrderStatusPending {
			return nil
		}
		if to == enums.OrderStatusCancelled {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cashier may not move order from %s to %s", from, to))

	case enums.StaffRoleChef:
		if !cashierConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				"order awaits cashier confirmation")
		}
		if kitchenPath[from][to] {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("kitchen may not move order from %s to %s", from, to))

	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role may not change order status")
	}
}
