package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/kbenali/resto-backend/pkg/enums"
)

// Event is a fully-formed fan-out request from an engine. Delivery is
// fire-and-forget; failures are logged and never propagate back into the
// caller's transaction.
type Event struct {
	Kind     enums.NotificationKind     `json:"kind"`
	Priority enums.NotificationPriority `json:"priority"`
	Roles    []enums.StaffRole          `json:"roles"`
	Title    string                     `json:"title"`
	Body     string                     `json:"body"`
	RefID    *uuid.UUID                 `json:"ref_id,omitempty"`
}

// Dispatcher is the outbound notification port the engines call.
type Dispatcher interface {
	Notify(ctx context.Context, event Event)
}

// Publisher pushes events to an out-of-process transport. Optional; in-app
// persistence happens regardless.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
