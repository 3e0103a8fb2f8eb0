package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/enums"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/pagination"
)

// Service persists notifications per target role and optionally relays them
// to an out-of-process transport.
type Service interface {
	Dispatcher
	ListForRole(ctx context.Context, role enums.StaffRole, unreadOnly bool, params pagination.Params) ([]models.Notification, string, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, role enums.StaffRole) (int64, error)
}

type service struct {
	repo      Repository
	publisher Publisher
	logg      *logger.Logger
}

// NewService builds the notification router. publisher may be nil when no
// external transport is configured.
func NewService(repo Repository, publisher Publisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, publisher: publisher, logg: logg}, nil
}

// Notify fans the event out as one persisted row per target role and relays
// it to the external transport when one is wired. Errors are logged, never
// returned; inventory and order correctness must not depend on delivery.
func (s *service) Notify(ctx context.Context, event Event) {
	if len(event.Roles) == 0 || event.Title == "" {
		s.logg.Warn(ctx, "dropping notification with no audience or title")
		return
	}
	if !event.Kind.IsValid() {
		event.Kind = enums.NotificationKindSystem
	}
	if !event.Priority.IsValid() {
		event.Priority = enums.NotificationPriorityMedium
	}

	rows := make([]models.Notification, 0, len(event.Roles))
	for _, role := range event.Roles {
		if !role.IsValid() {
			continue
		}
		rows = append(rows, models.Notification{
			Kind:     event.Kind,
			Priority: event.Priority,
			Role:     role,
			Title:    event.Title,
			Body:     event.Body,
			RefID:    event.RefID,
		})
	}

	if err := s.repo.CreateNotifications(ctx, rows); err != nil {
		s.logg.Error(ctx, "persisting notifications failed", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logg.Error(ctx, "publishing notification failed", err)
		}
	}
}

func (s *service) ListForRole(ctx context.Context, role enums.StaffRole, unreadOnly bool, params pagination.Params) ([]models.Notification, string, error) {
	if !role.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	rows, next, err := s.repo.ListByRole(ctx, role, unreadOnly, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return rows, next, nil
}

func (s *service) MarkRead(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	affected, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, role enums.StaffRole) (int64, error) {
	if !role.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	affected, err := s.repo.MarkAllRead(ctx, role)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return affected, nil
}
