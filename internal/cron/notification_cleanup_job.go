package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/kbenali/resto-backend/pkg/clock"
	"github.com/kbenali/resto-backend/pkg/logger"
)

const notificationRetentionDays = 30

// NotificationCleanupJobParams configure the read-notification purge.
type NotificationCleanupJobParams struct {
	Logger *logger.Logger
	Repo   notificationCleanupRepo
	Clock  clock.Clock
}

type notificationCleanupRepo interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob builds the job that purges read notifications
// older than the retention window. Unread rows are kept regardless of age.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &notificationCleanupJob{
		logg:  params.Logger,
		repo:  params.Repo,
		clock: clk,
	}, nil
}

type notificationCleanupJob struct {
	logg  *logger.Logger
	repo  notificationCleanupRepo
	clock clock.Clock
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.clock.Now().AddDate(0, 0, -notificationRetentionDays)
	deleted, err := j.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete read notifications: %w", err)
	}
	if deleted > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{"deleted": deleted}), "notification cleanup finished")
	}
	return nil
}
