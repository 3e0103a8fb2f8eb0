package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/kbenali/resto-backend/pkg/clock"
	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/metrics"
)

const staleSessionBatchSize = 200

// StaleSessionReportJobParams configure the stale session reporter.
type StaleSessionReportJobParams struct {
	Logger  *logger.Logger
	Repo    staleSessionRepo
	Clock   clock.Clock
	Metrics *metrics.EngineMetrics
}

type staleSessionRepo interface {
	ListExpiredActiveSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.TableSession, error)
}

// NewStaleSessionReportJob builds the job that surfaces tables whose occupant
// session expired without staff ending it. The job is strictly read only:
// expiry never releases a table or deactivates its session, so all it does is
// publish the count for dashboards and log which tables need staff attention.
func NewStaleSessionReportJob(params StaleSessionReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("tables repository required")
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &staleSessionReportJob{
		logg:    params.Logger,
		repo:    params.Repo,
		clock:   clk,
		metrics: params.Metrics,
	}, nil
}

type staleSessionReportJob struct {
	logg    *logger.Logger
	repo    staleSessionRepo
	clock   clock.Clock
	metrics *metrics.EngineMetrics
}

func (j *staleSessionReportJob) Name() string { return "stale-session-report" }

func (j *staleSessionReportJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	sessions, err := j.repo.ListExpiredActiveSessions(ctx, now, staleSessionBatchSize)
	if err != nil {
		return fmt.Errorf("list expired sessions: %w", err)
	}

	j.metrics.SetStaleSessions(len(sessions))
	if len(sessions) == 0 {
		return nil
	}

	tableIDs := make([]string, 0, len(sessions))
	for _, session := range sessions {
		tableIDs = append(tableIDs, session.TableID.String())
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"stale":  len(sessions),
		"tables": tableIDs,
	}), "occupied tables with expired sessions, staff should end them")
	return nil
}
