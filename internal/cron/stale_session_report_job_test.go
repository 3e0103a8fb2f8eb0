package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kbenali/resto-backend/pkg/clock"
	"github.com/kbenali/resto-backend/pkg/db/models"
	"github.com/kbenali/resto-backend/pkg/logger"
)

type fakeStaleSessionRepo struct {
	expired []models.TableSession
	listErr error
	limits  []int
}

func (f *fakeStaleSessionRepo) ListExpiredActiveSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.TableSession, error) {
	f.limits = append(f.limits, limit)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.expired, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newReportJob(t *testing.T, repo *fakeStaleSessionRepo) Job {
	t.Helper()
	job, err := NewStaleSessionReportJob(StaleSessionReportJobParams{
		Logger: testLogger(),
		Repo:   repo,
		Clock:  clock.Fixed(time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewStaleSessionReportJob: %v", err)
	}
	return job
}

func TestStaleSessionReportIsReadOnly(t *testing.T) {
	repo := &fakeStaleSessionRepo{expired: []models.TableSession{
		{ID: uuid.New(), TableID: uuid.New()},
		{ID: uuid.New(), TableID: uuid.New()},
	}}
	job := newReportJob(t, repo)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.limits) != 1 || repo.limits[0] != staleSessionBatchSize {
		t.Fatalf("expected one capped listing, got %v", repo.limits)
	}
}

func TestStaleSessionReportNoStaleSessionsIsQuiet(t *testing.T) {
	repo := &fakeStaleSessionRepo{}
	job := newReportJob(t, repo)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestStaleSessionReportListFailureAborts(t *testing.T) {
	repo := &fakeStaleSessionRepo{listErr: errors.New("db down")}
	job := newReportJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected list failure to surface")
	}
}
