package tables

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/pkg/clock"
	"github.com/kbenali/resto-backend/pkg/config"
	"github.com/kbenali/resto-backend/pkg/db"
	"github.com/kbenali/resto-backend/pkg/db/models"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/metrics"
	"github.com/kbenali/resto-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderFinalizer settles a table's open orders when staff ends its session,
// so a new occupant can never continue billing against a stale order.
type OrderFinalizer interface {
	FinalizeOpenOrdersForTable(ctx context.Context, tx *gorm.DB, tableID uuid.UUID) (int, error)
}

// AcquireOutcome labels how a session acquisition resolved.
type AcquireOutcome string

const (
	AcquireOutcomeCreated AcquireOutcome = "created"
	AcquireOutcomeResumed AcquireOutcome = "resumed"
)

// AcquireResult carries the session granted to the requesting client.
type AcquireResult struct {
	Outcome AcquireOutcome
	Session *models.TableSession
}

// EndResult reports what ending a session settled.
type EndResult struct {
	SessionID       uuid.UUID
	OrdersFinalized int
}

// Service is the table session lock manager. All occupancy decisions happen
// under an exclusive lock on the table row, held only long enough to decide
// created/resumed/conflict and never across an external call.
type Service interface {
	Acquire(ctx context.Context, tableID uuid.UUID, fp types.Fingerprint) (*AcquireResult, error)
	Validate(ctx context.Context, token string) (*models.TableSession, error)
	End(ctx context.Context, actor types.Actor, sessionID uuid.UUID) (*EndResult, error)
	GetTable(ctx context.Context, id uuid.UUID) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	finalizer OrderFinalizer
	clock     clock.Clock
	cfg       config.SessionConfig
	logg      *logger.Logger
	metrics   *metrics.EngineMetrics
}

// NewService builds the lock manager with the required dependencies.
func NewService(repo Repository, tx txRunner, finalizer OrderFinalizer, clk clock.Clock, cfg config.SessionConfig, logg *logger.Logger, m *metrics.EngineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tables repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if finalizer == nil {
		return nil, fmt.Errorf("order finalizer required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		finalizer: finalizer,
		clock:     clk,
		cfg:       cfg,
		logg:      logg,
		metrics:   m,
	}, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *service) Acquire(ctx context.Context, tableID uuid.UUID, fp types.Fingerprint) (*AcquireResult, error) {
	if tableID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table id required")
	}
	if fp.IPAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client address required")
	}

	now := s.clock.Now()
	var result *AcquireResult

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindTableForUpdate(ctx, tableID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "table not found")
			}
			if db.IsLockNotAvailable(err) {
				return pkgerrors.New(pkgerrors.CodeLockBusy, "table is being claimed, retry shortly")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock table")
		}

		active, err := repo.FindActiveSession(ctx, tableID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active session")
		}

		if active == nil {
			session, err := s.createSession(ctx, repo, tableID, fp, now)
			if err != nil {
				return err
			}
			result = &AcquireResult{Outcome: AcquireOutcomeCreated, Session: session}
			return nil
		}

		// Occupancy is decided by fingerprint alone, even when the occupant's
		// window has lapsed. Expiry blocks the stale token on the read path;
		// only staff ending the session releases the table.
		recorded := types.Fingerprint{IPAddress: active.IPAddress, UserAgent: active.UserAgent}
		if recorded.Matches(fp) {
			expiresAt := now.Add(s.cfg.TTL)
			updates := map[string]any{
				"expires_at":    expiresAt,
				"last_accessed": now,
			}
			if err := repo.UpdateSession(ctx, active.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh session")
			}
			if err := repo.UpdateTableAvailability(ctx, tableID, false); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark table unavailable")
			}
			active.ExpiresAt = expiresAt
			active.LastAccessed = now
			result = &AcquireResult{Outcome: AcquireOutcomeResumed, Session: active}
			return nil
		}

		// Heal availability drift before rejecting, so the table list stays
		// honest even when the conflict path is the only writer reached.
		if err := repo.UpdateTableAvailability(ctx, tableID, false); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark table unavailable")
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "table is occupied by another customer")
	})
	if err != nil {
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			s.metrics.IncSession("conflict")
		case pkgerrors.IsCode(err, pkgerrors.CodeLockBusy):
			s.metrics.IncSession("lock_busy")
		}
		return nil, err
	}

	s.metrics.IncSession(string(result.Outcome))
	lctx := s.logg.WithTableID(ctx, tableID.String())
	s.logg.Info(s.logg.WithField(lctx, "outcome", string(result.Outcome)), "table session acquired")
	return result, nil
}

func (s *service) createSession(ctx context.Context, repo Repository, tableID uuid.UUID, fp types.Fingerprint, now time.Time) (*models.TableSession, error) {
	// Clear any lingering active-flagged rows first so the single-active
	// invariant holds even after drift.
	if err := repo.DeactivateSessionsForTable(ctx, tableID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clean lingering sessions")
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate token")
	}

	session := &models.TableSession{
		TableID:      tableID,
		Token:        token,
		IsActive:     true,
		ExpiresAt:    now.Add(s.cfg.TTL),
		LastAccessed: now,
		IPAddress:    fp.IPAddress,
		UserAgent:    fp.UserAgent,
	}
	if _, err := repo.CreateSession(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
	}
	if err := repo.UpdateTableAvailability(ctx, tableID, false); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark table unavailable")
	}
	return session, nil
}

func (s *service) Validate(ctx context.Context, token string) (*models.TableSession, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session token required")
	}

	session, err := s.repo.FindSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}

	now := s.clock.Now()
	if !session.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session has ended")
	}
	if session.IsExpired(now) {
		// Expiry blocks the token only; freeing the table is an explicit
		// staff action.
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	}

	if err := s.repo.UpdateSession(ctx, session.ID, map[string]any{"last_accessed": now}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch session")
	}
	session.LastAccessed = now
	return session, nil
}

func (s *service) End(ctx context.Context, actor types.Actor, sessionID uuid.UUID) (*EndResult, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result *EndResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		session, err := repo.FindSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}

		if _, err := repo.FindTableForUpdate(ctx, session.TableID); err != nil {
			if db.IsLockNotAvailable(err) {
				return pkgerrors.New(pkgerrors.CodeLockBusy, "table is being claimed, retry shortly")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock table")
		}

		finalized, err := s.finalizer.FinalizeOpenOrdersForTable(ctx, tx, session.TableID)
		if err != nil {
			return err
		}

		if session.IsActive {
			if err := repo.UpdateSession(ctx, session.ID, map[string]any{"is_active": false}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate session")
			}
		}
		if err := repo.UpdateTableAvailability(ctx, session.TableID, true); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "free table")
		}

		result = &EndResult{SessionID: session.ID, OrdersFinalized: finalized}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncSession("ended")
	lctx := s.logg.WithActor(ctx, actor.UserID.String(), actor.Role.String())
	s.logg.Info(s.logg.WithField(lctx, "orders_finalized", result.OrdersFinalized), "table session ended")
	return result, nil
}

func (s *service) GetTable(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	table, err := s.repo.FindTable(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "table not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load table")
	}
	return table, nil
}

func (s *service) ListTables(ctx context.Context) ([]models.Table, error) {
	tables, err := s.repo.ListTables(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tables")
	}
	return tables, nil
}
