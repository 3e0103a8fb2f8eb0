package tables

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/pkg/db/models"
)

// Repository defines persistence operations for tables and their sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTable(ctx context.Context, id uuid.UUID) (*models.Table, error)
	// FindTableForUpdate takes an exclusive row lock on the table without
	// waiting; lock contention surfaces as an error the caller maps to a
	// retryable busy signal.
	FindTableForUpdate(ctx context.Context, id uuid.UUID) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	UpdateTableAvailability(ctx context.Context, tableID uuid.UUID, available bool) error
	FindActiveSession(ctx context.Context, tableID uuid.UUID) (*models.TableSession, error)
	DeactivateSessionsForTable(ctx context.Context, tableID uuid.UUID) error
	CreateSession(ctx context.Context, session *models.TableSession) (*models.TableSession, error)
	UpdateSession(ctx context.Context, sessionID uuid.UUID, updates map[string]any) error
	FindSessionByToken(ctx context.Context, token string) (*models.TableSession, error)
	FindSession(ctx context.Context, id uuid.UUID) (*models.TableSession, error)
	// ListExpiredActiveSessions returns active sessions whose validity window
	// passed before cutoff. Read-only reporting input; the sessions stay
	// active and the tables stay occupied until staff end them.
	ListExpiredActiveSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.TableSession, error)
}
