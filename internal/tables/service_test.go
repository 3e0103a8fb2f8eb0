package tables

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbenali/resto-backend/pkg/clock"
	"github.com/kbenali/resto-backend/pkg/config"
	"github.com/kbenali/resto-backend/pkg/db/models"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/types"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeFinalizer struct {
	tables    []uuid.UUID
	finalized int
}

func (f *fakeFinalizer) FinalizeOpenOrdersForTable(ctx context.Context, tx *gorm.DB, tableID uuid.UUID) (int, error) {
	f.tables = append(f.tables, tableID)
	return f.finalized, nil
}

type fakeTableRepo struct {
	table         *models.Table
	activeSession *models.TableSession
	sessions      map[uuid.UUID]*models.TableSession
	tokenIndex    map[string]*models.TableSession

	lockErr        error
	sessionUpdates map[uuid.UUID][]map[string]any
	availability   map[uuid.UUID]bool
	deactivatedFor []uuid.UUID
	created        []*models.TableSession
}

func newFakeTableRepo(table *models.Table) *fakeTableRepo {
	return &fakeTableRepo{
		table:          table,
		sessions:       map[uuid.UUID]*models.TableSession{},
		tokenIndex:     map[string]*models.TableSession{},
		sessionUpdates: map[uuid.UUID][]map[string]any{},
		availability:   map[uuid.UUID]bool{},
	}
}

func (f *fakeTableRepo) addSession(session *models.TableSession) {
	f.sessions[session.ID] = session
	f.tokenIndex[session.Token] = session
}

func (f *fakeTableRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeTableRepo) FindTable(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	if f.table == nil || f.table.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.table, nil
}

func (f *fakeTableRepo) FindTableForUpdate(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return f.FindTable(ctx, id)
}

func (f *fakeTableRepo) ListTables(ctx context.Context) ([]models.Table, error) {
	if f.table == nil {
		return nil, nil
	}
	return []models.Table{*f.table}, nil
}

func (f *fakeTableRepo) UpdateTableAvailability(ctx context.Context, tableID uuid.UUID, available bool) error {
	f.availability[tableID] = available
	return nil
}

func (f *fakeTableRepo) FindActiveSession(ctx context.Context, tableID uuid.UUID) (*models.TableSession, error) {
	if f.activeSession == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.activeSession, nil
}

func (f *fakeTableRepo) DeactivateSessionsForTable(ctx context.Context, tableID uuid.UUID) error {
	f.deactivatedFor = append(f.deactivatedFor, tableID)
	return nil
}

func (f *fakeTableRepo) CreateSession(ctx context.Context, session *models.TableSession) (*models.TableSession, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	f.created = append(f.created, session)
	f.addSession(session)
	return session, nil
}

func (f *fakeTableRepo) UpdateSession(ctx context.Context, sessionID uuid.UUID, updates map[string]any) error {
	f.sessionUpdates[sessionID] = append(f.sessionUpdates[sessionID], updates)
	return nil
}

func (f *fakeTableRepo) FindSessionByToken(ctx context.Context, token string) (*models.TableSession, error) {
	session, ok := f.tokenIndex[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return session, nil
}

func (f *fakeTableRepo) FindSession(ctx context.Context, id uuid.UUID) (*models.TableSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return session, nil
}

func (f *fakeTableRepo) ListExpiredActiveSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.TableSession, error) {
	return nil, nil
}

var testNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo *fakeTableRepo, finalizer *fakeFinalizer) Service {
	t.Helper()
	svc, err := NewService(
		repo,
		fakeTxRunner{},
		finalizer,
		clock.Fixed(testNow),
		config.SessionConfig{TTL: time.Hour},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		nil,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func testTable() *models.Table {
	return &models.Table{ID: uuid.New(), Number: "7", IsAvailable: true}
}

func sameCustomer() types.Fingerprint {
	return types.Fingerprint{IPAddress: "203.0.113.9", UserAgent: "tablet"}
}

func TestAcquireCreatesSessionOnFreeTable(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	svc := newTestService(t, repo, &fakeFinalizer{})

	result, err := svc.Acquire(context.Background(), table.ID, sameCustomer())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if result.Outcome != AcquireOutcomeCreated {
		t.Fatalf("expected created, got %s", result.Outcome)
	}
	if result.Session.Token == "" {
		t.Fatal("expected a session token")
	}
	if !result.Session.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", result.Session.ExpiresAt)
	}
	if available := repo.availability[table.ID]; available {
		t.Fatal("table must be marked unavailable")
	}
	if len(repo.deactivatedFor) != 1 {
		t.Fatal("lingering sessions must be cleared before creating")
	}
}

func TestAcquireResumesForMatchingFingerprint(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	fp := sameCustomer()
	active := &models.TableSession{
		ID:        uuid.New(),
		TableID:   table.ID,
		Token:     "existing",
		IsActive:  true,
		ExpiresAt: testNow.Add(10 * time.Minute),
		IPAddress: fp.IPAddress,
		UserAgent: fp.UserAgent,
	}
	repo.activeSession = active
	repo.addSession(active)
	svc := newTestService(t, repo, &fakeFinalizer{})

	result, err := svc.Acquire(context.Background(), table.ID, fp)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if result.Outcome != AcquireOutcomeResumed {
		t.Fatalf("expected resumed, got %s", result.Outcome)
	}
	if result.Session.Token != "existing" {
		t.Fatal("resume must hand back the existing token")
	}
	if !result.Session.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Fatal("resume must refresh the validity window")
	}
	if len(repo.created) != 0 {
		t.Fatal("resume must not create a new session")
	}
}

func TestAcquireConflictsForDifferentFingerprint(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	active := &models.TableSession{
		ID:        uuid.New(),
		TableID:   table.ID,
		Token:     "existing",
		IsActive:  true,
		ExpiresAt: testNow.Add(10 * time.Minute),
		IPAddress: "198.51.100.4",
		UserAgent: "phone",
	}
	repo.activeSession = active
	repo.addSession(active)
	svc := newTestService(t, repo, &fakeFinalizer{})

	_, err := svc.Acquire(context.Background(), table.ID, sameCustomer())
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if available, ok := repo.availability[table.ID]; !ok || available {
		t.Fatal("conflict must still mark the occupied table unavailable")
	}
	if len(repo.sessionUpdates[active.ID]) != 0 {
		t.Fatal("conflict must not touch the occupant's session")
	}
}

func TestAcquireConflictsWhenOccupantExpired(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	expired := &models.TableSession{
		ID:        uuid.New(),
		TableID:   table.ID,
		Token:     "stale",
		IsActive:  true,
		ExpiresAt: testNow.Add(-time.Minute),
		IPAddress: "198.51.100.4",
		UserAgent: "phone",
	}
	repo.activeSession = expired
	repo.addSession(expired)
	svc := newTestService(t, repo, &fakeFinalizer{})

	_, err := svc.Acquire(context.Background(), table.ID, sameCustomer())
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expiry never releases the table; expected conflict, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("a different customer must not get a session while the table is occupied")
	}
	if len(repo.sessionUpdates[expired.ID]) != 0 {
		t.Fatal("the expired occupant's row must stay untouched")
	}
}

func TestAcquireResumesExpiredSessionForSameFingerprint(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	fp := sameCustomer()
	expired := &models.TableSession{
		ID:        uuid.New(),
		TableID:   table.ID,
		Token:     "stale",
		IsActive:  true,
		ExpiresAt: testNow.Add(-time.Minute),
		IPAddress: fp.IPAddress,
		UserAgent: fp.UserAgent,
	}
	repo.activeSession = expired
	repo.addSession(expired)
	svc := newTestService(t, repo, &fakeFinalizer{})

	result, err := svc.Acquire(context.Background(), table.ID, fp)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if result.Outcome != AcquireOutcomeResumed {
		t.Fatalf("same customer returning must resume, got %s", result.Outcome)
	}
	if result.Session.Token != "stale" {
		t.Fatal("resume must hand back the occupant's existing token")
	}
	if !result.Session.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Fatal("resume must open a fresh validity window")
	}
	if len(repo.created) != 0 {
		t.Fatal("resume must not create a new session")
	}
}

func TestAcquireMapsLockContentionToBusy(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	repo.lockErr = errors.New("ERROR: could not obtain lock on row (SQLSTATE 55P03)")
	svc := newTestService(t, repo, &fakeFinalizer{})

	_, err := svc.Acquire(context.Background(), table.ID, sameCustomer())
	if !pkgerrors.IsCode(err, pkgerrors.CodeLockBusy) {
		t.Fatalf("expected lock busy, got %v", err)
	}
}

func TestValidateReturnsLiveSession(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	session := &models.TableSession{
		ID:        uuid.New(),
		TableID:   table.ID,
		Token:     "live",
		IsActive:  true,
		ExpiresAt: testNow.Add(time.Hour),
	}
	repo.addSession(session)
	svc := newTestService(t, repo, &fakeFinalizer{})

	got, err := svc.Validate(context.Background(), "live")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.ID != session.ID {
		t.Fatal("wrong session returned")
	}
	if !got.LastAccessed.Equal(testNow) {
		t.Fatal("validation must touch last_accessed")
	}
}

func TestValidateRejectsEndedSession(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	repo.addSession(&models.TableSession{
		ID:        uuid.New(),
		TableID:   table.ID,
		Token:     "ended",
		IsActive:  false,
		ExpiresAt: testNow.Add(time.Hour),
	})
	svc := newTestService(t, repo, &fakeFinalizer{})

	_, err := svc.Validate(context.Background(), "ended")
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestValidateRejectsExpiredSessionWithoutFreeingTable(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	session := &models.TableSession{
		ID:        uuid.New(),
		TableID:   table.ID,
		Token:     "expired",
		IsActive:  true,
		ExpiresAt: testNow.Add(-time.Second),
	}
	repo.addSession(session)
	svc := newTestService(t, repo, &fakeFinalizer{})

	_, err := svc.Validate(context.Background(), "expired")
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, touched := repo.availability[table.ID]; touched {
		t.Fatal("expiry must never free the table")
	}
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	svc := newTestService(t, newFakeTableRepo(testTable()), &fakeFinalizer{})
	_, err := svc.Validate(context.Background(), "missing")
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestEndFinalizesOrdersAndFreesTable(t *testing.T) {
	table := testTable()
	repo := newFakeTableRepo(table)
	session := &models.TableSession{
		ID:        uuid.New(),
		TableID:   table.ID,
		Token:     "live",
		IsActive:  true,
		ExpiresAt: testNow.Add(time.Hour),
	}
	repo.addSession(session)
	finalizer := &fakeFinalizer{finalized: 3}
	svc := newTestService(t, repo, finalizer)
	staff := types.Actor{UserID: uuid.New(), Role: "cashier"}

	result, err := svc.End(context.Background(), staff, session.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if result.OrdersFinalized != 3 {
		t.Fatalf("expected 3 finalized orders, got %d", result.OrdersFinalized)
	}
	if len(finalizer.tables) != 1 || finalizer.tables[0] != table.ID {
		t.Fatal("open orders must be finalized for the session's table")
	}

	deactivated := false
	for _, updates := range repo.sessionUpdates[session.ID] {
		if active, ok := updates["is_active"].(bool); ok && !active {
			deactivated = true
		}
	}
	if !deactivated {
		t.Fatal("ending must deactivate the session")
	}
	if available := repo.availability[table.ID]; !available {
		t.Fatal("ending must free the table")
	}
}

func TestEndUnknownSessionNotFound(t *testing.T) {
	svc := newTestService(t, newFakeTableRepo(testTable()), &fakeFinalizer{})
	_, err := svc.End(context.Background(), types.Actor{UserID: uuid.New(), Role: "admin"}, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
