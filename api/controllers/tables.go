package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kbenali/resto-backend/api/middleware"
	"github.com/kbenali/resto-backend/api/responses"
	"github.com/kbenali/resto-backend/api/validators"
	tablesvc "github.com/kbenali/resto-backend/internal/tables"
	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/types"
)

// SessionTokenHeader carries the customer's session token on dine-in calls.
const SessionTokenHeader = "X-Session-Token"

// ListTables returns every table with its availability flag.
func ListTables(svc tablesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tables service unavailable"))
			return
		}

		records, err := svc.ListTables(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, records)
	}
}

// GetTable returns one table by id.
func GetTable(svc tablesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tables service unavailable"))
			return
		}

		tableID, err := validators.ParsePathUUID(chi.URLParam(r, "tableID"), "tableID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetTable(r.Context(), tableID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type acquireSessionResponse struct {
	Outcome string `json:"outcome"`
	Session any    `json:"session"`
}

// AcquireTableSession grants or resumes the exclusive session for a table.
// The client fingerprint comes from the connection itself, never the body.
func AcquireTableSession(svc tablesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tables service unavailable"))
			return
		}

		tableID, err := validators.ParsePathUUID(chi.URLParam(r, "tableID"), "tableID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fp := types.Fingerprint{
			IPAddress: middleware.ClientIP(r),
			UserAgent: strings.TrimSpace(r.UserAgent()),
		}

		result, err := svc.Acquire(r.Context(), tableID, fp)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Outcome == tablesvc.AcquireOutcomeCreated {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, acquireSessionResponse{
			Outcome: string(result.Outcome),
			Session: result.Session,
		})
	}
}

// ValidateTableSession checks the presented token and returns the session.
func ValidateTableSession(svc tablesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tables service unavailable"))
			return
		}

		token := strings.TrimSpace(r.Header.Get(SessionTokenHeader))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session token required"))
			return
		}

		session, err := svc.Validate(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

type endSessionResponse struct {
	SessionID       string `json:"session_id"`
	OrdersFinalized int    `json:"orders_finalized"`
}

// EndTableSession lets staff close an occupancy, settling its open orders
// and freeing the table.
func EndTableSession(svc tablesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tables service unavailable"))
			return
		}

		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
			return
		}

		sessionID, err := validators.ParsePathUUID(chi.URLParam(r, "sessionID"), "sessionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.End(r.Context(), actor, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, endSessionResponse{
			SessionID:       result.SessionID.String(),
			OrdersFinalized: result.OrdersFinalized,
		})
	}
}
