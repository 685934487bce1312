package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"teamledger/internal/core"
	"teamledger/internal/log"
	"teamledger/internal/middleware/trace"
)

const readyTimeout = 2 * time.Second

func handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		ServiceUnavailableError("Record store unavailable").Write(w)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := s.svc.ListOperations(r.Context())
	if err != nil {
		s.writeError(w, r, "Failed to list operations", err, log.OpList)
		return
	}
	JSON(w, http.StatusOK, ops)
}

func (s *Server) handleCreateOperation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			PayloadTooLargeError().Write(w)
			return
		}
		BadRequestError(errInvalidJSONBody.Error()).Write(w)
		return
	}

	op, err := ParseCreateOperation(body)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	created, err := s.svc.CreateOperation(r.Context(), op)
	if err != nil {
		s.writeError(w, r, "Failed to create operation", err, log.OpCreate)
		return
	}

	JSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.svc.ListTeams(r.Context())
	if err != nil {
		s.writeError(w, r, "Failed to list teams", err, log.OpList)
		return
	}
	JSON(w, http.StatusOK, teams)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	period, err := ParseDashboardQuery(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	dashboard, err := s.svc.Dashboard(r.Context(), period)
	if err != nil {
		s.writeError(w, r, "Failed to build dashboard", err, log.OpSummarize)
		return
	}
	JSON(w, http.StatusOK, dashboard)
}

// writeError maps validation failures to 400 and everything else to a
// generic 500 whose detail only reaches the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		BadRequestError(verr.Error()).Write(w)
	case errors.Is(err, core.ErrMissingInvoiceNumber):
		BadRequestError(core.NewValidationError("invoiceNumber").Error()).Write(w)
	case errors.Is(err, core.ErrMissingDate):
		BadRequestError(invalidDateMessage).Write(w)
	default:
		fields := log.NewFields().
			WithErrorType(log.ErrorTypeDatabase).
			WithRequestID(trace.GetRequestID(r.Context()))
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), msg, err, log.ComponentHTTP, op, fields)
		InternalServerError().Write(w)
	}
}
