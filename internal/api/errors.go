package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
)

var ErrForbidden = errors.New("caller may not perform this action")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps service errors to status codes and stable error codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, availability.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_already_taken", "this slot was just taken, pick another one")
	case errors.Is(err, availability.ErrSlotNotFound):
		writeError(w, http.StatusConflict, "slot_changed", "this slot was already changed, reload the schedule")
	case errors.Is(err, availability.ErrWriteConflict):
		writeError(w, http.StatusConflict, "write_conflict", "the schedule changed while saving, reload and retry")
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, availability.ErrAuthRequired), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "auth_required", "sign in to continue")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, availability.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, availability.ErrInvalidInput),
		errors.Is(err, appointment.ErrInvalidStatus),
		errors.Is(err, appointment.ErrUnknownDocumentKind):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, availability.ErrRemoteUnavailable), errors.Is(err, appointment.ErrLedgerUnavailable):
		logger.Error("collaborator unavailable",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "remote_unavailable", "service temporarily unavailable, please retry")
	default:
		logger.Error("unhandled error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
