package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
)

func listAppointmentsHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := auth.CallerFrom(r.Context())

		var (
			appts []appointment.Appointment
			err   error
		)
		switch caller.Role {
		case auth.RoleAdmin:
			appts, err = svc.ListAll(r.Context())
		case auth.RoleDoctor:
			appts, err = svc.ListForDoctor(r.Context(), caller.UID)
		default:
			appts, err = svc.ListForPatient(r.Context(), caller.UID)
		}
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		if appts == nil {
			appts = []appointment.Appointment{}
		}
		writeJSON(w, http.StatusOK, appts)
	}
}

// streamAppointmentsHandler streams the caller's own list. Admins pick a
// doctor or patient with the doctorId or patientId query parameter.
func streamAppointmentsHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := auth.CallerFrom(r.Context())
		ctx := r.Context()

		var (
			updates <-chan []appointment.Appointment
			err     error
		)
		switch caller.Role {
		case auth.RoleAdmin:
			q := r.URL.Query()
			switch {
			case q.Get("doctorId") != "":
				updates, err = svc.WatchDoctor(ctx, q.Get("doctorId"))
			case q.Get("patientId") != "":
				updates, err = svc.WatchPatient(ctx, q.Get("patientId"))
			default:
				writeError(w, http.StatusBadRequest, "invalid_request", "doctorId or patientId is required")
				return
			}
		case auth.RoleDoctor:
			updates, err = svc.WatchDoctor(ctx, caller.UID)
		default:
			updates, err = svc.WatchPatient(ctx, caller.UID)
		}
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}

		streamEvents(w, r, logger, "appointments", updates, func(a []appointment.Appointment) any {
			if a == nil {
				return []appointment.Appointment{}
			}
			return a
		})
	}
}

func getAppointmentHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadVisible(w, r, svc, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

// updateStatusHandler lets participants and admins change the ledger status.
// Patients may only cancel.
func updateStatusHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadVisible(w, r, svc, logger)
		if !ok {
			return
		}

		var req StatusRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		caller, _ := auth.CallerFrom(r.Context())
		if caller.Role == auth.RolePatient && req.Status != appointment.StatusCancelled {
			writeDomainError(w, r, logger, ErrForbidden)
			return
		}

		updated, err := svc.UpdateStatus(r.Context(), appt.ID, req.Status)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func updateNotesHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadVisible(w, r, svc, logger)
		if !ok {
			return
		}
		if !treatingDoctor(r, appt) {
			writeDomainError(w, r, logger, ErrForbidden)
			return
		}

		var req NotesRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		updated, err := svc.UpdateNotes(r.Context(), appt.ID, req.Notes)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// attachDocumentHandler records where an uploaded prescription or test
// result lives. The upload itself goes straight to blob storage.
func attachDocumentHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadVisible(w, r, svc, logger)
		if !ok {
			return
		}
		if !treatingDoctor(r, appt) {
			writeDomainError(w, r, logger, ErrForbidden)
			return
		}

		var req DocumentRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		req.URL = strings.TrimSpace(req.URL)
		if err := validateDocumentURL(req.URL); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}

		updated, err := svc.AttachDocument(r.Context(), appt.ID, req.Kind, req.URL)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func loadVisible(w http.ResponseWriter, r *http.Request, svc *appointment.Service, logger *zap.Logger) (*appointment.Appointment, bool) {
	appt, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, logger, err)
		return nil, false
	}

	caller, _ := auth.CallerFrom(r.Context())
	if !caller.IsAdmin() && caller.UID != appt.DoctorID && caller.UID != appt.PatientID {
		writeDomainError(w, r, logger, ErrForbidden)
		return nil, false
	}
	return appt, true
}

func treatingDoctor(r *http.Request, appt *appointment.Appointment) bool {
	caller, _ := auth.CallerFrom(r.Context())
	return caller.IsAdmin() || (caller.Role == auth.RoleDoctor && caller.UID == appt.DoctorID)
}

func validateDocumentURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", availability.ErrInvalidInput)
	}
	return nil
}
