package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
)

func listDoctorsHandler(dir availability.Directory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := dir.ListUsersByRole(r.Context(), auth.RoleDoctor)
		if err != nil {
			writeDomainError(w, r, logger, errors.Join(availability.ErrRemoteUnavailable, err))
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, DoctorResponse{
				UID:            d.UID,
				FullName:       d.FullName,
				Email:          d.Email,
				Specialization: d.Specialization,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(mgr *availability.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := mgr.ListSlots(r.Context(), chi.URLParam(r, "doctorID"))
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, slotResponses(mgr, slots))
	}
}

func addSlotHandler(mgr *availability.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "doctorID")
		if !canManage(r, doctorID) {
			writeDomainError(w, r, logger, ErrForbidden)
			return
		}

		var req SlotRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		slot, err := mgr.AddSlot(r.Context(), doctorID, req.slot())
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, SlotResponse{Slot: slot, Status: mgr.Status(slot)})
	}
}

func updateSlotHandler(mgr *availability.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "doctorID")
		if !canManage(r, doctorID) {
			writeDomainError(w, r, logger, ErrForbidden)
			return
		}

		var req SlotRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		slot, err := mgr.UpdateSlot(r.Context(), doctorID, chi.URLParam(r, "slotID"), req.slot())
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotResponse{Slot: slot, Status: mgr.Status(slot)})
	}
}

func removeSlotHandler(mgr *availability.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "doctorID")
		if !canManage(r, doctorID) {
			writeDomainError(w, r, logger, ErrForbidden)
			return
		}

		if err := mgr.RemoveSlot(r.Context(), doctorID, chi.URLParam(r, "slotID")); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// bookSlotHandler books against a fresh read of the slot rather than
// anything the client sends.
func bookSlotHandler(mgr *availability.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.CallerFrom(r.Context())
		if !ok {
			writeDomainError(w, r, logger, availability.ErrAuthRequired)
			return
		}
		if caller.Role != auth.RolePatient {
			writeDomainError(w, r, logger, ErrForbidden)
			return
		}

		var req BookRequest
		if !decodeBody(w, r, &req, true) {
			return
		}

		doctorID := chi.URLParam(r, "doctorID")
		slotID := chi.URLParam(r, "slotID")

		slots, err := mgr.ListSlots(r.Context(), doctorID)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		slot, found := findSlot(slots, slotID)
		if !found {
			writeDomainError(w, r, logger, availability.ErrSlotNotFound)
			return
		}

		appt, err := mgr.Book(r.Context(), doctorID, slot, req.ConsultationType)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func streamSlotsHandler(mgr *availability.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updates, err := mgr.WatchSlots(r.Context(), chi.URLParam(r, "doctorID"))
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		streamEvents(w, r, logger, "slots", updates, func(slots []availability.Slot) any {
			return slotResponses(mgr, slots)
		})
	}
}

func slotResponses(mgr *availability.Manager, slots []availability.Slot) []SlotResponse {
	sorted := append([]availability.Slot(nil), slots...)
	availability.SortForDisplay(sorted, mgr.Location())

	resp := make([]SlotResponse, 0, len(sorted))
	for _, s := range sorted {
		resp = append(resp, SlotResponse{Slot: s, Status: mgr.Status(s)})
	}
	return resp
}

func findSlot(slots []availability.Slot, id string) (availability.Slot, bool) {
	for _, s := range slots {
		if s.ID == id {
			return s, true
		}
	}
	return availability.Slot{}, false
}

func canManage(r *http.Request, doctorID string) bool {
	c, ok := auth.CallerFrom(r.Context())
	return ok && c.CanManage(doctorID)
}
