package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/users"
)

// requireAdmin guards the admin-only user routes.
func requireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, _ := auth.CallerFrom(r.Context())
			if !caller.IsAdmin() {
				writeDomainError(w, r, logger, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func listUsersHandler(svc *users.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := auth.Role(strings.ToLower(r.URL.Query().Get("role")))
		if role == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "role is required")
			return
		}

		list, err := svc.ListByRole(r.Context(), role)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}

		resp := make([]UserResponse, 0, len(list))
		for _, u := range list {
			resp = append(resp, userResponse(u))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createDoctorHandler(svc *users.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		u, err := svc.CreateDoctor(r.Context(), users.NewDoctor{
			Email:          req.Email,
			Password:       req.Password,
			FullName:       req.FullName,
			Specialization: req.Specialization,
			LicenseNumber:  req.LicenseNumber,
		})
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, userResponse(*u))
	}
}

func deleteUserHandler(svc *users.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := auth.CallerFrom(r.Context())
		if err := svc.Delete(r.Context(), caller, chi.URLParam(r, "uid")); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getProfileHandler(svc *users.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := auth.CallerFrom(r.Context())
		u, err := svc.Get(r.Context(), caller.UID)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, userResponse(*u))
	}
}

func updateProfileHandler(svc *users.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProfileRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		caller, _ := auth.CallerFrom(r.Context())
		u, err := svc.UpdateProfile(r.Context(), caller, users.Profile{
			FullName:       req.FullName,
			Email:          req.Email,
			Specialization: req.Specialization,
			Phone:          req.Phone,
			Address:        req.Address,
			DateOfBirth:    req.DateOfBirth,
			LicenseNumber:  req.LicenseNumber,
		})
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, userResponse(*u))
	}
}

func pushTokenHandler(svc *users.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PushTokenRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		caller, _ := auth.CallerFrom(r.Context())
		if err := svc.SetPushToken(r.Context(), caller, req.FCMToken); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
