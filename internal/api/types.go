package api

import (
	"time"

	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
)

// SlotRequest is the body of slot create and update calls. Revision is
// ignored on create and required on update.
type SlotRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"omitempty,clock"`
	IsBooked  bool   `json:"isBooked"`
	Revision  int64  `json:"revision" validate:"gte=0"`
}

func (r SlotRequest) slot() availability.Slot {
	return availability.Slot{
		Date:      r.Date,
		DayOfWeek: r.DayOfWeek,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		IsBooked:  r.IsBooked,
		Revision:  r.Revision,
	}
}

type SlotResponse struct {
	availability.Slot
	Status availability.Status `json:"status"`
}

type BookRequest struct {
	ConsultationType appointment.ConsultationType `json:"consultationType" validate:"omitempty,oneof=e-consultation in-person"`
}

type DoctorResponse struct {
	UID            string  `json:"uid"`
	FullName       string  `json:"fullName"`
	Email          string  `json:"email,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
}

type StatusRequest struct {
	Status appointment.Status `json:"status" validate:"required"`
}

type NotesRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

type DocumentRequest struct {
	Kind appointment.DocumentKind `json:"kind" validate:"required"`
	URL  string                   `json:"url" validate:"required"`
}

type CreateDoctorRequest struct {
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,min=6"`
	FullName       string  `json:"fullName" validate:"required,max=200"`
	Specialization string  `json:"specialization" validate:"required,max=200"`
	LicenseNumber  *string `json:"licenseNumber" validate:"omitempty,max=64"`
}

type ProfileRequest struct {
	FullName       string  `json:"fullName" validate:"required,max=200"`
	Email          string  `json:"email" validate:"required,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Address        *string `json:"address" validate:"omitempty,max=500"`
	DateOfBirth    *string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Specialization *string `json:"specialization" validate:"omitempty,max=200"`
	LicenseNumber  *string `json:"licenseNumber" validate:"omitempty,max=64"`
}

type PushTokenRequest struct {
	FCMToken string `json:"fcmToken" validate:"max=4096"`
}

// UserResponse never carries the push token itself.
type UserResponse struct {
	UID            string    `json:"uid"`
	Email          string    `json:"email"`
	FullName       string    `json:"fullName"`
	Role           auth.Role `json:"role"`
	Specialization *string   `json:"specialization,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Address        *string   `json:"address,omitempty"`
	DateOfBirth    *string   `json:"dateOfBirth,omitempty"`
	LicenseNumber  *string   `json:"licenseNumber,omitempty"`
	PushEnabled    bool      `json:"pushEnabled"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func userResponse(u availability.User) UserResponse {
	return UserResponse{
		UID:            u.UID,
		Email:          u.Email,
		FullName:       u.FullName,
		Role:           u.Role,
		Specialization: u.Specialization,
		Phone:          u.Phone,
		Address:        u.Address,
		DateOfBirth:    u.DateOfBirth,
		LicenseNumber:  u.LicenseNumber,
		PushEnabled:    u.FCMToken != "",
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
