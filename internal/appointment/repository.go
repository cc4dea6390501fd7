package appointment

import (
	"context"
	"errors"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrUnknownDocumentKind = errors.New("unknown document type")
	ErrInvalidStatus       = errors.New("invalid appointment status")
	ErrLedgerUnavailable   = errors.New("appointment ledger unavailable")
)

// Ledger is the append-style store of booked appointments.
type Ledger interface {
	// BookAppointment stores a. Writing the same ID twice overwrites, so a
	// retried booking never produces two records.
	BookAppointment(ctx context.Context, a Appointment) error
	GetAppointment(ctx context.Context, id string) (*Appointment, error)

	AppointmentsForDoctor(ctx context.Context, doctorID string) ([]Appointment, error)
	AppointmentsForPatient(ctx context.Context, patientID string) ([]Appointment, error)
	AllAppointments(ctx context.Context) ([]Appointment, error)

	UpdateAppointmentStatus(ctx context.Context, id string, status Status) error
	UpdateAppointmentNotes(ctx context.Context, id, notes string) error
	AttachDocument(ctx context.Context, id string, kind DocumentKind, url string) error
}
