package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/feed"
)

type Service struct {
	ledger Ledger
	feed   feed.Feed
	logger *zap.Logger
}

func NewService(ledger Ledger, f feed.Feed, logger *zap.Logger) *Service {
	return &Service{
		ledger: ledger,
		feed:   f,
		logger: logger,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	a, err := s.ledger.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, unavailable("get appointment", err)
	}
	return a, nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	appts, err := s.ledger.AppointmentsForDoctor(ctx, doctorID)
	if err != nil {
		return nil, unavailable("list appointments by doctor", err)
	}
	return appts, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	appts, err := s.ledger.AppointmentsForPatient(ctx, patientID)
	if err != nil {
		return nil, unavailable("list appointments by patient", err)
	}
	return appts, nil
}

func (s *Service) ListAll(ctx context.Context) ([]Appointment, error) {
	appts, err := s.ledger.AllAppointments(ctx)
	if err != nil {
		return nil, unavailable("list appointments", err)
	}
	return appts, nil
}

// UpdateStatus changes the ledger-local status. The slot that produced the
// appointment is left untouched.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.mutate(ctx, id, "update appointment status", func(ctx context.Context) error {
		return s.ledger.UpdateAppointmentStatus(ctx, id, status)
	})
}

func (s *Service) UpdateNotes(ctx context.Context, id, notes string) (*Appointment, error) {
	return s.mutate(ctx, id, "update appointment notes", func(ctx context.Context) error {
		return s.ledger.UpdateAppointmentNotes(ctx, id, strings.TrimSpace(notes))
	})
}

func (s *Service) AttachDocument(ctx context.Context, id string, kind DocumentKind, url string) (*Appointment, error) {
	if _, ok := documentField(kind); !ok {
		return nil, ErrUnknownDocumentKind
	}
	return s.mutate(ctx, id, "attach document", func(ctx context.Context) error {
		return s.ledger.AttachDocument(ctx, id, kind, url)
	})
}

// WatchDoctor streams the doctor's appointment list, re-sent after every change.
func (s *Service) WatchDoctor(ctx context.Context, doctorID string) (<-chan []Appointment, error) {
	return feed.Watch(ctx, s.feed, feed.DoctorAppointmentsTopic(doctorID), func(ctx context.Context) ([]Appointment, error) {
		return s.ListForDoctor(ctx, doctorID)
	})
}

// WatchPatient streams the patient's appointment list, re-sent after every change.
func (s *Service) WatchPatient(ctx context.Context, patientID string) (<-chan []Appointment, error) {
	return feed.Watch(ctx, s.feed, feed.PatientAppointmentsTopic(patientID), func(ctx context.Context) ([]Appointment, error) {
		return s.ListForPatient(ctx, patientID)
	})
}

// publish announces a change to a so live lists refresh.
func (s *Service) publish(ctx context.Context, a Appointment) {
	for _, topic := range []string{feed.DoctorAppointmentsTopic(a.DoctorID), feed.PatientAppointmentsTopic(a.PatientID)} {
		if err := s.feed.Publish(ctx, topic); err != nil {
			s.logger.Warn("publish appointment change",
				zap.String("topic", topic),
				zap.String("appointment_id", a.ID),
				zap.Error(err))
		}
	}
}

func (s *Service) mutate(ctx context.Context, id, op string, write func(context.Context) error) (*Appointment, error) {
	if err := write(ctx); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrUnknownDocumentKind) {
			return nil, err
		}
		return nil, unavailable(op, err)
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, *updated)
	return updated, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, op, err)
}
