package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/feed"
	"github.com/hackgods/clinic-availability/internal/metrics"
	"github.com/hackgods/clinic-availability/internal/notify"
	redisclient "github.com/hackgods/clinic-availability/internal/redis"
)

const compensationTimeout = 10 * time.Second

// errSlotMoved aborts a repair transaction when the slot no longer carries
// the booking being repaired.
var errSlotMoved = errors.New("slot no longer holds this booking")

// Manager owns the lifecycle of doctors' availability slots.
type Manager struct {
	dir    Directory
	ledger appointment.Ledger

	now      func() time.Time
	loc      *time.Location
	locker   redisclient.Locker
	feed     feed.Feed
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	grace    time.Duration
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithLocation sets the zone slot dates and times are read in.
func WithLocation(loc *time.Location) Option { return func(m *Manager) { m.loc = loc } }

func WithLocker(l redisclient.Locker) Option { return func(m *Manager) { m.locker = l } }

func WithFeed(f feed.Feed) Option { return func(m *Manager) { m.feed = f } }

func WithNotifier(n notify.Notifier) Option { return func(m *Manager) { m.notifier = n } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithReconcileGrace sets how old a booking must be before the reconciler
// may release it for lack of a ledger record.
func WithReconcileGrace(d time.Duration) Option { return func(m *Manager) { m.grace = d } }

func NewManager(dir Directory, ledger appointment.Ledger, opts ...Option) *Manager {
	m := &Manager{
		dir:      dir,
		ledger:   ledger,
		now:      time.Now,
		loc:      time.UTC,
		locker:   redisclient.NewLocalSlotLocker(),
		feed:     feed.NewHub(),
		notifier: notify.Noop{},
		logger:   zap.NewNop(),
		grace:    2 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	return m
}

func (m *Manager) Location() *time.Location { return m.loc }

// Status derives the slot's status at the manager's current time.
func (m *Manager) Status(s Slot) Status {
	return DeriveStatus(s, m.now(), m.loc)
}

// ListSlots returns the doctor's slots. A missing doctor yields an empty list.
func (m *Manager) ListSlots(ctx context.Context, doctorID string) ([]Slot, error) {
	u, err := m.dir.GetUser(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Slot{}, nil
		}
		return nil, remoteErr("list slots", err)
	}
	if u.Availability == nil {
		return []Slot{}, nil
	}
	return u.Availability, nil
}

func (m *Manager) AddSlot(ctx context.Context, doctorID string, slot Slot) (Slot, error) {
	if err := validateSlot(slot); err != nil {
		return Slot{}, err
	}

	slot.ID = uuid.NewString()
	slot.Revision = 1
	slot.IsBooked = false
	slot.BookedAt = nil
	slot.AppointmentID = ""
	if strings.TrimSpace(slot.DayOfWeek) == "" {
		slot.DayOfWeek = weekdayName(slot.Date)
	}

	if err := m.dir.AddAvailability(ctx, doctorID, slot); err != nil {
		m.metrics.SlotWrite("add", "error")
		if errors.Is(err, ErrNotFound) {
			return Slot{}, err
		}
		return Slot{}, fmt.Errorf("%w: add slot: %w", ErrWriteConflict, err)
	}

	m.metrics.SlotWrite("add", "ok")
	m.publish(ctx, feed.DoctorSlotsTopic(doctorID))
	return slot, nil
}

// RemoveSlot deletes slotID from the doctor's schedule. Removing a slot that
// is already gone succeeds.
func (m *Manager) RemoveSlot(ctx context.Context, doctorID, slotID string) error {
	err := m.dir.RemoveAvailability(ctx, doctorID, slotID)
	switch {
	case err == nil:
	case errors.Is(err, ErrSlotNotFound):
		m.metrics.SlotWrite("remove", "absent")
		return nil
	case isDomainErr(err):
		m.metrics.SlotWrite("remove", "error")
		return err
	default:
		m.metrics.SlotWrite("remove", "error")
		return remoteErr("remove slot", err)
	}

	m.metrics.SlotWrite("remove", "ok")
	m.publish(ctx, feed.DoctorSlotsTopic(doctorID))
	return nil
}

// UpdateSlot replaces slotID with newSlot in one transaction on the doctor
// record. newSlot.Revision must match the stored revision.
func (m *Manager) UpdateSlot(ctx context.Context, doctorID, slotID string, newSlot Slot) (Slot, error) {
	if err := validateSlot(newSlot); err != nil {
		return Slot{}, err
	}

	updated, err := m.dir.UpdateAvailability(ctx, doctorID, slotID, func(current Slot) (Slot, error) {
		if newSlot.Revision != current.Revision {
			return Slot{}, fmt.Errorf("%w: slot %s is at revision %d, update was based on %d",
				ErrWriteConflict, slotID, current.Revision, newSlot.Revision)
		}

		if newSlot.IsBooked && !current.IsBooked {
			return Slot{}, fmt.Errorf("%w: slot %s can only become booked through a booking", ErrInvalidInput, slotID)
		}

		next := newSlot
		if strings.TrimSpace(next.DayOfWeek) == "" || next.Date != current.Date {
			next.DayOfWeek = weekdayName(next.Date)
		}
		if next.IsBooked && current.IsBooked {
			next.BookedAt = current.BookedAt
			next.AppointmentID = current.AppointmentID
		} else {
			next.BookedAt = nil
			next.AppointmentID = ""
		}
		return next, nil
	})
	if err != nil {
		m.metrics.SlotWrite("update", "error")
		if isDomainErr(err) {
			return Slot{}, err
		}
		return Slot{}, remoteErr("update slot", err)
	}

	m.metrics.SlotWrite("update", "ok")
	m.publish(ctx, feed.DoctorSlotsTopic(doctorID))
	return updated, nil
}

// Book reserves slot for the calling patient and records the appointment in
// the ledger. The slot is written first; if the ledger write fails the slot
// is released again.
func (m *Manager) Book(ctx context.Context, doctorID string, slot Slot, consultation appointment.ConsultationType) (*appointment.Appointment, error) {
	caller, ok := auth.CallerFrom(ctx)
	if !ok {
		m.metrics.Booking("auth_required")
		return nil, ErrAuthRequired
	}
	if consultation == "" {
		consultation = appointment.ConsultationRemote
	}
	if !consultation.Valid() {
		return nil, fmt.Errorf("%w: consultation type %q", ErrInvalidInput, consultation)
	}

	if st := m.Status(slot); st != StatusAvailable {
		m.metrics.Booking("unavailable")
		return nil, ErrSlotUnavailable
	}

	var booked *appointment.Appointment
	err := m.locker.WithSlotLock(ctx, doctorID, slot.ID, func(ctx context.Context) error {
		a, err := m.bookLocked(ctx, caller, doctorID, slot.ID, consultation)
		booked = a
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired), errors.Is(err, ErrSlotUnavailable):
			m.metrics.Booking("unavailable")
			return nil, ErrSlotUnavailable
		case isDomainErr(err), errors.Is(err, ErrRemoteUnavailable):
			m.metrics.Booking("error")
			return nil, err
		default:
			m.metrics.Booking("error")
			return nil, remoteErr("book slot", err)
		}
	}

	m.metrics.Booking("ok")
	m.publish(ctx,
		feed.DoctorSlotsTopic(doctorID),
		feed.DoctorAppointmentsTopic(doctorID),
		feed.PatientAppointmentsTopic(caller.UID),
	)
	m.notifyDoctor(ctx, *booked)
	return booked, nil
}

func (m *Manager) bookLocked(ctx context.Context, caller auth.Caller, doctorID, slotID string, consultation appointment.ConsultationType) (*appointment.Appointment, error) {
	appointmentID := uuid.NewString()
	bookedAt := m.now().UTC().Truncate(time.Microsecond)

	stored, err := m.dir.UpdateAvailability(ctx, doctorID, slotID, func(current Slot) (Slot, error) {
		if DeriveStatus(current, m.now(), m.loc) != StatusAvailable {
			return Slot{}, ErrSlotUnavailable
		}
		current.IsBooked = true
		current.BookedAt = &bookedAt
		current.AppointmentID = appointmentID
		return current, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// the slot or doctor disappeared since the caller's read
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	a := appointment.Appointment{
		ID:               appointmentID,
		SlotID:           stored.ID,
		PatientID:        caller.UID,
		DoctorID:         doctorID,
		Date:             stored.Date,
		Time:             stored.StartTime,
		Status:           appointment.StatusScheduled,
		ConsultationType: consultation,
		CreatedAt:        bookedAt,
		UpdatedAt:        bookedAt,
	}

	if err := m.ledger.BookAppointment(ctx, a); err != nil {
		m.logger.Error("ledger write failed after slot was booked",
			zap.String("doctor_id", doctorID),
			zap.String("slot_id", slotID),
			zap.String("appointment_id", appointmentID),
			zap.Error(err))
		if stored := m.compensate(ctx, doctorID, slotID, appointmentID); stored != nil {
			return stored, nil
		}
		return nil, remoteErr("book appointment", err)
	}

	return &a, nil
}

// compensate settles a booking whose ledger write reported an error. The
// write may have landed anyway, so the ledger is asked first: a stored
// appointment is returned and the slot stays booked. The slot is released
// only when the ledger has no record, and only while it still holds
// appointmentID. A failed lookup leaves the slot to the reconciler.
func (m *Manager) compensate(ctx context.Context, doctorID, slotID, appointmentID string) *appointment.Appointment {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	fields := []zap.Field{
		zap.String("doctor_id", doctorID),
		zap.String("slot_id", slotID),
		zap.String("appointment_id", appointmentID),
	}

	stored, err := m.ledger.GetAppointment(ctx, appointmentID)
	switch {
	case err == nil:
		m.metrics.Compensation("landed")
		m.logger.Warn("ledger write landed despite error, keeping booking", fields...)
		return stored
	case !errors.Is(err, appointment.ErrAppointmentNotFound):
		m.metrics.Compensation("deferred")
		m.logger.Error("ledger lookup failed, leaving slot for reconciler", append(fields, zap.Error(err))...)
		return nil
	}

	released, err := m.release(ctx, doctorID, slotID, appointmentID)
	switch {
	case err != nil:
		m.metrics.Compensation("failed")
		m.logger.Error("release slot after ledger failure", append(fields, zap.Error(err))...)
	case released:
		m.metrics.Compensation("released")
		m.publish(ctx, feed.DoctorSlotsTopic(doctorID))
	default:
		m.metrics.Compensation("skipped")
	}
	return nil
}

// release un-books slotID if it is still booked for appointmentID.
func (m *Manager) release(ctx context.Context, doctorID, slotID, appointmentID string) (bool, error) {
	_, err := m.dir.UpdateAvailability(ctx, doctorID, slotID, func(current Slot) (Slot, error) {
		if !current.IsBooked || current.AppointmentID != appointmentID {
			return Slot{}, errSlotMoved
		}
		current.IsBooked = false
		current.BookedAt = nil
		current.AppointmentID = ""
		return current, nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errSlotMoved), errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// WatchSlots emits the doctor's slot list now and again after every change.
func (m *Manager) WatchSlots(ctx context.Context, doctorID string) (<-chan []Slot, error) {
	ch, err := feed.Watch(ctx, m.feed, feed.DoctorSlotsTopic(doctorID), func(ctx context.Context) ([]Slot, error) {
		return m.ListSlots(ctx, doctorID)
	})
	if err != nil {
		if errors.Is(err, ErrRemoteUnavailable) {
			return nil, err
		}
		return nil, remoteErr("watch slots", err)
	}
	return ch, nil
}

type ReconcileReport struct {
	Doctors  int
	Checked  int
	Released int
	Errors   int
}

// ReconcileBookings releases slots that were booked more than the grace
// period ago but have no appointment in the ledger.
func (m *Manager) ReconcileBookings(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	doctors, err := m.dir.ListUsersByRole(ctx, auth.RoleDoctor)
	if err != nil {
		return report, remoteErr("list doctors", err)
	}
	report.Doctors = len(doctors)

	cutoff := m.now().Add(-m.grace)
	for _, doc := range doctors {
		for _, s := range doc.Availability {
			if !s.IsBooked || s.AppointmentID == "" || s.BookedAt == nil || s.BookedAt.After(cutoff) {
				continue
			}
			report.Checked++

			_, err := m.ledger.GetAppointment(ctx, s.AppointmentID)
			if err == nil {
				continue
			}
			if !errors.Is(err, appointment.ErrAppointmentNotFound) {
				report.Errors++
				m.logger.Warn("reconcile lookup failed",
					zap.String("doctor_id", doc.UID),
					zap.String("appointment_id", s.AppointmentID),
					zap.Error(err))
				continue
			}

			released, err := m.release(ctx, doc.UID, s.ID, s.AppointmentID)
			if err != nil {
				report.Errors++
				m.logger.Warn("reconcile release failed",
					zap.String("doctor_id", doc.UID),
					zap.String("slot_id", s.ID),
					zap.Error(err))
				continue
			}
			if released {
				report.Released++
				m.logger.Info("released orphaned booking",
					zap.String("doctor_id", doc.UID),
					zap.String("slot_id", s.ID),
					zap.String("appointment_id", s.AppointmentID))
				m.publish(ctx, feed.DoctorSlotsTopic(doc.UID))
			}
		}

		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	m.metrics.Released(report.Released)
	return report, nil
}

func (m *Manager) publish(ctx context.Context, topics ...string) {
	for _, topic := range topics {
		if err := m.feed.Publish(ctx, topic); err != nil {
			m.logger.Warn("publish change", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func (m *Manager) notifyDoctor(ctx context.Context, a appointment.Appointment) {
	doc, err := m.dir.GetUser(ctx, a.DoctorID)
	if err != nil {
		m.logger.Warn("load doctor for push", zap.String("doctor_id", a.DoctorID), zap.Error(err))
		return
	}

	msg := notify.Message{
		Title: "New appointment",
		Body:  fmt.Sprintf("A patient booked %s at %s", a.Date, a.Time),
		Data: map[string]string{
			"appointmentId": a.ID,
			"slotId":        a.SlotID,
			"date":          a.Date,
			"time":          a.Time,
		},
	}

	err = m.notifier.Notify(ctx, doc.FCMToken, msg)
	switch {
	case err == nil:
	case errors.Is(err, notify.ErrNoToken):
		m.logger.Debug("doctor has no push token", zap.String("doctor_id", a.DoctorID))
	default:
		m.logger.Warn("push to doctor failed",
			zap.String("doctor_id", a.DoctorID),
			zap.String("appointment_id", a.ID),
			zap.Error(err))
	}
}

func validateSlot(s Slot) error {
	if strings.TrimSpace(s.Date) == "" {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if strings.TrimSpace(s.StartTime) == "" {
		return fmt.Errorf("%w: startTime is required", ErrInvalidInput)
	}
	return nil
}
