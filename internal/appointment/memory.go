package appointment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLedger keeps appointments in process memory.
type MemoryLedger struct {
	mu    sync.RWMutex
	items map[string]Appointment
	now   func() time.Time

	// FailBook, when set, is returned by BookAppointment instead of storing.
	FailBook error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{items: make(map[string]Appointment), now: time.Now}
}

func (l *MemoryLedger) BookAppointment(_ context.Context, a Appointment) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailBook != nil {
		return l.FailBook
	}

	now := l.now().UTC()
	if prev, ok := l.items[a.ID]; ok && a.CreatedAt.IsZero() {
		a.CreatedAt = prev.CreatedAt
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	l.items[a.ID] = a
	return nil
}

func (l *MemoryLedger) GetAppointment(_ context.Context, id string) (*Appointment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (l *MemoryLedger) AppointmentsForDoctor(_ context.Context, doctorID string) ([]Appointment, error) {
	return l.filter(func(a Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (l *MemoryLedger) AppointmentsForPatient(_ context.Context, patientID string) ([]Appointment, error) {
	return l.filter(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (l *MemoryLedger) AllAppointments(context.Context) ([]Appointment, error) {
	return l.filter(func(Appointment) bool { return true }), nil
}

func (l *MemoryLedger) UpdateAppointmentStatus(_ context.Context, id string, status Status) error {
	return l.update(id, func(a *Appointment) { a.Status = status })
}

func (l *MemoryLedger) UpdateAppointmentNotes(_ context.Context, id, notes string) error {
	return l.update(id, func(a *Appointment) { a.DoctorNotes = &notes })
}

func (l *MemoryLedger) AttachDocument(_ context.Context, id string, kind DocumentKind, url string) error {
	if _, ok := documentField(kind); !ok {
		return ErrUnknownDocumentKind
	}
	return l.update(id, func(a *Appointment) {
		if kind == DocumentPrescription {
			a.PrescriptionURL = &url
		} else {
			a.TestResultsURL = &url
		}
	})
}

func (l *MemoryLedger) update(id string, fn func(*Appointment)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.items[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	fn(&a)
	a.UpdatedAt = l.now().UTC()
	l.items[id] = a
	return nil
}

func (l *MemoryLedger) filter(keep func(Appointment) bool) []Appointment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Appointment
	for _, a := range l.items {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out
}
