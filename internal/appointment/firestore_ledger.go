package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const appointmentsCollection = "appointments"

// FirestoreLedger stores one document per appointment, keyed by appointment id.
type FirestoreLedger struct {
	client *firestore.Client
}

func NewFirestoreLedger(client *firestore.Client) *FirestoreLedger {
	return &FirestoreLedger{client: client}
}

func (l *FirestoreLedger) col() *firestore.CollectionRef {
	return l.client.Collection(appointmentsCollection)
}

func (l *FirestoreLedger) BookAppointment(ctx context.Context, a Appointment) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	if _, err := l.col().Doc(a.ID).Set(ctx, a); err != nil {
		return fmt.Errorf("set appointment %s: %w", a.ID, err)
	}
	return nil
}

func (l *FirestoreLedger) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	snap, err := l.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return decodeAppointment(snap)
}

func (l *FirestoreLedger) AppointmentsForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return l.query(ctx, l.col().Where("doctorId", "==", doctorID))
}

func (l *FirestoreLedger) AppointmentsForPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return l.query(ctx, l.col().Where("patientId", "==", patientID))
}

func (l *FirestoreLedger) AllAppointments(ctx context.Context) ([]Appointment, error) {
	return l.query(ctx, l.col().Query)
}

func (l *FirestoreLedger) UpdateAppointmentStatus(ctx context.Context, id string, s Status) error {
	return l.update(ctx, id, "status", s)
}

func (l *FirestoreLedger) UpdateAppointmentNotes(ctx context.Context, id, notes string) error {
	return l.update(ctx, id, "doctorNotes", notes)
}

func (l *FirestoreLedger) AttachDocument(ctx context.Context, id string, kind DocumentKind, url string) error {
	field, ok := documentField(kind)
	if !ok {
		return ErrUnknownDocumentKind
	}
	return l.update(ctx, id, field, url)
}

func (l *FirestoreLedger) update(ctx context.Context, id, path string, value any) error {
	_, err := l.col().Doc(id).Update(ctx, []firestore.Update{
		{Path: path, Value: value},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("update appointment %s: %w", id, err)
	}
	return nil
}

func (l *FirestoreLedger) query(ctx context.Context, q firestore.Query) ([]Appointment, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}

	out := make([]Appointment, 0, len(snaps))
	for _, snap := range snaps {
		a, err := decodeAppointment(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func decodeAppointment(snap *firestore.DocumentSnapshot) (*Appointment, error) {
	var a Appointment
	if err := snap.DataTo(&a); err != nil {
		return nil, fmt.Errorf("decode appointment %s: %w", snap.Ref.ID, err)
	}
	a.ID = snap.Ref.ID
	return &a, nil
}
