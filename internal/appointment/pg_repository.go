package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgLedger struct {
	pool *pgxpool.Pool
}

func NewPgLedger(pool *pgxpool.Pool) *PgLedger {
	return &PgLedger{pool: pool}
}

const appointmentColumns = `id, slot_id, patient_id, doctor_id, date, time, status, consultation_type,
	doctor_notes, prescription_url, test_results_url, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.ConsultationType,
		&a.DoctorNotes,
		&a.PrescriptionURL,
		&a.TestResultsURL,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *PgLedger) queryAppointments(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgLedger) BookAppointment(ctx context.Context, a Appointment) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET slot_id = EXCLUDED.slot_id,
		    patient_id = EXCLUDED.patient_id,
		    doctor_id = EXCLUDED.doctor_id,
		    date = EXCLUDED.date,
		    time = EXCLUDED.time,
		    status = EXCLUDED.status,
		    consultation_type = EXCLUDED.consultation_type,
		    updated_at = EXCLUDED.updated_at
	`, a.ID, a.SlotID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Status, a.ConsultationType,
		a.DoctorNotes, a.PrescriptionURL, a.TestResultsURL, a.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgLedger) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgLedger) AppointmentsForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY date, time
	`, doctorID)
}

func (r *PgLedger) AppointmentsForPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date, time
	`, patientID)
}

func (r *PgLedger) AllAppointments(ctx context.Context) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY date, time
	`)
}

func (r *PgLedger) UpdateAppointmentStatus(ctx context.Context, id string, status Status) error {
	return r.updateOne(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, status)
}

func (r *PgLedger) UpdateAppointmentNotes(ctx context.Context, id, notes string) error {
	return r.updateOne(ctx, `
		UPDATE appointments
		SET doctor_notes = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, notes)
}

func (r *PgLedger) AttachDocument(ctx context.Context, id string, kind DocumentKind, url string) error {
	var column string
	switch kind {
	case DocumentPrescription:
		column = "prescription_url"
	case DocumentTestResults:
		column = "test_results_url"
	default:
		return ErrUnknownDocumentKind
	}

	return r.updateOne(ctx, `
		UPDATE appointments
		SET `+column+` = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, url)
}

func (r *PgLedger) updateOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
