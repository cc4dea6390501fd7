package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-availability/internal/auth"
)

// PgDirectory keeps users in the users table with the slot list as a jsonb
// column. Availability writes lock the user row with SELECT ... FOR UPDATE.
type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

const userColumns = `id, email, full_name, role, specialization, phone, address, date_of_birth, license_number, fcm_token, availability, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var raw []byte

	err := row.Scan(
		&u.UID,
		&u.Email,
		&u.FullName,
		&u.Role,
		&u.Specialization,
		&u.Phone,
		&u.Address,
		&u.DateOfBirth,
		&u.LicenseNumber,
		&u.FCMToken,
		&raw,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &u.Availability); err != nil {
			return nil, fmt.Errorf("decode availability for %s: %w", u.UID, err)
		}
	}
	return &u, nil
}

func (d *PgDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (d *PgDirectory) ListUsersByRole(ctx context.Context, role auth.Role) ([]User, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY id`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *PgDirectory) UpdateUser(ctx context.Context, u User) error {
	now := time.Now().UTC()
	_, err := d.pool.Exec(ctx, `
		INSERT INTO users (id, email, full_name, role, specialization, phone, address, date_of_birth, license_number, fcm_token, availability, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '[]'::jsonb, $11, $11)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role,
			specialization = EXCLUDED.specialization,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			date_of_birth = EXCLUDED.date_of_birth,
			license_number = EXCLUDED.license_number,
			fcm_token = EXCLUDED.fcm_token,
			updated_at = EXCLUDED.updated_at
	`, u.UID, u.Email, u.FullName, u.Role, u.Specialization, u.Phone, u.Address, u.DateOfBirth, u.LicenseNumber, u.FCMToken, now)
	return err
}

func (d *PgDirectory) DeleteUser(ctx context.Context, id string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (d *PgDirectory) AddAvailability(ctx context.Context, userID string, slot Slot) error {
	return d.withSlots(ctx, userID, func(slots []Slot) ([]Slot, error) {
		return appendSlot(slots, slot)
	})
}

func (d *PgDirectory) RemoveAvailability(ctx context.Context, userID, slotID string) error {
	return d.withSlots(ctx, userID, func(slots []Slot) ([]Slot, error) {
		return removeSlot(slots, slotID)
	})
}

func (d *PgDirectory) UpdateAvailability(ctx context.Context, userID, slotID string, mutate MutateFunc) (Slot, error) {
	var result Slot
	err := d.withSlots(ctx, userID, func(slots []Slot) ([]Slot, error) {
		next, updated, err := applyMutation(slots, slotID, mutate)
		if err != nil {
			return nil, err
		}
		result = updated
		return next, nil
	})
	return result, err
}

func (d *PgDirectory) withSlots(ctx context.Context, userID string, fn func([]Slot) ([]Slot, error)) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT availability FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return pgConflict(err)
	}

	var slots []Slot
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &slots); err != nil {
			return fmt.Errorf("decode availability for %s: %w", userID, err)
		}
	}

	next, err := fn(slots)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET availability = $2::jsonb, updated_at = $3 WHERE id = $1
	`, userID, string(encoded), time.Now().UTC())
	if err != nil {
		return pgConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return pgConflict(err)
	}
	return nil
}

// pgConflict turns serialization, deadlock and lock-timeout failures into
// ErrWriteConflict.
func pgConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", ErrWriteConflict, pgErr.Message)
		}
	}
	return err
}
