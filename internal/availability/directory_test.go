package availability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestPgConflict(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001", Message: "could not serialize access"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}, true},
		{"lock not available", &pgconn.PgError{Code: "55P03", Message: "could not obtain lock"}, true},
		{"wrapped serialization failure", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"connection error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pgConflict(tt.err)
			if tt.conflict {
				assert.ErrorIs(t, got, ErrWriteConflict)
				return
			}
			assert.NotErrorIs(t, got, ErrWriteConflict)
			assert.Equal(t, tt.err, got)
		})
	}
}

func TestFirestoreTxErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"aborted", status.Error(codes.Aborted, "too much contention"), ErrWriteConflict},
		{"failed precondition", status.Error(codes.FailedPrecondition, "stale read"), ErrWriteConflict},
		{"not found", status.Error(codes.NotFound, "no document"), ErrUserNotFound},
		{"slot not found passes through", ErrSlotNotFound, ErrSlotNotFound},
		{"user not found passes through", ErrUserNotFound, ErrUserNotFound},
		{"booking re-check passes through", ErrSlotUnavailable, ErrSlotUnavailable},
		{"revision conflict passes through", fmt.Errorf("%w: revision 3", ErrWriteConflict), ErrWriteConflict},
		{"invalid input passes through", ErrInvalidInput, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, firestoreTxErr(tt.err), tt.want)
		})
	}

	t.Run("unavailable is left for the caller", func(t *testing.T) {
		err := status.Error(codes.Unavailable, "backend down")
		got := firestoreTxErr(err)
		assert.Equal(t, err, got)
		assert.False(t, isDomainErr(got))
	})

	t.Run("repair sentinel is left unchanged", func(t *testing.T) {
		assert.Equal(t, errSlotMoved, firestoreTxErr(errSlotMoved))
	})

	assert.NoError(t, firestoreTxErr(nil))
}

func TestApplyMutation(t *testing.T) {
	slots := []Slot{
		{ID: "a", Date: "2099-01-01", StartTime: "9", Revision: 4},
		{ID: "b", Date: "2099-01-01", StartTime: "10", Revision: 1},
	}

	out, updated, err := applyMutation(slots, "a", func(current Slot) (Slot, error) {
		current.ID = "forged"
		current.Revision = 100
		current.StartTime = "11"
		return current, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", updated.ID)
	assert.Equal(t, int64(5), updated.Revision)
	assert.Equal(t, "11", updated.StartTime)
	assert.Equal(t, updated, out[0])
	assert.Equal(t, slots[1], out[1])

	// input untouched
	assert.Equal(t, "9", slots[0].StartTime)
	assert.Equal(t, int64(4), slots[0].Revision)

	_, _, err = applyMutation(slots, "missing", func(current Slot) (Slot, error) { return current, nil })
	assert.ErrorIs(t, err, ErrSlotNotFound)

	boom := errors.New("boom")
	_, _, err = applyMutation(slots, "b", func(Slot) (Slot, error) { return Slot{}, boom })
	assert.Equal(t, boom, err)
}

func TestAppendSlot(t *testing.T) {
	slots := []Slot{{ID: "a"}}

	out, err := appendSlot(slots, Slot{ID: "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Len(t, slots, 1)

	_, err = appendSlot(out, Slot{ID: "a"})
	assert.ErrorIs(t, err, ErrWriteConflict)

	out, err = appendSlot(nil, Slot{ID: "first"})
	require.NoError(t, err)
	assert.Equal(t, []Slot{{ID: "first"}}, out)
}

func TestRemoveSlot(t *testing.T) {
	slots := []Slot{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	out, err := removeSlot(slots, "b")
	require.NoError(t, err)
	assert.Equal(t, []Slot{{ID: "a"}, {ID: "c"}}, out)
	assert.Equal(t, "b", slots[1].ID, "input untouched")

	_, err = removeSlot(out, "b")
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestMemoryDirectoryDeleteUser(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	require.NoError(t, d.UpdateUser(ctx, User{UID: "doc-1", Role: "doctor"}))
	require.NoError(t, d.AddAvailability(ctx, "doc-1", Slot{ID: "s1"}))

	require.NoError(t, d.DeleteUser(ctx, "doc-1"))
	_, err := d.GetUser(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, d.DeleteUser(ctx, "doc-1"), ErrUserNotFound)

	// a recreated profile starts without the old slots
	require.NoError(t, d.UpdateUser(ctx, User{UID: "doc-1", Role: "doctor"}))
	u, err := d.GetUser(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, u.Availability)
}
