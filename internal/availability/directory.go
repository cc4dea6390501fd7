package availability

import (
	"context"

	"github.com/hackgods/clinic-availability/internal/auth"
)

// MutateFunc receives the stored slot inside a store transaction and returns
// its replacement. Returning an error aborts the transaction and the error is
// passed back unchanged. It may run more than once and must not have side
// effects.
type MutateFunc func(current Slot) (Slot, error)

// Directory is the user profile store that owns each doctor's slot list.
// Implementations must apply every availability change as a single atomic
// write against the user record.
type Directory interface {
	// GetUser returns ErrUserNotFound when id does not exist.
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsersByRole(ctx context.Context, role auth.Role) ([]User, error)
	// UpdateUser upserts profile fields. Availability is never written here.
	UpdateUser(ctx context.Context, u User) error
	// DeleteUser removes the user together with its slot list. It returns
	// ErrUserNotFound when id does not exist.
	DeleteUser(ctx context.Context, id string) error

	AddAvailability(ctx context.Context, userID string, slot Slot) error
	// RemoveAvailability deletes by slot id; ErrSlotNotFound when absent.
	RemoveAvailability(ctx context.Context, userID, slotID string) error
	// UpdateAvailability replaces the slot with id slotID by mutate's result,
	// keeping the id and bumping the revision. ErrSlotNotFound when absent.
	UpdateAvailability(ctx context.Context, userID, slotID string, mutate MutateFunc) (Slot, error)
}

// applyMutation runs mutate against slots[idx] and returns the stored result.
func applyMutation(slots []Slot, slotID string, mutate MutateFunc) ([]Slot, Slot, error) {
	idx := findSlot(slots, slotID)
	if idx < 0 {
		return nil, Slot{}, ErrSlotNotFound
	}

	current := cloneSlots(slots[idx : idx+1])[0]
	next, err := mutate(current)
	if err != nil {
		return nil, Slot{}, err
	}
	next.ID = slotID
	next.Revision = slots[idx].Revision + 1

	out := cloneSlots(slots)
	out[idx] = next
	return out, next, nil
}

func appendSlot(slots []Slot, slot Slot) ([]Slot, error) {
	if findSlot(slots, slot.ID) >= 0 {
		return nil, ErrWriteConflict
	}
	return append(cloneSlots(slots), slot), nil
}

func removeSlot(slots []Slot, slotID string) ([]Slot, error) {
	idx := findSlot(slots, slotID)
	if idx < 0 {
		return nil, ErrSlotNotFound
	}
	out := cloneSlots(slots)
	return append(out[:idx], out[idx+1:]...), nil
}
