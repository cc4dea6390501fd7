package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hackgods/clinic-availability/internal/auth"
)

// MemoryDirectory is a Directory held in process memory. One mutex guards
// all users, which makes every availability write trivially atomic.
type MemoryDirectory struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]User)}
}

func (d *MemoryDirectory) GetUser(_ context.Context, id string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Availability = cloneSlots(u.Availability)
	return &u, nil
}

func (d *MemoryDirectory) ListUsersByRole(_ context.Context, role auth.Role) ([]User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []User
	for _, u := range d.users {
		if u.Role == role {
			u.Availability = cloneSlots(u.Availability)
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (d *MemoryDirectory) UpdateUser(_ context.Context, u User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()
	if prev, ok := d.users[u.UID]; ok {
		u.Availability = prev.Availability
		u.CreatedAt = prev.CreatedAt
	} else {
		u.Availability = nil
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	d.users[u.UID] = u
	return nil
}

func (d *MemoryDirectory) DeleteUser(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(d.users, id)
	return nil
}

func (d *MemoryDirectory) AddAvailability(_ context.Context, userID string, slot Slot) error {
	return d.withSlots(userID, func(slots []Slot) ([]Slot, error) {
		return appendSlot(slots, slot)
	})
}

func (d *MemoryDirectory) RemoveAvailability(_ context.Context, userID, slotID string) error {
	return d.withSlots(userID, func(slots []Slot) ([]Slot, error) {
		return removeSlot(slots, slotID)
	})
}

func (d *MemoryDirectory) UpdateAvailability(_ context.Context, userID, slotID string, mutate MutateFunc) (Slot, error) {
	var result Slot
	err := d.withSlots(userID, func(slots []Slot) ([]Slot, error) {
		next, updated, err := applyMutation(slots, slotID, mutate)
		if err != nil {
			return nil, err
		}
		result = updated
		return next, nil
	})
	return result, err
}

func (d *MemoryDirectory) withSlots(userID string, fn func([]Slot) ([]Slot, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}

	next, err := fn(u.Availability)
	if err != nil {
		return err
	}
	u.Availability = next
	u.UpdatedAt = time.Now().UTC()
	d.users[userID] = u
	return nil
}
