package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hackgods/clinic-availability/internal/auth"
)

const usersCollection = "users"

// FirestoreDirectory stores one document per user in the users collection.
// The slot list lives in the document's availability array and is rewritten
// whole inside a transaction on every change.
type FirestoreDirectory struct {
	client *firestore.Client
}

func NewFirestoreDirectory(client *firestore.Client) *FirestoreDirectory {
	return &FirestoreDirectory{client: client}
}

func (d *FirestoreDirectory) col() *firestore.CollectionRef {
	return d.client.Collection(usersCollection)
}

func (d *FirestoreDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	snap, err := d.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return decodeUser(snap)
}

func (d *FirestoreDirectory) ListUsersByRole(ctx context.Context, role auth.Role) ([]User, error) {
	snaps, err := d.col().Where("role", "==", string(role)).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	out := make([]User, 0, len(snaps))
	for _, snap := range snaps {
		u, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (d *FirestoreDirectory) UpdateUser(ctx context.Context, u User) error {
	now := time.Now().UTC()
	ref := d.col().Doc(u.UID)

	err := d.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		fields := map[string]any{
			"email":          u.Email,
			"fullName":       u.FullName,
			"role":           string(u.Role),
			"specialization": u.Specialization,
			"phone":          u.Phone,
			"address":        u.Address,
			"dateOfBirth":    u.DateOfBirth,
			"licenseNumber":  u.LicenseNumber,
			"fcmToken":       u.FCMToken,
			"updatedAt":      now,
		}

		_, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			fields["createdAt"] = now
			fields["availability"] = []Slot{}
		case err != nil:
			return err
		}
		return tx.Set(ref, fields, firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("update user %s: %w", u.UID, firestoreConflict(err))
	}
	return nil
}

func (d *FirestoreDirectory) DeleteUser(ctx context.Context, id string) error {
	_, err := d.col().Doc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, firestoreConflict(err))
	}
	return nil
}

func (d *FirestoreDirectory) AddAvailability(ctx context.Context, userID string, slot Slot) error {
	return d.withSlots(ctx, userID, func(slots []Slot) ([]Slot, error) {
		return appendSlot(slots, slot)
	})
}

func (d *FirestoreDirectory) RemoveAvailability(ctx context.Context, userID, slotID string) error {
	return d.withSlots(ctx, userID, func(slots []Slot) ([]Slot, error) {
		return removeSlot(slots, slotID)
	})
}

func (d *FirestoreDirectory) UpdateAvailability(ctx context.Context, userID, slotID string, mutate MutateFunc) (Slot, error) {
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

// withSlots runs fn inside a Firestore transaction. The transaction body can
// be retried by the client, so fn only sees fresh copies of the stored list.
func (d *FirestoreDirectory) withSlots(ctx context.Context, userID string, fn func([]Slot) ([]Slot, error)) error {
	ref := d.col().Doc(userID)

	err := d.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrUserNotFound
			}
			return err
		}

		u, err := decodeUser(snap)
		if err != nil {
			return err
		}

		next, err := fn(u.Availability)
		if err != nil {
			return err
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "availability", Value: next},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	return firestoreTxErr(err)
}

// firestoreTxErr classifies a RunTransaction failure. Domain errors raised
// inside the transaction pass through unchanged.
func firestoreTxErr(err error) error {
	if err == nil || isDomainErr(err) {
		return err
	}
	return firestoreConflict(err)
}

func firestoreConflict(err error) error {
	switch status.Code(err) {
	case codes.Aborted, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", ErrWriteConflict, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	return err
}

func decodeUser(snap *firestore.DocumentSnapshot) (*User, error) {
	var u User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	u.UID = snap.Ref.ID
	return &u, nil
}
