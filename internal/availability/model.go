package availability

import (
	"time"

	"github.com/hackgods/clinic-availability/internal/auth"
)

// Slot is one bookable interval on a doctor's schedule.
type Slot struct {
	ID        string `json:"id" firestore:"id"`
	Date      string `json:"date" firestore:"date"`           // yyyy-MM-dd
	DayOfWeek string `json:"dayOfWeek" firestore:"dayOfWeek"` // descriptive only
	StartTime string `json:"startTime" firestore:"startTime"` // "14", "14:30", "3pm", "3:30 PM"
	EndTime   string `json:"endTime" firestore:"endTime"`
	IsBooked  bool   `json:"isBooked" firestore:"isBooked"`

	// Revision is bumped by the store on every write to this slot. Updates
	// must carry the revision they were based on.
	Revision int64      `json:"revision" firestore:"revision"`
	BookedAt *time.Time `json:"bookedAt,omitempty" firestore:"bookedAt"`
	// AppointmentID links a booked slot to its ledger record.
	AppointmentID string `json:"appointmentId,omitempty" firestore:"appointmentId"`
}

type User struct {
	UID            string    `json:"uid" firestore:"-"`
	Email          string    `json:"email" firestore:"email"`
	FullName       string    `json:"fullName" firestore:"fullName"`
	Role           auth.Role `json:"role" firestore:"role"`
	Specialization *string   `json:"specialization,omitempty" firestore:"specialization"`
	Phone          *string   `json:"phone,omitempty" firestore:"phone"`
	Address        *string   `json:"address,omitempty" firestore:"address"`
	DateOfBirth    *string   `json:"dateOfBirth,omitempty" firestore:"dateOfBirth"` // yyyy-MM-dd
	LicenseNumber  *string   `json:"licenseNumber,omitempty" firestore:"licenseNumber"`
	FCMToken       string    `json:"-" firestore:"fcmToken"`
	Availability   []Slot    `json:"availability,omitempty" firestore:"availability"`
	CreatedAt      time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" firestore:"updatedAt"`
}

func findSlot(slots []Slot, id string) int {
	for i := range slots {
		if slots[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneSlots(slots []Slot) []Slot {
	out := make([]Slot, len(slots))
	for i, s := range slots {
		if s.BookedAt != nil {
			t := *s.BookedAt
			s.BookedAt = &t
		}
		out[i] = s
	}
	return out
}
