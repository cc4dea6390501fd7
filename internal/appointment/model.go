package appointment

import (
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type ConsultationType string

const (
	ConsultationRemote   ConsultationType = "e-consultation"
	ConsultationInPerson ConsultationType = "in-person"
)

func (c ConsultationType) Valid() bool {
	return c == ConsultationRemote || c == ConsultationInPerson
}

type DocumentKind string

const (
	DocumentPrescription DocumentKind = "prescription"
	DocumentTestResults  DocumentKind = "test_results"
)

// Appointment is a confirmed booking held by the ledger. Status is local to
// the ledger and is never written back into the slot.
type Appointment struct {
	ID               string           `json:"appointmentId" firestore:"appointmentId"`
	SlotID           string           `json:"slotId" firestore:"slotId"`
	PatientID        string           `json:"patientId" firestore:"patientId"`
	DoctorID         string           `json:"doctorId" firestore:"doctorId"`
	Date             string           `json:"date" firestore:"date"`
	Time             string           `json:"time" firestore:"time"`
	Status           Status           `json:"status" firestore:"status"`
	ConsultationType ConsultationType `json:"consultationType" firestore:"consultationType"`
	DoctorNotes      *string          `json:"doctorNotes,omitempty" firestore:"doctorNotes"`
	PrescriptionURL  *string          `json:"prescriptionUrl,omitempty" firestore:"prescriptionUrl"`
	TestResultsURL   *string          `json:"testResultsUrl,omitempty" firestore:"testResultsUrl"`
	CreatedAt        time.Time        `json:"createdAt" firestore:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt" firestore:"updatedAt"`
}

func documentField(kind DocumentKind) (string, bool) {
	switch kind {
	case DocumentPrescription:
		return "prescriptionUrl", true
	case DocumentTestResults:
		return "testResultsUrl", true
	}
	return "", false
}
