package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthmed/healthmed/pkg/apperror"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusRefused   Status = "refused"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusRefused || s == StatusCancelled
}

// ParseStatus validates a stored status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusScheduled, StatusRefused, StatusCancelled:
		return Status(s), nil
	}
	return "", apperror.Validation("unknown appointment status %q", s)
}

// ParseDecision maps a doctor's decision token to the resulting status.
// The tokens are the Portuguese words the mobile clients send; matching is
// case-insensitive.
func ParseDecision(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "aceito":
		return StatusScheduled, nil
	case "recusado":
		return StatusRefused, nil
	}
	return "", apperror.Validation("decision must be aceito or recusado")
}

// Slot is a bookable block of a doctor's agenda. Locked means an active
// appointment holds it.
type Slot struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	Locked    bool      `db:"locked" json:"locked"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Appointment binds a patient to a doctor's slot.
type Appointment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID `db:"doctor_id" json:"doctor_id"`
	SlotID       uuid.UUID `db:"slot_id" json:"slot_id"`
	Status       Status    `db:"status" json:"status"`
	CancelReason *string   `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// NewSlot is the input for publishing a slot.
type NewSlot struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// SlotPatch lists the fields to change on a slot. Nil fields keep their
// stored value.
type SlotPatch struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// NewAppointment is the input for booking. DoctorID is optional; when set it
// must match the slot's owner.
type NewAppointment struct {
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	SlotID    uuid.UUID `json:"slot_id"`
}

// AppointmentPatch is the administrative sparse reassignment. Nil fields
// keep their stored value; lock state is never touched here.
type AppointmentPatch struct {
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	SlotID    *uuid.UUID `json:"slot_id,omitempty"`
}

// AvailableSlot is an open slot joined with its doctor, for patient-facing
// search.
type AvailableSlot struct {
	SlotID     uuid.UUID `json:"slot_id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	DoctorName string    `json:"doctor_name"`
	CRM        string    `json:"crm"`
	Specialty  string    `json:"specialty"`
	Fee        float64   `json:"fee"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// DoctorAvailability groups a doctor's open future slots.
type DoctorAvailability struct {
	DoctorID   uuid.UUID        `json:"doctor_id"`
	DoctorName string           `json:"doctor_name"`
	CRM        string           `json:"crm"`
	Specialty  string           `json:"specialty"`
	Fee        float64          `json:"fee"`
	Slots      []*AvailableSlot `json:"slots"`
}

// AvailabilityFilter narrows available-slot searches. Name, Specialty and
// CRM are case-insensitive substring matches on the owning doctor; DoctorID
// is exact.
type AvailabilityFilter struct {
	DoctorID  *uuid.UUID
	Name      string
	Specialty string
	CRM       string
	// After excludes slots starting at or before this instant.
	After time.Time
}

// AppointmentFilter is the repository-level listing scope. Exactly the
// fields set here reach the query; services fill them from the caller's
// role, never from client input.
type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
}
