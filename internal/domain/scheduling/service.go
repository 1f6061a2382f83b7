package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/healthmed/healthmed/internal/platform/auth"
	"github.com/healthmed/healthmed/pkg/apperror"
)

// DoctorResolver maps an authenticated user to their doctor record.
type DoctorResolver interface {
	DoctorIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// PatientResolver maps an authenticated user to their patient record.
type PatientResolver interface {
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	slots        SlotRepository
	appointments AppointmentRepository
	doctors      DoctorResolver
	patients     PatientResolver

	// now is injectable so availability cutoffs are testable.
	now func() time.Time
}

func NewService(slots SlotRepository, appointments AppointmentRepository, doctors DoctorResolver, patients PatientResolver) *Service {
	return &Service{
		slots:        slots,
		appointments: appointments,
		doctors:      doctors,
		patients:     patients,
		now:          time.Now,
	}
}

// WithClock replaces the service time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// -- Slots --

// CreateSlot publishes a bookable slot. Doctors always publish into their
// own agenda; administrators name the target doctor.
func (s *Service) CreateSlot(ctx context.Context, caller auth.Principal, in NewSlot) (*Slot, error) {
	doctorID := in.DoctorID
	if caller.Role == auth.RoleDoctor {
		var err error
		doctorID, err = s.doctors.DoctorIDForUser(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
	}
	if doctorID == uuid.Nil {
		return nil, apperror.Validation("doctor_id is required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return nil, apperror.Validation("start_time and end_time are required")
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, apperror.Validation("end_time must be after start_time")
	}

	slot := &Slot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Locked:    false,
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

// UpdateSlot applies a sparse patch to a slot's time window. Ownership of
// the slot is not checked beyond the caller's role; lock state is untouched.
func (s *Service) UpdateSlot(ctx context.Context, id uuid.UUID, patch SlotPatch) (*Slot, error) {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.StartTime != nil {
		slot.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		slot.EndTime = *patch.EndTime
	}
	if !slot.EndTime.After(slot.StartTime) {
		return nil, apperror.Validation("end_time must be after start_time")
	}

	if err := s.slots.Update(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	return s.slots.Delete(ctx, id)
}

// ListSlots returns agenda slots. Doctors see their own agenda only;
// administrators see every doctor's slots unless they narrow by doctor_id.
func (s *Service) ListSlots(ctx context.Context, caller auth.Principal, doctorID *uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	if caller.Role == auth.RoleDoctor {
		id, err := s.doctors.DoctorIDForUser(ctx, caller.UserID)
		if err != nil {
			return nil, 0, err
		}
		doctorID = &id
	}
	return s.slots.List(ctx, doctorID, limit, offset)
}

// SearchAvailable lists bookable slots: unlocked and starting in the future.
func (s *Service) SearchAvailable(ctx context.Context, f AvailabilityFilter, limit, offset int) ([]*AvailableSlot, int, error) {
	f.After = s.now()
	return s.slots.SearchAvailable(ctx, f, limit, offset)
}

// DoctorsWithAvailability groups bookable slots by doctor.
func (s *Service) DoctorsWithAvailability(ctx context.Context, f AvailabilityFilter, limit, offset int) ([]*DoctorAvailability, int, error) {
	slots, total, err := s.SearchAvailable(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	byDoctor := make(map[uuid.UUID]*DoctorAvailability)
	var doctors []*DoctorAvailability
	for _, slot := range slots {
		d, ok := byDoctor[slot.DoctorID]
		if !ok {
			d = &DoctorAvailability{
				DoctorID:   slot.DoctorID,
				DoctorName: slot.DoctorName,
				CRM:        slot.CRM,
				Specialty:  slot.Specialty,
				Fee:        slot.Fee,
			}
			byDoctor[slot.DoctorID] = d
			doctors = append(doctors, d)
		}
		d.Slots = append(d.Slots, slot)
	}
	return doctors, total, nil
}

// -- Appointments --

// Book reserves a slot for a patient. The slot lock is acquired with an
// atomic conditional update before the appointment is written, so at most
// one concurrent booking per slot succeeds.
func (s *Service) Book(ctx context.Context, caller auth.Principal, in NewAppointment) (*Appointment, error) {
	patientID := in.PatientID
	if caller.Role == auth.RolePatient {
		var err error
		patientID, err = s.patients.PatientIDForUser(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
	}
	if patientID == uuid.Nil {
		return nil, apperror.Validation("patient_id is required")
	}
	if in.SlotID == uuid.Nil {
		return nil, apperror.Validation("slot_id is required")
	}

	slot, err := s.slots.GetByID(ctx, in.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.Locked {
		return nil, apperror.Conflict("slot is already booked")
	}
	if in.DoctorID != uuid.Nil && in.DoctorID != slot.DoctorID {
		return nil, apperror.Validation("doctor_id does not match the slot's doctor")
	}

	if err := s.slots.Lock(ctx, slot.ID); err != nil {
		return nil, err
	}

	appt := &Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  slot.DoctorID,
		SlotID:    slot.ID,
		Status:    StatusPending,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		// Release the lock so the slot is not stranded by a failed write.
		_ = s.slots.Unlock(ctx, slot.ID)
		return nil, err
	}
	return appt, nil
}

// List returns appointments visible to the caller: patients see their own,
// doctors see their agenda's, administrators see everything.
func (s *Service) List(ctx context.Context, caller auth.Principal, status *Status, limit, offset int) ([]*Appointment, int, error) {
	f := AppointmentFilter{Status: status}
	switch caller.Role {
	case auth.RolePatient:
		id, err := s.patients.PatientIDForUser(ctx, caller.UserID)
		if err != nil {
			return nil, 0, err
		}
		f.PatientID = &id
	case auth.RoleDoctor:
		id, err := s.doctors.DoctorIDForUser(ctx, caller.UserID)
		if err != nil {
			return nil, 0, err
		}
		f.DoctorID = &id
	}
	return s.appointments.List(ctx, f, limit, offset)
}

// getScoped fetches an appointment and hides it from callers outside its
// scope. Out-of-scope reads report not-found rather than forbidden so the
// response never confirms the record exists.
func (s *Service) getScoped(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch caller.Role {
	case auth.RolePatient:
		pid, err := s.patients.PatientIDForUser(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if appt.PatientID != pid {
			return nil, apperror.NotFound("appointment not found")
		}
	case auth.RoleDoctor:
		did, err := s.doctors.DoctorIDForUser(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if appt.DoctorID != did {
			return nil, apperror.NotFound("appointment not found")
		}
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Appointment, error) {
	return s.getScoped(ctx, caller, id)
}

// Decide applies the doctor's accept or refuse decision to a pending
// appointment. Refusal leaves the slot locked, matching cancel's monopoly on
// unlocking.
func (s *Service) Decide(ctx context.Context, caller auth.Principal, id uuid.UUID, decision string) (*Appointment, error) {
	next, err := ParseDecision(decision)
	if err != nil {
		return nil, err
	}

	appt, err := s.getScoped(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusPending {
		return nil, apperror.Conflict("only pending appointments can be accepted or refused")
	}

	appt.Status = next
	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// Cancel moves a pending or scheduled appointment to cancelled, records the
// reason and always releases the backing slot.
func (s *Service) Cancel(ctx context.Context, caller auth.Principal, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.getScoped(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusPending && appt.Status != StatusScheduled {
		return nil, apperror.Conflict("only pending or scheduled appointments can be cancelled")
	}

	appt.Status = StatusCancelled
	appt.CancelReason = &reason
	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, err
	}
	if err := s.slots.Unlock(ctx, appt.SlotID); err != nil {
		return nil, err
	}
	return appt, nil
}

// Update is the administrative sparse reassignment. It bypasses the state
// machine and never touches slot lock state.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.PatientID != nil {
		appt.PatientID = *patch.PatientID
	}
	if patch.DoctorID != nil {
		appt.DoctorID = *patch.DoctorID
	}
	if patch.SlotID != nil {
		appt.SlotID = *patch.SlotID
	}

	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// Delete removes the appointment record. The backing slot's lock state is
// deliberately left alone; only Cancel releases slots.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Delete(ctx, id)
}
