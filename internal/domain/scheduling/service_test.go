package scheduling

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthmed/healthmed/internal/platform/auth"
	"github.com/healthmed/healthmed/pkg/apperror"
)

// -- Mock Repositories --

type mockSlotRepo struct {
	slots map[uuid.UUID]*Slot
	// doctorNames feeds the joined fields of SearchAvailable.
	doctorNames map[uuid.UUID]string
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{
		slots:       make(map[uuid.UUID]*Slot),
		doctorNames: make(map[uuid.UUID]string),
	}
}

func (m *mockSlotRepo) Create(_ context.Context, s *Slot) error {
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	m.slots[s.ID] = s
	return nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, apperror.NotFound("slot not found")
	}
	return s, nil
}

func (m *mockSlotRepo) List(_ context.Context, doctorID *uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	var result []*Slot
	for _, s := range m.slots {
		if doctorID == nil || s.DoctorID == *doctorID {
			result = append(result, s)
		}
	}
	return result, len(result), nil
}

func (m *mockSlotRepo) Update(_ context.Context, s *Slot) error {
	if _, ok := m.slots[s.ID]; !ok {
		return apperror.NotFound("slot not found")
	}
	s.UpdatedAt = time.Now()
	m.slots[s.ID] = s
	return nil
}

func (m *mockSlotRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.slots[id]; !ok {
		return apperror.NotFound("slot not found")
	}
	delete(m.slots, id)
	return nil
}

func (m *mockSlotRepo) Lock(_ context.Context, id uuid.UUID) error {
	s, ok := m.slots[id]
	if !ok {
		return apperror.NotFound("slot not found")
	}
	if s.Locked {
		return apperror.Conflict("slot is already booked")
	}
	s.Locked = true
	return nil
}

func (m *mockSlotRepo) Unlock(_ context.Context, id uuid.UUID) error {
	s, ok := m.slots[id]
	if !ok {
		return apperror.NotFound("slot not found")
	}
	s.Locked = false
	return nil
}

func (m *mockSlotRepo) SearchAvailable(_ context.Context, f AvailabilityFilter, limit, offset int) ([]*AvailableSlot, int, error) {
	var result []*AvailableSlot
	for _, s := range m.slots {
		if s.Locked || !s.StartTime.After(f.After) {
			continue
		}
		if f.DoctorID != nil && s.DoctorID != *f.DoctorID {
			continue
		}
		if f.Name != "" && !strings.Contains(strings.ToLower(m.doctorNames[s.DoctorID]), strings.ToLower(f.Name)) {
			continue
		}
		result = append(result, &AvailableSlot{
			SlotID:     s.ID,
			DoctorID:   s.DoctorID,
			DoctorName: m.doctorNames[s.DoctorID],
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
		})
	}
	return result, len(result), nil
}

type mockApptRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, apperror.NotFound("appointment not found")
	}
	return a, nil
}

func (m *mockApptRepo) List(_ context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		result = append(result, a)
	}
	return result, len(result), nil
}

func (m *mockApptRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return apperror.NotFound("appointment not found")
	}
	a.UpdatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.appts[id]; !ok {
		return apperror.NotFound("appointment not found")
	}
	delete(m.appts, id)
	return nil
}

// mockDirectory maps authenticated users to their doctor or patient records.
type mockDirectory struct {
	doctors  map[uuid.UUID]uuid.UUID
	patients map[uuid.UUID]uuid.UUID
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		doctors:  make(map[uuid.UUID]uuid.UUID),
		patients: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *mockDirectory) DoctorIDForUser(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	id, ok := m.doctors[userID]
	if !ok {
		return uuid.Nil, apperror.NotFound("doctor not found")
	}
	return id, nil
}

func (m *mockDirectory) PatientIDForUser(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	id, ok := m.patients[userID]
	if !ok {
		return uuid.Nil, apperror.NotFound("patient not found")
	}
	return id, nil
}

// -- Test fixture --

type fixture struct {
	svc   *Service
	slots *mockSlotRepo
	appts *mockApptRepo
	dir   *mockDirectory

	admin   auth.Principal
	doctor  auth.Principal
	patient auth.Principal

	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newFixture() *fixture {
	slots := newMockSlotRepo()
	appts := newMockApptRepo()
	dir := newMockDirectory()

	f := &fixture{
		svc:       NewService(slots, appts, dir, dir),
		slots:     slots,
		appts:     appts,
		dir:       dir,
		admin:     auth.Principal{UserID: uuid.New(), Role: auth.RoleAdministrator},
		doctor:    auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor},
		patient:   auth.Principal{UserID: uuid.New(), Role: auth.RolePatient},
		doctorID:  uuid.New(),
		patientID: uuid.New(),
	}
	dir.doctors[f.doctor.UserID] = f.doctorID
	dir.patients[f.patient.UserID] = f.patientID
	return f
}

func (f *fixture) addSlot(t *testing.T, start time.Time) *Slot {
	t.Helper()
	slot := &Slot{
		ID:        uuid.New(),
		DoctorID:  f.doctorID,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
	}
	if err := f.slots.Create(context.Background(), slot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return slot
}

func (f *fixture) book(t *testing.T, slotID uuid.UUID) *Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), f.patient, NewAppointment{SlotID: slotID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return appt
}

// -- Booking --

func TestBook(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))

	appt := f.book(t, slot.ID)

	if appt.Status != StatusPending {
		t.Errorf("expected status pending, got %s", appt.Status)
	}
	if appt.PatientID != f.patientID {
		t.Error("expected patient id resolved from the caller")
	}
	if appt.DoctorID != f.doctorID {
		t.Error("expected doctor id taken from the slot")
	}
	if !slot.Locked {
		t.Error("expected slot to be locked after booking")
	}
}

func TestBook_SlotNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Book(context.Background(), f.patient, NewAppointment{SlotID: uuid.New()})
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestBook_LockedSlotConflicts(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	f.book(t, slot.ID)

	_, err := f.svc.Book(context.Background(), f.patient, NewAppointment{SlotID: slot.ID})
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if appts, _, _ := f.appts.List(context.Background(), AppointmentFilter{}, 100, 0); len(appts) != 1 {
		t.Errorf("expected exactly one appointment for the slot, got %d", len(appts))
	}
}

func TestBook_RaceLoserGetsConflict(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))

	// Simulate a second booker winning the lock between the availability
	// read and the conditional update.
	slot.Locked = false
	if err := f.slots.Lock(context.Background(), slot.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := f.svc.Book(context.Background(), f.patient, NewAppointment{SlotID: slot.ID})
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestBook_AdminNamesPatient(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))

	appt, err := f.svc.Book(context.Background(), f.admin, NewAppointment{
		PatientID: f.patientID,
		SlotID:    slot.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.PatientID != f.patientID {
		t.Error("expected admin-supplied patient id")
	}
}

func TestBook_AdminPatientRequired(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))

	_, err := f.svc.Book(context.Background(), f.admin, NewAppointment{SlotID: slot.ID})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestBook_DoctorMismatch(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))

	_, err := f.svc.Book(context.Background(), f.patient, NewAppointment{
		DoctorID: uuid.New(),
		SlotID:   slot.ID,
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if slot.Locked {
		t.Error("expected slot to stay unlocked after rejected booking")
	}
}

// -- Decisions --

func TestDecide_Accept(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	decided, err := f.svc.Decide(context.Background(), f.doctor, appt.ID, "aceito")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decided.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", decided.Status)
	}
}

func TestDecide_Refuse(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	decided, err := f.svc.Decide(context.Background(), f.doctor, appt.ID, "recusado")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decided.Status != StatusRefused {
		t.Errorf("expected refused, got %s", decided.Status)
	}
	if !slot.Locked {
		t.Error("expected refusal to leave the slot locked")
	}
}

func TestDecide_CaseInsensitive(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	decided, err := f.svc.Decide(context.Background(), f.doctor, appt.ID, "ACEITO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decided.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", decided.Status)
	}
}

func TestDecide_UnknownToken(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	_, err := f.svc.Decide(context.Background(), f.doctor, appt.ID, "maybe")
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if appt.Status != StatusPending {
		t.Error("expected no state change on invalid token")
	}
}

func TestDecide_NotPending(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)
	f.svc.Decide(context.Background(), f.doctor, appt.ID, "aceito")

	_, err := f.svc.Decide(context.Background(), f.doctor, appt.ID, "recusado")
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestDecide_OtherDoctorSeesNotFound(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	other := auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor}
	f.dir.doctors[other.UserID] = uuid.New()

	_, err := f.svc.Decide(context.Background(), other, appt.ID, "aceito")
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("expected not found for out-of-scope appointment, got %v", err)
	}
}

// -- Cancellation --

func TestCancel_PendingUnlocksSlot(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	cancelled, err := f.svc.Cancel(context.Background(), f.patient, appt.ID, "schedule conflict")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "schedule conflict" {
		t.Error("expected cancellation reason recorded")
	}
	if slot.Locked {
		t.Error("expected slot unlocked after cancel")
	}
}

func TestCancel_Scheduled(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)
	f.svc.Decide(context.Background(), f.doctor, appt.ID, "aceito")

	cancelled, err := f.svc.Cancel(context.Background(), f.patient, appt.ID, "no longer needed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestCancel_TerminalStateConflicts(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)
	f.svc.Cancel(context.Background(), f.patient, appt.ID, "first")

	_, err := f.svc.Cancel(context.Background(), f.patient, appt.ID, "second")
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestCancel_OtherPatientSeesNotFound(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	other := auth.Principal{UserID: uuid.New(), Role: auth.RolePatient}
	f.dir.patients[other.UserID] = uuid.New()

	_, err := f.svc.Cancel(context.Background(), other, appt.ID, "not mine")
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("expected not found for out-of-scope appointment, got %v", err)
	}
}

// -- Listing scope --

func TestList_ScopedByRole(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	f.book(t, slot.ID)

	// A second doctor/patient pair with their own appointment.
	otherDoctor := auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor}
	otherPatient := auth.Principal{UserID: uuid.New(), Role: auth.RolePatient}
	f.dir.doctors[otherDoctor.UserID] = uuid.New()
	f.dir.patients[otherPatient.UserID] = uuid.New()
	otherSlot := &Slot{
		ID:        uuid.New(),
		DoctorID:  f.dir.doctors[otherDoctor.UserID],
		StartTime: time.Now().Add(2 * time.Hour),
		EndTime:   time.Now().Add(3 * time.Hour),
	}
	f.slots.Create(context.Background(), otherSlot)
	if _, err := f.svc.Book(context.Background(), otherPatient, NewAppointment{SlotID: otherSlot.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mine, _, err := f.svc.List(context.Background(), f.patient, nil, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 1 || mine[0].PatientID != f.patientID {
		t.Error("expected patient to see only their own appointments")
	}

	doctors, _, err := f.svc.List(context.Background(), f.doctor, nil, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doctors) != 1 || doctors[0].DoctorID != f.doctorID {
		t.Error("expected doctor to see only their agenda's appointments")
	}

	all, _, err := f.svc.List(context.Background(), f.admin, nil, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected admin to see all appointments, got %d", len(all))
	}
}

func TestList_StatusFilter(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)
	f.svc.Decide(context.Background(), f.doctor, appt.ID, "aceito")

	status := StatusPending
	appts, _, err := f.svc.List(context.Background(), f.admin, &status, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(appts) != 0 {
		t.Errorf("expected no pending appointments, got %d", len(appts))
	}
}

// -- Administrative update and delete --

func TestUpdate_SparseMerge(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	newPatient := uuid.New()
	updated, err := f.svc.Update(context.Background(), appt.ID, AppointmentPatch{PatientID: &newPatient})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PatientID != newPatient {
		t.Error("expected patient reassignment applied")
	}
	if updated.DoctorID != f.doctorID || updated.SlotID != slot.ID {
		t.Error("expected unset fields to keep their stored values")
	}
}

func TestUpdate_EmptyPatchIsNoop(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	updated, err := f.svc.Update(context.Background(), appt.ID, AppointmentPatch{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PatientID != appt.PatientID || updated.DoctorID != appt.DoctorID || updated.SlotID != appt.SlotID {
		t.Error("expected empty patch to change nothing")
	}
}

func TestDelete_LeavesSlotLocked(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))
	appt := f.book(t, slot.ID)

	if err := f.svc.Delete(context.Background(), appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.appts.GetByID(context.Background(), appt.ID); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Error("expected appointment removed")
	}
	if !slot.Locked {
		t.Error("expected delete to leave the slot lock untouched")
	}
}

// -- Slots --

func TestCreateSlot_DoctorOwnAgenda(t *testing.T) {
	f := newFixture()
	start := time.Now().Add(time.Hour)

	slot, err := f.svc.CreateSlot(context.Background(), f.doctor, NewSlot{
		DoctorID:  uuid.New(), // ignored for doctors
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.DoctorID != f.doctorID {
		t.Error("expected doctor to publish into their own agenda")
	}
	if slot.Locked {
		t.Error("expected new slot to start unlocked")
	}
}

func TestCreateSlot_AdminNamesDoctor(t *testing.T) {
	f := newFixture()
	start := time.Now().Add(time.Hour)

	slot, err := f.svc.CreateSlot(context.Background(), f.admin, NewSlot{
		DoctorID:  f.doctorID,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.DoctorID != f.doctorID {
		t.Error("expected admin-supplied doctor id")
	}
}

func TestCreateSlot_EndBeforeStart(t *testing.T) {
	f := newFixture()
	start := time.Now().Add(time.Hour)

	_, err := f.svc.CreateSlot(context.Background(), f.doctor, NewSlot{
		StartTime: start,
		EndTime:   start.Add(-time.Minute),
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateSlot_SparsePatch(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))

	newEnd := slot.EndTime.Add(time.Hour)
	updated, err := f.svc.UpdateSlot(context.Background(), slot.ID, SlotPatch{EndTime: &newEnd})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.EndTime.Equal(newEnd) {
		t.Error("expected end time updated")
	}
	if !updated.StartTime.Equal(slot.StartTime) {
		t.Error("expected start time unchanged")
	}
}

func TestListSlots_AdminSeesAllDoctors(t *testing.T) {
	f := newFixture()
	f.addSlot(t, time.Now().Add(time.Hour))
	other := &Slot{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		StartTime: time.Now().Add(2 * time.Hour),
		EndTime:   time.Now().Add(3 * time.Hour),
	}
	if err := f.slots.Create(context.Background(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slots, total, err := f.svc.ListSlots(context.Background(), f.admin, nil, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(slots) != 2 {
		t.Errorf("expected admin to list every doctor's slots, got %d", len(slots))
	}
}

func TestListSlots_AdminNarrowsByDoctor(t *testing.T) {
	f := newFixture()
	mine := f.addSlot(t, time.Now().Add(time.Hour))
	other := &Slot{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		StartTime: time.Now().Add(2 * time.Hour),
		EndTime:   time.Now().Add(3 * time.Hour),
	}
	if err := f.slots.Create(context.Background(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slots, _, err := f.svc.ListSlots(context.Background(), f.admin, &f.doctorID, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 1 || slots[0].ID != mine.ID {
		t.Errorf("expected only the named doctor's slots, got %d", len(slots))
	}
}

func TestListSlots_DoctorScopedToOwnAgenda(t *testing.T) {
	f := newFixture()
	mine := f.addSlot(t, time.Now().Add(time.Hour))
	otherDoctor := uuid.New()
	other := &Slot{
		ID:        uuid.New(),
		DoctorID:  otherDoctor,
		StartTime: time.Now().Add(2 * time.Hour),
		EndTime:   time.Now().Add(3 * time.Hour),
	}
	if err := f.slots.Create(context.Background(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A doctor's filter argument is overridden with their own agenda.
	slots, _, err := f.svc.ListSlots(context.Background(), f.doctor, &otherDoctor, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 1 || slots[0].ID != mine.ID {
		t.Errorf("expected the doctor's own slots only, got %d", len(slots))
	}
}

func TestSearchAvailable_FutureAndUnlockedOnly(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.svc.WithClock(func() time.Time { return now })

	future := f.addSlot(t, now.Add(time.Hour))
	f.addSlot(t, now.Add(-time.Hour)) // past
	booked := f.addSlot(t, now.Add(2*time.Hour))
	f.book(t, booked.ID)

	slots, _, err := f.svc.SearchAvailable(context.Background(), AvailabilityFilter{}, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 1 || slots[0].SlotID != future.ID {
		t.Errorf("expected only the future unlocked slot, got %d", len(slots))
	}
}

func TestDoctorsWithAvailability_GroupsByDoctor(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.svc.WithClock(func() time.Time { return now })
	f.slots.doctorNames[f.doctorID] = "Dr. Souza"

	f.addSlot(t, now.Add(time.Hour))
	f.addSlot(t, now.Add(2*time.Hour))

	doctors, _, err := f.svc.DoctorsWithAvailability(context.Background(), AvailabilityFilter{}, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doctors) != 1 {
		t.Fatalf("expected one doctor, got %d", len(doctors))
	}
	if doctors[0].DoctorName != "Dr. Souza" {
		t.Errorf("expected doctor name carried over, got %q", doctors[0].DoctorName)
	}
	if len(doctors[0].Slots) != 2 {
		t.Errorf("expected both slots grouped under the doctor, got %d", len(doctors[0].Slots))
	}

	none, _, err := f.svc.DoctorsWithAvailability(context.Background(), AvailabilityFilter{Name: "garcia"}, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected name filter to exclude the doctor, got %d", len(none))
	}
}

// -- Full lifecycle --

func TestBookingLifecycle(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(t, time.Now().Add(time.Hour))

	appt := f.book(t, slot.ID)
	if appt.Status != StatusPending || !slot.Locked {
		t.Fatal("expected pending appointment on a locked slot")
	}

	if _, err := f.svc.Book(context.Background(), f.patient, NewAppointment{SlotID: slot.ID}); !apperror.IsKind(err, apperror.KindConflict) {
		t.Fatalf("expected conflict on re-booking, got %v", err)
	}

	accepted, err := f.svc.Decide(context.Background(), f.doctor, appt.ID, "aceito")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted.Status != StatusScheduled {
		t.Fatalf("expected scheduled, got %s", accepted.Status)
	}

	cancelled, err := f.svc.Cancel(context.Background(), f.patient, appt.ID, "travel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if slot.Locked {
		t.Fatal("expected slot released after cancellation")
	}
}
