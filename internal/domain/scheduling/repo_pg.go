package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthmed/healthmed/pkg/apperror"
)

const slotColumns = `id, doctor_id, start_time, end_time, locked, created_at, updated_at`

type PgSlotRepository struct {
	pool *pgxpool.Pool
}

func NewPgSlotRepository(pool *pgxpool.Pool) *PgSlotRepository {
	return &PgSlotRepository{pool: pool}
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.StartTime, &s.EndTime, &s.Locked, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgSlotRepository) Create(ctx context.Context, s *Slot) error {
	query := `
		INSERT INTO slots (id, doctor_id, start_time, end_time, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		s.ID, s.DoctorID, s.StartTime, s.EndTime, s.Locked,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

func (r *PgSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	s, err := scanSlot(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("slot not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return s, nil
}

func (r *PgSlotRepository) List(ctx context.Context, doctorID *uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	where := ``
	args := []interface{}{}
	idx := 1

	if doctorID != nil {
		where = fmt.Sprintf(" WHERE doctor_id = $%d", idx)
		args = append(args, *doctorID)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM slots`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count slots: %w", err)
	}

	query := `SELECT ` + slotColumns + ` FROM slots` + where +
		fmt.Sprintf(" ORDER BY start_time LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, total, rows.Err()
}

func (r *PgSlotRepository) Update(ctx context.Context, s *Slot) error {
	query := `
		UPDATE slots
		SET start_time = $2, end_time = $3, locked = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query, s.ID, s.StartTime, s.EndTime, s.Locked).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("slot not found")
	}
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	return nil
}

func (r *PgSlotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("slot not found")
	}
	return nil
}

// Lock flips locked from false to true in one statement. A zero row count
// means the slot was missing or already held, so the two cases are told
// apart with a follow-up read.
func (r *PgSlotRepository) Lock(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE slots SET locked = true, updated_at = now() WHERE id = $1 AND locked = false`, id)
	if err != nil {
		return fmt.Errorf("lock slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return apperror.Conflict("slot is already booked")
}

func (r *PgSlotRepository) Unlock(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE slots SET locked = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("unlock slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("slot not found")
	}
	return nil
}

func (r *PgSlotRepository) SearchAvailable(ctx context.Context, f AvailabilityFilter, limit, offset int) ([]*AvailableSlot, int, error) {
	where := ` WHERE s.locked = false AND s.start_time > $1`
	args := []interface{}{f.After}
	idx := 2

	if f.DoctorID != nil {
		where += fmt.Sprintf(" AND s.doctor_id = $%d", idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Name != "" {
		where += fmt.Sprintf(" AND u.name ILIKE $%d", idx)
		args = append(args, "%"+f.Name+"%")
		idx++
	}
	if f.Specialty != "" {
		where += fmt.Sprintf(" AND d.specialty ILIKE $%d", idx)
		args = append(args, "%"+f.Specialty+"%")
		idx++
	}
	if f.CRM != "" {
		where += fmt.Sprintf(" AND d.crm ILIKE $%d", idx)
		args = append(args, "%"+f.CRM+"%")
		idx++
	}

	from := ` FROM slots s
		JOIN doctors d ON d.id = s.doctor_id
		JOIN users u ON u.id = d.user_id`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count available slots: %w", err)
	}

	query := `
		SELECT s.id, d.id, u.name, d.crm, d.specialty, d.fee, s.start_time, s.end_time` +
		from + where +
		fmt.Sprintf(" ORDER BY s.start_time LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search available slots: %w", err)
	}
	defer rows.Close()

	var slots []*AvailableSlot
	for rows.Next() {
		var a AvailableSlot
		if err := rows.Scan(&a.SlotID, &a.DoctorID, &a.DoctorName, &a.CRM, &a.Specialty, &a.Fee, &a.StartTime, &a.EndTime); err != nil {
			return nil, 0, fmt.Errorf("scan available slot: %w", err)
		}
		slots = append(slots, &a)
	}
	return slots, total, rows.Err()
}

const appointmentColumns = `id, patient_id, doctor_id, slot_id, status, cancel_reason, created_at, updated_at`

type PgAppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewPgAppointmentRepository(pool *pgxpool.Pool) *PgAppointmentRepository {
	return &PgAppointmentRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SlotID, &status, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status, err = ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PgAppointmentRepository) Create(ctx context.Context, a *Appointment) error {
	query := `
		INSERT INTO appointments (id, patient_id, doctor_id, slot_id, status, cancel_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		a.ID, a.PatientID, a.DoctorID, a.SlotID, string(a.Status), a.CancelReason,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (r *PgAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	a, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *PgAppointmentRepository) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		where += fmt.Sprintf(" AND doctor_id = $%d", idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, string(*f.Status))
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}
	return appointments, total, rows.Err()
}

func (r *PgAppointmentRepository) Update(ctx context.Context, a *Appointment) error {
	query := `
		UPDATE appointments
		SET patient_id = $2, doctor_id = $3, slot_id = $4, status = $5, cancel_reason = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		a.ID, a.PatientID, a.DoctorID, a.SlotID, string(a.Status), a.CancelReason,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("appointment not found")
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *PgAppointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("appointment not found")
	}
	return nil
}
