package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type SlotRepository interface {
	Create(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// List returns slots ordered by start time. A nil doctorID lists every
	// doctor's slots.
	List(ctx context.Context, doctorID *uuid.UUID, limit, offset int) ([]*Slot, int, error)
	Update(ctx context.Context, s *Slot) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Lock acquires the slot atomically. It returns apperror.Conflict when
	// the slot is already locked, so two concurrent bookings cannot both
	// succeed.
	Lock(ctx context.Context, id uuid.UUID) error
	Unlock(ctx context.Context, id uuid.UUID) error

	SearchAvailable(ctx context.Context, f AvailabilityFilter, limit, offset int) ([]*AvailableSlot, int, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
}
