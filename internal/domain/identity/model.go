package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthmed/healthmed/internal/platform/auth"
)

// User maps to the users table.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	CPF          string    `db:"cpf" json:"cpf"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor extends a User with license and billing attributes. Every doctor has
// exactly one backing user with RoleDoctor.
type Doctor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	CRM       string    `db:"crm" json:"crm"`
	Specialty string    `db:"specialty" json:"specialty"`
	Fee       float64   `db:"fee" json:"fee"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Patient extends a User. Every patient has exactly one backing user with
// RolePatient.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DoctorListing is the joined doctor+user view returned by doctor searches.
type DoctorListing struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CRM       string    `json:"crm"`
	Specialty string    `json:"specialty"`
	Fee       float64   `json:"fee"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DoctorFilter narrows doctor searches. Name, Specialty and CRM are
// case-insensitive substring matches; ID is an exact match.
type DoctorFilter struct {
	Name      string
	Specialty string
	CRM       string
	ID        *uuid.UUID
}

// NewUser is the input for user registration.
type NewUser struct {
	Name     string    `json:"name"`
	CPF      string    `json:"cpf"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`

	// Required when Role is RoleDoctor.
	CRM       string   `json:"crm,omitempty"`
	Specialty string   `json:"specialty,omitempty"`
	Fee       *float64 `json:"fee,omitempty"`
}

// UserPatch lists the fields to change on an existing user. A nil field is
// left unchanged. Roles are fixed at registration.
type UserPatch struct {
	Name     *string `json:"name,omitempty"`
	CPF      *string `json:"cpf,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}
