package identity

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthmed/healthmed/internal/platform/auth"
	"github.com/healthmed/healthmed/pkg/apperror"
)

type Service struct {
	users    UserRepository
	doctors  DoctorRepository
	patients PatientRepository
}

func NewService(users UserRepository, doctors DoctorRepository, patients PatientRepository) *Service {
	return &Service{users: users, doctors: doctors, patients: patients}
}

// isCPF reports whether s is exactly eleven digits.
func isCPF(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// CreateUser registers a user and, for doctors and patients, the matching
// extension record.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	if in.Name == "" {
		return nil, apperror.Validation("name is required")
	}
	if !isCPF(in.CPF) {
		return nil, apperror.Validation("cpf must be exactly 11 digits")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, apperror.Validation("email is invalid")
	}
	if in.Password == "" {
		return nil, apperror.Validation("password is required")
	}
	if in.Role == auth.RoleDoctor {
		if in.CRM == "" {
			return nil, apperror.Validation("crm is required for doctors")
		}
		if in.Specialty == "" {
			return nil, apperror.Validation("specialty is required for doctors")
		}
		if in.Fee == nil || *in.Fee < 0 {
			return nil, apperror.Validation("fee is required for doctors and must not be negative")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	u := &User{
		ID:           uuid.New(),
		Name:         in.Name,
		CPF:          in.CPF,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	switch in.Role {
	case auth.RoleDoctor:
		d := &Doctor{
			ID:        uuid.New(),
			UserID:    u.ID,
			CRM:       in.CRM,
			Specialty: in.Specialty,
			Fee:       *in.Fee,
		}
		if err := s.doctors.Create(ctx, d); err != nil {
			return nil, err
		}
	case auth.RolePatient:
		p := &Patient{ID: uuid.New(), UserID: u.ID}
		if err := s.patients.Create(ctx, p); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// UpdateUser applies a sparse patch. Fields left nil keep their stored value.
// Roles are fixed at registration and cannot be patched.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, apperror.Validation("name must not be empty")
		}
		u.Name = *patch.Name
	}
	if patch.CPF != nil {
		if !isCPF(*patch.CPF) {
			return nil, apperror.Validation("cpf must be exactly 11 digits")
		}
		u.CPF = *patch.CPF
	}
	if patch.Email != nil {
		if !strings.Contains(*patch.Email, "@") {
			return nil, apperror.Validation("email is invalid")
		}
		u.Email = *patch.Email
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return nil, apperror.Validation("password must not be empty")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		u.PasswordHash = string(hash)
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*DoctorListing, int, error) {
	return s.doctors.Search(ctx, f, limit, offset)
}

// Authenticate resolves a login identifier to a user and checks the password.
// Identifiers containing "@" are emails, eleven-digit identifiers are CPFs,
// anything else is a doctor CRM.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (auth.Principal, error) {
	if identifier == "" || password == "" {
		return auth.Principal{}, apperror.Unauthorized("invalid credentials")
	}

	var u *User
	var err error
	switch {
	case strings.Contains(identifier, "@"):
		u, err = s.users.GetByEmail(ctx, identifier)
	case isCPF(identifier):
		u, err = s.users.GetByCPF(ctx, identifier)
	default:
		var d *Doctor
		d, err = s.doctors.GetByCRM(ctx, identifier)
		if err == nil {
			u, err = s.users.GetByID(ctx, d.UserID)
		}
	}
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return auth.Principal{}, apperror.Unauthorized("invalid credentials")
		}
		return auth.Principal{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return auth.Principal{}, apperror.Unauthorized("invalid credentials")
	}
	return auth.Principal{UserID: u.ID, Name: u.Name, Role: u.Role}, nil
}

// DoctorIDForUser maps an authenticated doctor's user id to their doctor id.
func (s *Service) DoctorIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	d, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return d.ID, nil
}

// PatientIDForUser maps an authenticated patient's user id to their patient id.
func (s *Service) PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	p, err := s.patients.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}
