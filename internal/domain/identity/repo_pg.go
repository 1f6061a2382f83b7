package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthmed/healthmed/internal/platform/auth"
	"github.com/healthmed/healthmed/pkg/apperror"
)

const userColumns = `id, name, cpf, email, password_hash, role, created_at, updated_at`

type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.CPF, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, name, cpf, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		u.ID, u.Name, u.CPF, u.Email, u.PasswordHash, u.Role.String(),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return apperror.Conflict("a user with this CPF or email already exists")
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *PgUserRepository) GetByCPF(ctx context.Context, cpf string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE cpf = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, cpf))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user by cpf: %w", err)
	}
	return u, nil
}

func (r *PgUserRepository) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *PgUserRepository) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET name = $2, cpf = $3, email = $4, password_hash = $5, role = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		u.ID, u.Name, u.CPF, u.Email, u.PasswordHash, u.Role.String(),
	).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("user not found")
	}
	if isUniqueViolation(err) {
		return apperror.Conflict("a user with this CPF or email already exists")
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *PgUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user not found")
	}
	return nil
}

const doctorColumns = `id, user_id, crm, specialty, fee, created_at, updated_at`

type PgDoctorRepository struct {
	pool *pgxpool.Pool
}

func NewPgDoctorRepository(pool *pgxpool.Pool) *PgDoctorRepository {
	return &PgDoctorRepository{pool: pool}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.CRM, &d.Specialty, &d.Fee, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PgDoctorRepository) Create(ctx context.Context, d *Doctor) error {
	query := `
		INSERT INTO doctors (id, user_id, crm, specialty, fee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		d.ID, d.UserID, d.CRM, d.Specialty, d.Fee,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if isUniqueViolation(err) {
		return apperror.Conflict("a doctor with this CRM already exists")
	}
	if err != nil {
		return fmt.Errorf("create doctor: %w", err)
	}
	return nil
}

func (r *PgDoctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE user_id = $1`

	d, err := scanDoctor(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("doctor not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor by user: %w", err)
	}
	return d, nil
}

func (r *PgDoctorRepository) GetByCRM(ctx context.Context, crm string) (*Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE lower(crm) = lower($1)`

	d, err := scanDoctor(r.pool.QueryRow(ctx, query, crm))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("doctor not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor by crm: %w", err)
	}
	return d, nil
}

func (r *PgDoctorRepository) Search(ctx context.Context, f DoctorFilter, limit, offset int) ([]*DoctorListing, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

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
	if f.ID != nil {
		where += fmt.Sprintf(" AND d.id = $%d", idx)
		args = append(args, *f.ID)
		idx++
	}

	countQuery := `SELECT COUNT(*) FROM doctors d JOIN users u ON u.id = d.user_id` + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	query := `
		SELECT d.id, u.name, u.email, d.crm, d.specialty, d.fee, d.created_at, d.updated_at
		FROM doctors d JOIN users u ON u.id = d.user_id` + where +
		fmt.Sprintf(" ORDER BY u.name LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search doctors: %w", err)
	}
	defer rows.Close()

	var doctors []*DoctorListing
	for rows.Next() {
		var d DoctorListing
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &d.CRM, &d.Specialty, &d.Fee, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		doctors = append(doctors, &d)
	}
	return doctors, total, rows.Err()
}

const patientColumns = `id, user_id, created_at, updated_at`

type PgPatientRepository struct {
	pool *pgxpool.Pool
}

func NewPgPatientRepository(pool *pgxpool.Pool) *PgPatientRepository {
	return &PgPatientRepository{pool: pool}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgPatientRepository) Create(ctx context.Context, p *Patient) error {
	query := `
		INSERT INTO patients (id, user_id, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, p.ID, p.UserID).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return apperror.Conflict("a patient record already exists for this user")
	}
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *PgPatientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE user_id = $1`

	p, err := scanPatient(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("patient not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get patient by user: %w", err)
	}
	return p, nil
}
