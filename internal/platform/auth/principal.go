package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of caller roles. Authorization decisions switch
// exhaustively over this type; there are no free-form role strings.
type Role int

const (
	RolePatient Role = iota
	RoleDoctor
	RoleAdministrator
)

// ParseRole maps a stored role name to its Role. Accepts the English names
// and the legacy Portuguese ones carried over from older databases.
func ParseRole(s string) (Role, error) {
	switch s {
	case "patient", "Paciente":
		return RolePatient, nil
	case "doctor", "Médico", "Medico":
		return RoleDoctor, nil
	case "administrator", "Administrador":
		return RoleAdministrator, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleDoctor:
		return "doctor"
	case RoleAdministrator:
		return "administrator"
	}
	return "unknown"
}

// MarshalJSON serialises the role name.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON parses a role name.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID uuid.UUID
	Name   string
	Role   Role
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the request principal. The second return is
// false when the request was never authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
