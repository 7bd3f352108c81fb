package model

import (
	"strings"

	"github.com/google/uuid"
)

// Staff is an employee record linked to a User. Appointments reference
// doctors by staff ID.
type Staff struct {
	Base
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	EmployeeID     string    `json:"employee_id" db:"employee_id"`
	Department     string    `json:"department" db:"department"`
	Specialization string    `json:"specialization" db:"specialization"`

	// joined from users
	Role      Role   `json:"role" db:"role"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	IsActive  bool   `json:"is_active" db:"is_active"`
}

func (s *Staff) IsDoctor() bool {
	return s.Role == RoleDoctor && s.IsActive
}

func (s *Staff) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}
