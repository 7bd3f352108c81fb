package model

// Role is a user's access role
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	RolePharmacist   Role = "pharmacist"
	RolePatient      Role = "patient"
)

// StaffRoles are every role except patient
var StaffRoles = []Role{RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist, RolePharmacist}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist, RolePharmacist, RolePatient:
		return true
	}
	return false
}

// User represents a system user. Users are never hard-deleted; IsActive is
// flipped instead.
type User struct {
	Base
	Username     string  `json:"username" db:"username"`
	Email        string  `json:"email" db:"email"`
	PasswordHash string  `json:"-" db:"password_hash"`
	Role         Role    `json:"role" db:"role"`
	FirstName    string  `json:"first_name" db:"first_name"`
	LastName     string  `json:"last_name" db:"last_name"`
	Phone        *string `json:"phone,omitempty" db:"phone"`
	IsActive     bool    `json:"is_active" db:"is_active"`
}
