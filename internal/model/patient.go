package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PatientNumberPrefix prefixes the externally visible patient identifier
const PatientNumberPrefix = "PAT"

// FormatPatientNumber renders a sequence value as PAT######
func FormatPatientNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", PatientNumberPrefix, seq)
}

// Patient extends a User one-to-one. PatientNumber is assigned once at
// registration and never changes.
type Patient struct {
	Base
	UserID                uuid.UUID `db:"user_id" json:"user_id"`
	PatientNumber         string    `db:"patient_number" json:"patient_id"`
	DateOfBirth           *Date     `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender                string    `db:"gender" json:"gender,omitempty"`
	BloodType             string    `db:"blood_type" json:"blood_type,omitempty"`
	Allergies             string    `db:"allergies" json:"allergies,omitempty"`
	MedicalHistory        string    `db:"medical_history" json:"medical_history,omitempty"`
	InsuranceProvider     string    `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsuranceNumber       string    `db:"insurance_number" json:"insurance_number,omitempty"`
	EmergencyContactName  string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	Address               string    `db:"address" json:"address,omitempty"`

	// joined from users
	FirstName string  `db:"first_name" json:"first_name"`
	LastName  string  `db:"last_name" json:"last_name"`
	Email     string  `db:"email" json:"email"`
	Phone     *string `db:"phone" json:"phone,omitempty"`
	IsActive  bool    `db:"is_active" json:"is_active"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type RegisterPatientRequest struct {
	FirstName             string  `json:"first_name" binding:"required,max=100"`
	LastName              string  `json:"last_name" binding:"required,max=100"`
	Email                 string  `json:"email" binding:"required,email"`
	Phone                 *string `json:"phone" binding:"omitempty,max=30"`
	DateOfBirth           *Date   `json:"date_of_birth"`
	Gender                string  `json:"gender" binding:"omitempty,oneof=male female other"`
	BloodType             string  `json:"blood_type" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies             string  `json:"allergies" binding:"max=2000"`
	MedicalHistory        string  `json:"medical_history" binding:"max=10000"`
	InsuranceProvider     string  `json:"insurance_provider" binding:"max=200"`
	InsuranceNumber       string  `json:"insurance_number" binding:"max=100"`
	EmergencyContactName  string  `json:"emergency_contact_name" binding:"max=200"`
	EmergencyContactPhone string  `json:"emergency_contact_phone" binding:"max=30"`
	Address               string  `json:"address" binding:"max=500"`
}

type UpdatePatientRequest struct {
	FirstName             *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName              *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Email                 *string `json:"email" binding:"omitempty,email"`
	Phone                 *string `json:"phone" binding:"omitempty,max=30"`
	DateOfBirth           *Date   `json:"date_of_birth"`
	Gender                *string `json:"gender" binding:"omitempty,oneof=male female other"`
	BloodType             *string `json:"blood_type" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies             *string `json:"allergies" binding:"omitempty,max=2000"`
	MedicalHistory        *string `json:"medical_history" binding:"omitempty,max=10000"`
	InsuranceProvider     *string `json:"insurance_provider" binding:"omitempty,max=200"`
	InsuranceNumber       *string `json:"insurance_number" binding:"omitempty,max=100"`
	EmergencyContactName  *string `json:"emergency_contact_name" binding:"omitempty,max=200"`
	EmergencyContactPhone *string `json:"emergency_contact_phone" binding:"omitempty,max=30"`
	Address               *string `json:"address" binding:"omitempty,max=500"`
}

// Empty reports whether no field was supplied
func (r *UpdatePatientRequest) Empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.Email == nil && r.Phone == nil &&
		r.DateOfBirth == nil && r.Gender == nil && r.BloodType == nil && r.Allergies == nil &&
		r.MedicalHistory == nil && r.InsuranceProvider == nil && r.InsuranceNumber == nil &&
		r.EmergencyContactName == nil && r.EmergencyContactPhone == nil && r.Address == nil
}

type PatientFilters struct {
	Search          string
	IncludeInactive bool
	Page
}
