package model

import (
	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled || s == AppointmentStatusNoShow
}

type Appointment struct {
	Base
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Date            Date              `db:"appointment_date" json:"appointment_date"`
	Time            ClockTime         `db:"appointment_time" json:"appointment_time"`
	DurationMinutes int               `db:"duration_minutes" json:"duration"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Reason          string            `db:"reason" json:"reason,omitempty"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
}

// End returns the exclusive end of the appointment interval
func (a *Appointment) End() ClockTime {
	return a.Time.Add(a.DurationMinutes)
}

type CreateAppointmentRequest struct {
	PatientID uuid.UUID  `json:"patient_id" binding:"required"`
	DoctorID  uuid.UUID  `json:"doctor_id" binding:"required"`
	Date      Date       `json:"appointment_date"`
	Time      *ClockTime `json:"appointment_time" binding:"required"`
	Duration  *int       `json:"duration" binding:"omitempty,min=15,max=240"`
	Reason    string     `json:"reason" binding:"max=500"`
	Notes     string     `json:"notes" binding:"max=2000"`
}

type UpdateAppointmentRequest struct {
	Date     *Date              `json:"appointment_date"`
	Time     *ClockTime         `json:"appointment_time"`
	Duration *int               `json:"duration" binding:"omitempty,min=15,max=240"`
	Status   *AppointmentStatus `json:"status" binding:"omitempty,oneof=scheduled confirmed in_progress completed cancelled no_show"`
	Reason   *string            `json:"reason" binding:"omitempty,max=500"`
	Notes    *string            `json:"notes" binding:"omitempty,max=2000"`
}

// Empty reports whether no field was supplied
func (r *UpdateAppointmentRequest) Empty() bool {
	return r.Date == nil && r.Time == nil && r.Duration == nil && r.Status == nil && r.Reason == nil && r.Notes == nil
}

type CancelAppointmentRequest struct {
	Reason *string `json:"reason" binding:"omitempty,max=500"`
}

type AppointmentFilters struct {
	Status    AppointmentStatus
	Date      *Date
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Page
}

// TimeSlot is a free half-open interval on a doctor's day
type TimeSlot struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}
