package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Event types written to the outbox
const (
	EventAppointmentBooked        = "appointment.booked"
	EventAppointmentRescheduled   = "appointment.rescheduled"
	EventAppointmentStatusChanged = "appointment.status_changed"
	EventAppointmentCancelled     = "appointment.cancelled"
	EventPatientRegistered        = "patient.registered"
	EventPatientUpdated           = "patient.updated"
	EventPatientDeactivated       = "patient.deactivated"
)

type OutboxEvent struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	EventType   string          `db:"event_type" json:"event_type"`
	AggregateID uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Status      OutboxStatus    `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	LastError   *string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	// ClaimedUntil is the delivery lease taken by a worker
	ClaimedUntil *time.Time `db:"claimed_until" json:"-"`
}

// NewOutboxEvent marshals payload into a pending event
func NewOutboxEvent(eventType string, aggregateID uuid.UUID, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     data,
		Status:      OutboxStatusPending,
		CreatedAt:   time.Now(),
	}, nil
}

// AppointmentEventPayload is the body of appointment.* events
type AppointmentEventPayload struct {
	AppointmentID  uuid.UUID         `json:"appointment_id"`
	PatientID      uuid.UUID         `json:"patient_id"`
	DoctorID       uuid.UUID         `json:"doctor_id"`
	Date           Date              `json:"appointment_date"`
	Time           ClockTime         `json:"appointment_time"`
	Duration       int               `json:"duration"`
	Status         AppointmentStatus `json:"status"`
	PreviousStatus AppointmentStatus `json:"previous_status,omitempty"`
	PatientName    string            `json:"patient_name,omitempty"`
	PatientEmail   string            `json:"patient_email,omitempty"`
	DoctorName     string            `json:"doctor_name,omitempty"`
}

// PatientEventPayload is the body of patient.* events
type PatientEventPayload struct {
	PatientID     uuid.UUID `json:"patient_id"`
	UserID        uuid.UUID `json:"user_id"`
	PatientNumber string    `json:"patient_number"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
}
