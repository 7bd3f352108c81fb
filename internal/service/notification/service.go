package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/hmis-api/internal/email"
	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/pkg/worker"
)

// Service turns appointment events into patient emails
type Service struct {
	emailSvc email.Service
	logger   zerolog.Logger
}

func NewService(emailSvc email.Service, logger zerolog.Logger) *Service {
	return &Service{
		emailSvc: emailSvc,
		logger:   logger.With().Str("component", "notification").Logger(),
	}
}

// Register subscribes the service to the events it mails about
func (s *Service) Register(p *worker.OutboxProcessor) {
	p.Handle(model.EventAppointmentBooked, worker.EventHandlerFunc(s.AppointmentBooked))
	p.Handle(model.EventAppointmentCancelled, worker.EventHandlerFunc(s.AppointmentCancelled))
}

func (s *Service) AppointmentBooked(ctx context.Context, event *model.OutboxEvent) error {
	payload, err := decode(event)
	if err != nil {
		return err
	}
	if payload.PatientEmail == "" {
		s.logger.Debug().Str("appointment_id", payload.AppointmentID.String()).Msg("no patient email, skipping confirmation")
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", greeting(payload.PatientName))
	fmt.Fprintf(&body, "Your appointment on %s at %s (%d minutes)", payload.Date, payload.Time, payload.Duration)
	if payload.DoctorName != "" {
		fmt.Fprintf(&body, " with Dr. %s", payload.DoctorName)
	}
	body.WriteString(" is confirmed.\n\nReference: " + payload.AppointmentID.String() + "\n")

	return s.emailSvc.Send(ctx, payload.PatientEmail, "Appointment confirmation", body.String())
}

func (s *Service) AppointmentCancelled(ctx context.Context, event *model.OutboxEvent) error {
	payload, err := decode(event)
	if err != nil {
		return err
	}
	if payload.PatientEmail == "" {
		return nil
	}

	body := fmt.Sprintf("Dear %s,\n\nYour appointment on %s at %s has been cancelled.\n\nReference: %s\n",
		greeting(payload.PatientName), payload.Date, payload.Time, payload.AppointmentID)
	return s.emailSvc.Send(ctx, payload.PatientEmail, "Appointment cancelled", body)
}

func decode(event *model.OutboxEvent) (*model.AppointmentEventPayload, error) {
	var payload model.AppointmentEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", event.EventType, err)
	}
	return &payload, nil
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "patient"
	}
	return name
}
