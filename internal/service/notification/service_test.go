package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hmis-api/internal/email"
	"github.com/jwalitptl/hmis-api/internal/model"
)

type sentMail struct {
	to, subject, body string
}

func newTestService() (*Service, *[]sentMail) {
	var sent []sentMail
	mailer := &email.LogService{Sent: func(to, subject, body string) {
		sent = append(sent, sentMail{to, subject, body})
	}}
	return NewService(mailer, zerolog.Nop()), &sent
}

func appointmentEvent(t *testing.T, eventType string, payload *model.AppointmentEventPayload) *model.OutboxEvent {
	t.Helper()
	event, err := model.NewOutboxEvent(eventType, payload.AppointmentID, payload)
	require.NoError(t, err)
	return event
}

func testPayload(t *testing.T) *model.AppointmentEventPayload {
	t.Helper()
	date, err := model.ParseDate("2025-03-03")
	require.NoError(t, err)
	at, err := model.ParseClockTime("10:00")
	require.NoError(t, err)
	return &model.AppointmentEventPayload{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		Date:          date,
		Time:          at,
		Duration:      30,
		Status:        model.AppointmentStatusScheduled,
		PatientName:   "Jane Doe",
		PatientEmail:  "jane@example.com",
		DoctorName:    "Gregory House",
	}
}

func TestAppointmentBookedSendsConfirmation(t *testing.T) {
	svc, sent := newTestService()
	payload := testPayload(t)

	err := svc.AppointmentBooked(context.Background(), appointmentEvent(t, model.EventAppointmentBooked, payload))
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "jane@example.com", mail.to)
	assert.Equal(t, "Appointment confirmation", mail.subject)
	assert.Contains(t, mail.body, "Dear Jane Doe")
	assert.Contains(t, mail.body, "2025-03-03 at 10:00")
	assert.Contains(t, mail.body, "Dr. Gregory House")
	assert.Contains(t, mail.body, payload.AppointmentID.String())
}

func TestAppointmentCancelledSendsNotice(t *testing.T) {
	svc, sent := newTestService()
	payload := testPayload(t)
	payload.Status = model.AppointmentStatusCancelled
	payload.PatientName = ""

	err := svc.AppointmentCancelled(context.Background(), appointmentEvent(t, model.EventAppointmentCancelled, payload))
	require.NoError(t, err)
	require.Len(t, *sent, 1)
	assert.Equal(t, "Appointment cancelled", (*sent)[0].subject)
	assert.Contains(t, (*sent)[0].body, "Dear patient")
}

func TestSkipsEventsWithoutEmail(t *testing.T) {
	svc, sent := newTestService()
	payload := testPayload(t)
	payload.PatientEmail = ""

	require.NoError(t, svc.AppointmentBooked(context.Background(), appointmentEvent(t, model.EventAppointmentBooked, payload)))
	require.NoError(t, svc.AppointmentCancelled(context.Background(), appointmentEvent(t, model.EventAppointmentCancelled, payload)))
	assert.Empty(t, *sent)
}

func TestRejectsMalformedPayload(t *testing.T) {
	svc, _ := newTestService()
	event := &model.OutboxEvent{EventType: model.EventAppointmentBooked, Payload: []byte("{not json")}

	assert.Error(t, svc.AppointmentBooked(context.Background(), event))
}
