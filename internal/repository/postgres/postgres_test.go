package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

var appointmentCols = []string{
	"id", "patient_id", "doctor_id", "appointment_date", "appointment_time",
	"duration_minutes", "status", "reason", "notes", "created_at", "updated_at",
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"passthrough", errors.New("connection reset"), nil},
		{"pq unique", &pq.Error{Code: "23505", Constraint: "users_email_key"}, repository.ErrDuplicate},
		{"pq exclusion", &pq.Error{Code: "23P01", Constraint: "appointments_no_overlap"}, repository.ErrOverlap},
		{"pgx unique", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, repository.ErrDuplicate},
		{"pgx exclusion", &pgconn.PgError{Code: "23P01"}, repository.ErrOverlap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			if tt.want == nil {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
	assert.Nil(t, translateError(nil))

	got := translateError(&pq.Error{Code: "23505", Constraint: repository.ConstraintUserUsername})
	assert.Equal(t, repository.ConstraintUserUsername, repository.ViolatedConstraint(got))
}

func TestAppointmentCreate(t *testing.T) {
	store, mock := newMockStore(t)
	appt := &model.Appointment{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		Date:            model.Date{Year: 2025, Month: time.March, Day: 3},
		Time:            model.NewClockTime(10, 0),
		DurationMinutes: 30,
		Status:          model.AppointmentStatusScheduled,
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(sqlmock.AnyArg(), appt.PatientID, appt.DoctorID, "2025-03-03", "10:00:00",
			30, "scheduled", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Appointments().Create(context.Background(), appt)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.False(t, appt.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentCreateOverlap(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO appointments").
		WillReturnError(&pq.Error{Code: "23P01", Constraint: "appointments_no_overlap"})

	err := store.Appointments().Create(context.Background(), &model.Appointment{})
	assert.ErrorIs(t, err, repository.ErrOverlap)
}

func TestAppointmentGet(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	patientID := uuid.New()
	doctorID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM appointments WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(appointmentCols).AddRow(
			id.String(), patientID.String(), doctorID.String(),
			time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), "10:15:00",
			45, "confirmed", "checkup", "", now, now,
		))

	appt, err := store.Appointments().Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, appt.ID)
	assert.Equal(t, doctorID, appt.DoctorID)
	assert.Equal(t, "2025-03-03", appt.Date.String())
	assert.Equal(t, model.NewClockTime(10, 15), appt.Time)
	assert.Equal(t, 45, appt.DurationMinutes)
	assert.Equal(t, model.AppointmentStatusConfirmed, appt.Status)
	assert.Equal(t, model.NewClockTime(11, 0), appt.End())
}

func TestAppointmentGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM appointments WHERE id").
		WillReturnRows(sqlmock.NewRows(appointmentCols))

	_, err := store.Appointments().Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppointmentUpdateMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE appointments").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Appointments().Update(context.Background(), &model.Appointment{Base: model.Base{ID: uuid.New()}})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppointmentListBuildsFilters(t *testing.T) {
	store, mock := newMockStore(t)
	doctorID := uuid.New()
	date := model.Date{Year: 2025, Month: time.March, Day: 3}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE 1=1 AND status = $1 AND appointment_date = $2 AND doctor_id = $3")).
		WithArgs("scheduled", "2025-03-03", doctorID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $4 OFFSET $5")).
		WithArgs("scheduled", "2025-03-03", doctorID, 20, 20).
		WillReturnRows(sqlmock.NewRows(appointmentCols))

	list, total, err := store.Appointments().List(context.Background(), &model.AppointmentFilters{
		Status:   model.AppointmentStatusScheduled,
		Date:     &date,
		DoctorID: doctorID,
		Page:     model.Page{Page: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 41, total)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForDoctorOnDateExcludes(t *testing.T) {
	store, mock := newMockStore(t)
	doctorID := uuid.New()
	excludeID := uuid.New()
	date := model.Date{Year: 2025, Month: time.March, Day: 3}

	mock.ExpectQuery(regexp.QuoteMeta("AND status = ANY($3)") + `\s+AND id <> \$4`).
		WithArgs(doctorID, "2025-03-03", sqlmock.AnyArg(), excludeID).
		WillReturnRows(sqlmock.NewRows(appointmentCols))

	_, err := store.Appointments().ListForDoctorOnDate(context.Background(), doctorID, date,
		[]model.AppointmentStatus{model.AppointmentStatusScheduled}, &excludeID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockDoctorSchedule(t *testing.T) {
	store, mock := newMockStore(t)
	doctorID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs(doctorID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Appointments().LockDoctorSchedule(context.Background(), doctorID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCommit(t *testing.T) {
	store, mock := newMockStore(t)
	doctorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.Transaction(context.Background(), func(tx repository.Store) error {
		return tx.Appointments().LockDoctorSchedule(context.Background(), doctorID)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollback(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.Transaction(context.Background(), func(tx repository.Store) error {
		// nested calls join the outer transaction
		return tx.Transaction(context.Background(), func(repository.Store) error {
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextPatientNumber(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('patient_number_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(7)))

	seq, err := store.Patients().NextPatientNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
	assert.Equal(t, "PAT000007", model.FormatPatientNumber(seq))
}

func TestPatientListSearch(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("u.is_active = TRUE AND (u.first_name ILIKE $1")).
		WithArgs("%smith%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2 OFFSET $3")).
		WithArgs("%smith%", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, total, err := store.Patients().List(context.Background(), &model.PatientFilters{Search: "smith"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := store.Users().Create(context.Background(), &model.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestOutboxMarkFailed(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE outbox_events").
		WithArgs("redis down", 5, "failed", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Outbox().MarkFailed(context.Background(), id, "redis down", 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxCreateRejectsNilPayload(t *testing.T) {
	store, _ := newMockStore(t)
	err := store.Outbox().Create(context.Background(), &model.OutboxEvent{EventType: model.EventAppointmentBooked})
	assert.Error(t, err)
}

func TestOutboxClaimPending(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SET claimed_until = NOW() + $3::interval")).
		WithArgs("pending", 10, "60000 milliseconds").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "status"}).
			AddRow(id.String(), model.EventAppointmentBooked, "pending"))

	events, err := store.Outbox().ClaimPending(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
