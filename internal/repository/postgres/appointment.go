package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/hmis-api/internal/model"
)

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, appointment_time,
	duration_minutes, status, reason, notes, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, appointment_date, appointment_time,
			duration_minutes, status, reason, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.Date,
		appointment.Time,
		appointment.DurationMinutes,
		appointment.Status,
		appointment.Reason,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", translateError(err))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.q.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", translateError(err))
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET appointment_date = $1, appointment_time = $2, duration_minutes = $3,
			status = $4, reason = $5, notes = $6, updated_at = $7
		WHERE id = $8
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.q.ExecContext(ctx, query,
		appointment.Date,
		appointment.Time,
		appointment.DurationMinutes,
		appointment.Status,
		appointment.Reason,
		appointment.Notes,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", translateError(err))
	}
	return expectRow(result, "appointment")
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.Date != nil {
		args = append(args, *filters.Date)
		where += fmt.Sprintf(" AND appointment_date = $%d", len(args))
	}
	if filters.DoctorID != uuid.Nil {
		args = append(args, filters.DoctorID)
		where += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}
	if filters.PatientID != uuid.Nil {
		args = append(args, filters.PatientID)
		where += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}

	var total int
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM appointments`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", translateError(err))
	}

	page := filters.Page.Normalize()
	query := `SELECT ` + appointmentColumns + ` FROM appointments` + where +
		fmt.Sprintf(" ORDER BY appointment_date DESC, appointment_time DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	var appointments []*model.Appointment
	if err := r.q.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", translateError(err))
	}
	return appointments, total, nil
}

func (r *appointmentRepository) ListForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date model.Date, statuses []model.AppointmentStatus, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	statusList := make([]string, len(statuses))
	for i, s := range statuses {
		statusList[i] = string(s)
	}

	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		AND appointment_date = $2
		AND status = ANY($3)
	`
	args := []interface{}{doctorID, date, pq.Array(statusList)}

	if excludeID != nil {
		query += " AND id <> $4"
		args = append(args, *excludeID)
	}
	query += " ORDER BY appointment_time ASC"

	var appointments []*model.Appointment
	if err := r.q.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", translateError(err))
	}
	return appointments, nil
}

func (r *appointmentRepository) LockDoctorSchedule(ctx context.Context, doctorID uuid.UUID) error {
	if _, err := r.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, doctorID.String()); err != nil {
		return fmt.Errorf("failed to lock doctor schedule: %w", translateError(err))
	}
	return nil
}
