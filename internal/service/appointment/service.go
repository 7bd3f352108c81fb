package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hmis-api/internal/config"
	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
	apperrors "github.com/jwalitptl/hmis-api/pkg/errors"
	"github.com/jwalitptl/hmis-api/pkg/metrics"
)

const minutesPerDay = 24 * 60

type Service struct {
	store   repository.Store
	cfg     config.SchedulingConfig
	doctors *cache.Cache
	metrics *metrics.Metrics
}

func NewService(store repository.Store, cfg config.SchedulingConfig, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		cfg:     cfg,
		doctors: cache.New(cfg.DoctorCacheTTL, 2*cfg.DoctorCacheTTL),
		metrics: m,
	}
}

// Create books an appointment in status scheduled after checking that the
// patient and doctor exist and the doctor is free for the whole interval.
func (s *Service) Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if req.Date.IsZero() {
		return nil, apperrors.Validation("invalid appointment", apperrors.FieldError{
			Field: "appointment_date", Message: "appointment_date is required",
		})
	}
	if req.Time == nil {
		return nil, apperrors.Validation("invalid appointment", apperrors.FieldError{
			Field: "appointment_time", Message: "appointment_time is required",
		})
	}
	duration, err := s.resolveDuration(req.Duration)
	if err != nil {
		return nil, err
	}
	if err := checkWithinDay(*req.Time, duration); err != nil {
		return nil, err
	}

	patient, err := s.store.Patients().Get(ctx, req.PatientID)
	if err != nil {
		return nil, notFoundOrInternal("patient", err)
	}
	if !patient.IsActive {
		return nil, apperrors.NotFound("patient", nil)
	}
	doctor, err := s.getDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	appt := &model.Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		Date:            req.Date,
		Time:            *req.Time,
		DurationMinutes: duration,
		Status:          model.AppointmentStatusScheduled,
		Reason:          req.Reason,
		Notes:           req.Notes,
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := s.ensureFree(ctx, tx, appt, nil, "create"); err != nil {
			return err
		}
		if err := tx.Appointments().Create(ctx, appt); err != nil {
			return err
		}

		payload := eventPayload(appt, "")
		payload.PatientName = patient.FullName()
		payload.PatientEmail = patient.Email
		payload.DoctorName = doctor.FullName()
		return appendEvent(ctx, tx, model.EventAppointmentBooked, appt.ID, payload)
	})
	if err != nil {
		return nil, s.translate(err, "create")
	}

	s.metrics.AppointmentsBooked.Inc()
	log.Ctx(ctx).Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Str("appointment_date", appt.Date.String()).
		Str("appointment_time", appt.Time.String()).
		Msg("appointment booked")

	return appt, nil
}

// Update applies schedule, detail and status changes in one transaction.
// Moving a terminal appointment is a conflict; a new interval is checked
// against the doctor's schedule excluding the appointment itself.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	if req.Empty() {
		return nil, apperrors.Validation("no valid fields to update")
	}
	if req.Duration != nil {
		if _, err := s.resolveDuration(req.Duration); err != nil {
			return nil, err
		}
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, apperrors.Validation("invalid appointment status", apperrors.FieldError{
			Field: "status", Message: fmt.Sprintf("unknown status %q", *req.Status),
		})
	}
	if req.Date != nil && req.Date.IsZero() {
		return nil, apperrors.Validation("invalid appointment", apperrors.FieldError{
			Field: "appointment_date", Message: "appointment_date cannot be empty",
		})
	}

	var updated *model.Appointment
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		appt, err := tx.Appointments().Get(ctx, id)
		if err != nil {
			return notFoundOrInternal("appointment", err)
		}

		reschedule := req.Date != nil || req.Time != nil || req.Duration != nil
		if reschedule {
			// serialize against concurrent bookings, then re-read under the lock
			if err := tx.Appointments().LockDoctorSchedule(ctx, appt.DoctorID); err != nil {
				return err
			}
			if appt, err = tx.Appointments().Get(ctx, id); err != nil {
				return notFoundOrInternal("appointment", err)
			}
		}
		previous := appt.Status
		original := *appt

		if reschedule {
			if appt.Status.Terminal() {
				return apperrors.Conflict(
					fmt.Sprintf("cannot reschedule a %s appointment", appt.Status),
					apperrors.ErrInvalidTransition,
				)
			}
			if req.Date != nil {
				appt.Date = *req.Date
			}
			if req.Time != nil {
				appt.Time = *req.Time
			}
			if req.Duration != nil {
				appt.DurationMinutes = *req.Duration
			}
			if err := checkWithinDay(appt.Time, appt.DurationMinutes); err != nil {
				return err
			}
			reschedule = appt.Date != original.Date || appt.Time != original.Time || appt.DurationMinutes != original.DurationMinutes
			if reschedule {
				if err := s.ensureFree(ctx, tx, appt, &appt.ID, "reschedule"); err != nil {
					return err
				}
			}
		}
		if req.Reason != nil {
			appt.Reason = *req.Reason
		}
		if req.Notes != nil {
			appt.Notes = *req.Notes
		}

		statusChanged := false
		if req.Status != nil && *req.Status != appt.Status {
			if !CanTransition(appt.Status, *req.Status) {
				return invalidTransition(appt.Status, *req.Status)
			}
			appt.Status = *req.Status
			statusChanged = true
		}

		if err := tx.Appointments().Update(ctx, appt); err != nil {
			return err
		}

		if reschedule {
			if err := appendEvent(ctx, tx, model.EventAppointmentRescheduled, appt.ID, eventPayload(appt, "")); err != nil {
				return err
			}
		}
		if statusChanged {
			eventType := model.EventAppointmentStatusChanged
			payload := eventPayload(appt, previous)
			if appt.Status == model.AppointmentStatusCancelled {
				eventType = model.EventAppointmentCancelled
				s.addParties(ctx, tx, payload)
			}
			if err := appendEvent(ctx, tx, eventType, appt.ID, payload); err != nil {
				return err
			}
			s.metrics.AppointmentTransitions.WithLabelValues(string(previous), string(appt.Status)).Inc()
		}

		updated = appt
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "reschedule")
	}

	log.Ctx(ctx).Info().
		Str("appointment_id", updated.ID.String()).
		Str("status", string(updated.Status)).
		Msg("appointment updated")

	return updated, nil
}

// UpdateSchedule changes date, time, duration, reason or notes
func (s *Service) UpdateSchedule(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	schedule := *req
	schedule.Status = nil
	return s.Update(ctx, id, &schedule)
}

// UpdateStatus moves the appointment along the status machine. Setting the
// current status again is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	return s.Update(ctx, id, &model.UpdateAppointmentRequest{Status: &status})
}

// Cancel marks the appointment cancelled and appends the reason to its
// notes. Cancelling twice returns the cancelled appointment unchanged.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*model.Appointment, error) {
	var result *model.Appointment
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		appt, err := tx.Appointments().Get(ctx, id)
		if err != nil {
			return notFoundOrInternal("appointment", err)
		}
		result = appt

		if appt.Status == model.AppointmentStatusCancelled {
			return nil
		}
		if !CanTransition(appt.Status, model.AppointmentStatusCancelled) {
			return invalidTransition(appt.Status, model.AppointmentStatusCancelled)
		}

		previous := appt.Status
		appt.Status = model.AppointmentStatusCancelled
		if reason != nil && *reason != "" {
			appt.Notes = appendNote(appt.Notes, "Cancellation reason: "+*reason)
		}
		if err := tx.Appointments().Update(ctx, appt); err != nil {
			return err
		}
		s.metrics.AppointmentTransitions.WithLabelValues(string(previous), string(appt.Status)).Inc()

		payload := eventPayload(appt, previous)
		s.addParties(ctx, tx, payload)
		return appendEvent(ctx, tx, model.EventAppointmentCancelled, appt.ID, payload)
	})
	if err != nil {
		return nil, s.translate(err, "cancel")
	}

	log.Ctx(ctx).Info().Str("appointment_id", id.String()).Msg("appointment cancelled")
	return result, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.store.Appointments().Get(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal("appointment", err)
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, apperrors.Validation("invalid filter", apperrors.FieldError{
			Field: "status", Message: fmt.Sprintf("unknown status %q", filters.Status),
		})
	}
	filters.Page = filters.Page.Normalize()

	appointments, total, err := s.store.Appointments().List(ctx, filters)
	if err != nil {
		return nil, 0, apperrors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}
	return appointments, total, nil
}

// ensureFree takes the doctor's schedule lock and fails with Conflict when
// appt's interval overlaps a blocking appointment.
func (s *Service) ensureFree(ctx context.Context, tx repository.Store, appt *model.Appointment, excludeID *uuid.UUID, operation string) error {
	if err := tx.Appointments().LockDoctorSchedule(ctx, appt.DoctorID); err != nil {
		return err
	}

	checker := NewConflictChecker(tx.Appointments(), s.cfg.CompletedBlocksSlot)
	conflict, err := checker.HasConflict(ctx, appt.DoctorID, appt.Date, appt.Time, appt.DurationMinutes, excludeID)
	if err != nil {
		return err
	}
	if conflict {
		s.metrics.AppointmentConflicts.WithLabelValues(operation).Inc()
		return apperrors.Conflict("doctor already has an appointment in this time slot", apperrors.ErrSchedulingConflict)
	}
	return nil
}

// getDoctor resolves an active doctor. Only the staff profile is cached;
// role, name and active flag are read from the user on every call.
func (s *Service) getDoctor(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	var doctor model.Staff
	if cached, ok := s.doctors.Get(id.String()); ok {
		doctor = cached.(model.Staff)
	} else {
		staff, err := s.store.Staff().Get(ctx, id)
		if err != nil {
			return nil, notFoundOrInternal("doctor", err)
		}
		doctor = *staff
		s.doctors.SetDefault(id.String(), doctor)
	}

	user, err := s.store.Users().Get(ctx, doctor.UserID)
	if err != nil {
		return nil, notFoundOrInternal("doctor", err)
	}
	doctor.Role = user.Role
	doctor.FirstName = user.FirstName
	doctor.LastName = user.LastName
	doctor.Email = user.Email
	doctor.IsActive = user.IsActive
	if !doctor.IsDoctor() {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return &doctor, nil
}

// addParties fills patient and doctor contact details for notifications.
// Lookup failures leave the fields empty.
func (s *Service) addParties(ctx context.Context, tx repository.Store, payload *model.AppointmentEventPayload) {
	if patient, err := tx.Patients().Get(ctx, payload.PatientID); err == nil {
		payload.PatientName = patient.FullName()
		payload.PatientEmail = patient.Email
	}
	if doctor, err := s.getDoctor(ctx, payload.DoctorID); err == nil {
		payload.DoctorName = doctor.FullName()
	}
}

func (s *Service) resolveDuration(d *int) (int, error) {
	if d == nil {
		return s.cfg.DefaultDurationMinutes, nil
	}
	if *d < s.cfg.MinDurationMinutes || *d > s.cfg.MaxDurationMinutes {
		return 0, apperrors.Validation("invalid appointment", apperrors.FieldError{
			Field:   "duration",
			Message: fmt.Sprintf("duration must be between %d and %d minutes", s.cfg.MinDurationMinutes, s.cfg.MaxDurationMinutes),
		})
	}
	return *d, nil
}

// translate maps storage errors that escaped the transaction
func (s *Service) translate(err error, operation string) error {
	if appErr := apperrors.As(err); appErr != nil {
		return appErr
	}
	if errors.Is(err, repository.ErrOverlap) {
		s.metrics.AppointmentConflicts.WithLabelValues(operation).Inc()
		return apperrors.Conflict("doctor already has an appointment in this time slot", apperrors.ErrSchedulingConflict)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("appointment", err)
	}
	return apperrors.Internal(fmt.Errorf("failed to %s appointment: %w", operation, err))
}

func checkWithinDay(start model.ClockTime, duration int) error {
	if !start.Valid() || start.Minutes()+duration > minutesPerDay {
		return apperrors.Validation("invalid appointment", apperrors.FieldError{
			Field: "appointment_time", Message: "appointment must start and end on the same day",
		})
	}
	return nil
}

func invalidTransition(from, to model.AppointmentStatus) error {
	return apperrors.Conflict(
		fmt.Sprintf("cannot change appointment status from %s to %s", from, to),
		apperrors.ErrInvalidTransition,
	)
}

func notFoundOrInternal(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(err)
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func eventPayload(a *model.Appointment, previous model.AppointmentStatus) *model.AppointmentEventPayload {
	return &model.AppointmentEventPayload{
		AppointmentID:  a.ID,
		PatientID:      a.PatientID,
		DoctorID:       a.DoctorID,
		Date:           a.Date,
		Time:           a.Time,
		Duration:       a.DurationMinutes,
		Status:         a.Status,
		PreviousStatus: previous,
	}
}

func appendEvent(ctx context.Context, tx repository.Store, eventType string, aggregateID uuid.UUID, payload interface{}) error {
	event, err := model.NewOutboxEvent(eventType, aggregateID, payload)
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	return tx.Outbox().Create(ctx, event)
}
