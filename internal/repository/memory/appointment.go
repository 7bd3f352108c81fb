package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
)

type appointmentRepository struct {
	sh *shared
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	r.sh.data.appointments[appointment.ID] = *appointment
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	a, ok := r.sh.data.appointments[id]
	if !ok {
		return nil, fmt.Errorf("appointment: %w", repository.ErrNotFound)
	}
	return &a, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	existing, ok := r.sh.data.appointments[appointment.ID]
	if !ok {
		return fmt.Errorf("appointment: %w", repository.ErrNotFound)
	}

	appointment.UpdatedAt = time.Now()
	appointment.CreatedAt = existing.CreatedAt
	appointment.PatientID = existing.PatientID
	appointment.DoctorID = existing.DoctorID
	r.sh.data.appointments[appointment.ID] = *appointment
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	var matched []*model.Appointment
	for _, a := range r.sh.data.appointments {
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		if filters.Date != nil && a.Date != *filters.Date {
			continue
		}
		if filters.DoctorID != uuid.Nil && a.DoctorID != filters.DoctorID {
			continue
		}
		if filters.PatientID != uuid.Nil && a.PatientID != filters.PatientID {
			continue
		}
		a := a
		matched = append(matched, &a)
	}

	sort.Slice(matched, func(i, j int) bool {
		return startKey(matched[i]) > startKey(matched[j])
	})
	return paginate(matched, filters.Page), len(matched), nil
}

func (r *appointmentRepository) ListForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date model.Date, statuses []model.AppointmentStatus, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	wanted := make(map[model.AppointmentStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var result []*model.Appointment
	for _, a := range r.sh.data.appointments {
		if a.DoctorID != doctorID || a.Date != date || !wanted[a.Status] {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		a := a
		result = append(result, &a)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time < result[j].Time
	})
	return result, nil
}

// LockDoctorSchedule is a no-op; transactions are already serialized
func (r *appointmentRepository) LockDoctorSchedule(ctx context.Context, doctorID uuid.UUID) error {
	return nil
}

func startKey(a *model.Appointment) string {
	return a.Date.String() + " " + a.Time.String()
}
