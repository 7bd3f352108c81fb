package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
)

// Overlaps reports whether [aStart, aStart+aDur) and [bStart, bStart+bDur)
// intersect. Touching intervals and empty intervals never overlap.
func Overlaps(aStart, aDur, bStart, bDur int) bool {
	if aDur <= 0 || bDur <= 0 {
		return false
	}
	return aStart < bStart+bDur && bStart < aStart+aDur
}

// BlockingStatuses lists the statuses that reserve a doctor's time
func BlockingStatuses(completedBlocks bool) []model.AppointmentStatus {
	statuses := []model.AppointmentStatus{
		model.AppointmentStatusScheduled,
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusInProgress,
	}
	if completedBlocks {
		statuses = append(statuses, model.AppointmentStatusCompleted)
	}
	return statuses
}

// ConflictChecker decides whether a proposed interval collides with a
// doctor's existing appointments. It only reads.
type ConflictChecker struct {
	appointments repository.AppointmentRepository
	statuses     []model.AppointmentStatus
}

func NewConflictChecker(appointments repository.AppointmentRepository, completedBlocks bool) *ConflictChecker {
	return &ConflictChecker{
		appointments: appointments,
		statuses:     BlockingStatuses(completedBlocks),
	}
}

// HasConflict returns true on the first blocking appointment overlapping
// [start, start+durationMinutes). excludeID skips the appointment being moved.
func (c *ConflictChecker) HasConflict(ctx context.Context, doctorID uuid.UUID, date model.Date, start model.ClockTime, durationMinutes int, excludeID *uuid.UUID) (bool, error) {
	existing, err := c.appointments.ListForDoctorOnDate(ctx, doctorID, date, c.statuses, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to load doctor schedule: %w", err)
	}

	for _, a := range existing {
		if Overlaps(start.Minutes(), durationMinutes, a.Time.Minutes(), a.DurationMinutes) {
			return true, nil
		}
	}
	return false, nil
}

// freeSlots walks [dayStart, dayEnd) in step increments and keeps every
// slot of the given length that misses all busy appointments.
func freeSlots(busy []*model.Appointment, dayStart, dayEnd model.ClockTime, step, duration int) []model.TimeSlot {
	slots := []model.TimeSlot{}
	if step <= 0 {
		step = duration
	}
	for t := dayStart; t.Add(duration) <= dayEnd; t = t.Add(step) {
		free := true
		for _, a := range busy {
			if Overlaps(t.Minutes(), duration, a.Time.Minutes(), a.DurationMinutes) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, model.TimeSlot{Start: t, End: t.Add(duration)})
		}
	}
	return slots
}
