package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
	apperrors "github.com/jwalitptl/hmis-api/pkg/errors"
)

// Availability lists the doctor's free slots of the given length on date,
// inside the configured working day.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date model.Date, durationMinutes int) ([]model.TimeSlot, error) {
	if date.IsZero() {
		return nil, apperrors.Validation("invalid availability query", apperrors.FieldError{
			Field: "date", Message: "date is required",
		})
	}

	var requested *int
	if durationMinutes != 0 {
		requested = &durationMinutes
	}
	duration, err := s.resolveDuration(requested)
	if err != nil {
		return nil, err
	}

	if _, err := s.getDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	dayStart, err := model.ParseClockTime(s.cfg.DayStart)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("bad scheduling.day_start: %w", err))
	}
	dayEnd, err := model.ParseClockTime(s.cfg.DayEnd)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("bad scheduling.day_end: %w", err))
	}

	busy, err := s.store.Appointments().ListForDoctorOnDate(ctx, doctorID, date, BlockingStatuses(s.cfg.CompletedBlocksSlot), nil)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to load doctor schedule: %w", err))
	}

	return freeSlots(busy, dayStart, dayEnd, s.cfg.SlotStepMinutes, duration), nil
}
