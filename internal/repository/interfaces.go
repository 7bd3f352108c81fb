package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
)

// Storage-level errors. Backends translate driver errors into these so the
// service layer never inspects driver types.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrOverlap   = errors.New("overlapping appointment")
)

// Unique constraints as named in the schema
const (
	ConstraintUserEmail     = "users_email_key"
	ConstraintUserUsername  = "users_username_key"
	ConstraintPatientUser   = "patients_user_id_key"
	ConstraintPatientNumber = "patients_patient_number_key"
	ConstraintStaffUser     = "staff_user_id_key"
)

// ConstraintError carries the name of the constraint a write violated.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Constraint)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// Duplicate reports a unique violation on constraint
func Duplicate(constraint string) error {
	return &ConstraintError{Constraint: constraint, Err: ErrDuplicate}
}

// ViolatedConstraint returns the constraint named in err, or "".
func ViolatedConstraint(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}

// All repository interfaces in one file
type (
	// Store is the persistence gateway. Repositories obtained from a Store
	// passed to a Transaction callback run inside that transaction.
	Store interface {
		Users() UserRepository
		Patients() PatientRepository
		Staff() StaffRepository
		Appointments() AppointmentRepository
		Outbox() OutboxRepository
		Transaction(ctx context.Context, fn func(tx Store) error) error
		Ping(ctx context.Context) error
		Close() error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UsernameExists(ctx context.Context, username string) (bool, error)
		Update(ctx context.Context, user *model.User) error
		SetActive(ctx context.Context, id uuid.UUID, active bool) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
		NextPatientNumber(ctx context.Context) (int64, error)
	}

	StaffRepository interface {
		Create(ctx context.Context, staff *model.Staff) error
		Get(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error)
		// ListForDoctorOnDate returns the doctor's appointments on date whose
		// status is in statuses, skipping excludeID when set.
		ListForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date model.Date, statuses []model.AppointmentStatus, excludeID *uuid.UUID) ([]*model.Appointment, error)
		// LockDoctorSchedule serializes schedule writes for a doctor until the
		// surrounding transaction ends.
		LockDoctorSchedule(ctx context.Context, doctorID uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		// ClaimPending leases up to limit pending events that no other worker
		// holds, until now+lease, and returns them.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxAttempts int) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
