package patient

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hmis-api/internal/config"
	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
	apperrors "github.com/jwalitptl/hmis-api/pkg/errors"
	"github.com/jwalitptl/hmis-api/pkg/metrics"
	"github.com/jwalitptl/hmis-api/pkg/security"
)

const maxUsernameAttempts = 5

var usernameCleaner = regexp.MustCompile(`[^a-z0-9._-]`)

type Service struct {
	store   repository.Store
	hasher  security.PasswordHasher
	cfg     config.PatientsConfig
	metrics *metrics.Metrics
}

func NewService(store repository.Store, hasher security.PasswordHasher, cfg config.PatientsConfig, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		hasher:  hasher,
		cfg:     cfg,
		metrics: m,
	}
}

// Register creates the patient's user account and patient record together.
// Either both rows exist afterwards or neither does.
func (s *Service) Register(ctx context.Context, req *model.RegisterPatientRequest) (*model.Patient, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, s.store, req.Email, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(s.cfg.DefaultPassword)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to hash default password: %w", err))
	}

	var patient *model.Patient
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		username, err := s.uniqueUsername(ctx, tx, req.Email)
		if err != nil {
			return err
		}

		user := &model.User{
			Username:     username,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         model.RolePatient,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Phone:        req.Phone,
			IsActive:     true,
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}

		seq, err := tx.Patients().NextPatientNumber(ctx)
		if err != nil {
			return err
		}

		patient = &model.Patient{
			UserID:                user.ID,
			PatientNumber:         model.FormatPatientNumber(seq),
			DateOfBirth:           req.DateOfBirth,
			Gender:                req.Gender,
			BloodType:             req.BloodType,
			Allergies:             req.Allergies,
			MedicalHistory:        req.MedicalHistory,
			InsuranceProvider:     req.InsuranceProvider,
			InsuranceNumber:       req.InsuranceNumber,
			EmergencyContactName:  req.EmergencyContactName,
			EmergencyContactPhone: req.EmergencyContactPhone,
			Address:               req.Address,
			FirstName:             user.FirstName,
			LastName:              user.LastName,
			Email:                 user.Email,
			Phone:                 user.Phone,
			IsActive:              user.IsActive,
		}
		if err := tx.Patients().Create(ctx, patient); err != nil {
			return err
		}

		return appendEvent(ctx, tx, model.EventPatientRegistered, patient)
	})
	if err != nil {
		return nil, translate(err, "register")
	}

	s.metrics.PatientsRegistered.Inc()
	log.Ctx(ctx).Info().
		Str("patient_id", patient.ID.String()).
		Str("patient_number", patient.PatientNumber).
		Msg("patient registered")

	return patient, nil
}

// Update changes patient and linked user fields. The patient number is
// never touched.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	if req.Empty() {
		return nil, apperrors.Validation("no valid fields to update")
	}

	var updated *model.Patient
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		patient, err := tx.Patients().Get(ctx, id)
		if err != nil {
			return notFoundOrInternal("patient", err)
		}
		user, err := tx.Users().Get(ctx, patient.UserID)
		if err != nil {
			return notFoundOrInternal("patient", err)
		}

		userChanged := applyUserFields(user, req)
		if req.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*req.Email))
			if !strings.EqualFold(email, user.Email) {
				if err := s.ensureEmailFree(ctx, tx, email, user.ID); err != nil {
					return err
				}
				user.Email = email
				userChanged = true
			}
		}
		if userChanged {
			if err := tx.Users().Update(ctx, user); err != nil {
				return err
			}
		}

		applyPatientFields(patient, req)
		if err := tx.Patients().Update(ctx, patient); err != nil {
			return err
		}

		if updated, err = tx.Patients().Get(ctx, id); err != nil {
			return err
		}
		return appendEvent(ctx, tx, model.EventPatientUpdated, updated)
	})
	if err != nil {
		return nil, translate(err, "update")
	}

	log.Ctx(ctx).Info().Str("patient_id", id.String()).Msg("patient updated")
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.store.Patients().Get(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal("patient", err)
	}
	return patient, nil
}

// GetByUserID resolves the patient record linked to a login
func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	patient, err := s.store.Patients().GetByUserID(ctx, userID)
	if err != nil {
		return nil, notFoundOrInternal("patient", err)
	}
	return patient, nil
}

func (s *Service) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	filters.Search = strings.TrimSpace(filters.Search)
	filters.Page = filters.Page.Normalize()

	patients, total, err := s.store.Patients().List(ctx, filters)
	if err != nil {
		return nil, 0, apperrors.Internal(fmt.Errorf("failed to list patients: %w", err))
	}
	return patients, total, nil
}

// Deactivate soft-deletes the patient by disabling the linked user
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		patient, err := tx.Patients().Get(ctx, id)
		if err != nil {
			return notFoundOrInternal("patient", err)
		}
		if !patient.IsActive {
			return nil
		}
		if err := tx.Users().SetActive(ctx, patient.UserID, false); err != nil {
			return err
		}
		patient.IsActive = false
		return appendEvent(ctx, tx, model.EventPatientDeactivated, patient)
	})
	if err != nil {
		return translate(err, "deactivate")
	}

	log.Ctx(ctx).Info().Str("patient_id", id.String()).Msg("patient deactivated")
	return nil
}

func (s *Service) ensureEmailFree(ctx context.Context, store repository.Store, email string, selfID uuid.UUID) error {
	existing, err := store.Users().GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return apperrors.Internal(fmt.Errorf("failed to check email: %w", err))
	case existing.ID == selfID:
		return nil
	}
	return apperrors.Conflict("a user with this email already exists", apperrors.ErrEmailTaken)
}

// uniqueUsername derives a username from the email local part, adding a
// random suffix while the name is taken.
func (s *Service) uniqueUsername(ctx context.Context, tx repository.Store, email string) (string, error) {
	base := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		base = email[:at]
	}
	base = usernameCleaner.ReplaceAllString(strings.ToLower(base), "")
	if base == "" {
		base = "patient"
	}

	candidate := base
	for i := 0; i < maxUsernameAttempts; i++ {
		taken, err := tx.Users().UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		suffix, err := security.RandomSuffix(3)
		if err != nil {
			return "", fmt.Errorf("failed to generate username suffix: %w", err)
		}
		candidate = base + "." + suffix
	}
	return "", fmt.Errorf("could not find a free username for %q", base)
}

func validateRegistration(req *model.RegisterPatientRequest) error {
	var fields []apperrors.FieldError
	if req.FirstName == "" {
		fields = append(fields, apperrors.FieldError{Field: "first_name", Message: "first_name is required"})
	}
	if req.LastName == "" {
		fields = append(fields, apperrors.FieldError{Field: "last_name", Message: "last_name is required"})
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		fields = append(fields, apperrors.FieldError{Field: "email", Message: "a valid email is required"})
	}
	if len(fields) > 0 {
		return apperrors.Validation("invalid patient registration", fields...)
	}
	return nil
}

func applyUserFields(user *model.User, req *model.UpdatePatientRequest) bool {
	changed := false
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
		changed = true
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
		changed = true
	}
	if req.Phone != nil {
		user.Phone = req.Phone
		changed = true
	}
	return changed
}

func applyPatientFields(p *model.Patient, req *model.UpdatePatientRequest) {
	if req.DateOfBirth != nil {
		p.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.BloodType != nil {
		p.BloodType = *req.BloodType
	}
	if req.Allergies != nil {
		p.Allergies = *req.Allergies
	}
	if req.MedicalHistory != nil {
		p.MedicalHistory = *req.MedicalHistory
	}
	if req.InsuranceProvider != nil {
		p.InsuranceProvider = *req.InsuranceProvider
	}
	if req.InsuranceNumber != nil {
		p.InsuranceNumber = *req.InsuranceNumber
	}
	if req.EmergencyContactName != nil {
		p.EmergencyContactName = *req.EmergencyContactName
	}
	if req.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = *req.EmergencyContactPhone
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
}

func translate(err error, operation string) error {
	if appErr := apperrors.As(err); appErr != nil {
		return appErr
	}
	if errors.Is(err, repository.ErrDuplicate) {
		if repository.ViolatedConstraint(err) == repository.ConstraintUserEmail {
			return apperrors.Conflict("a user with this email already exists", apperrors.ErrEmailTaken)
		}
		return apperrors.Conflict("patient conflicts with an existing record", err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("patient", err)
	}
	return apperrors.Internal(fmt.Errorf("failed to %s patient: %w", operation, err))
}

func notFoundOrInternal(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(err)
}

func appendEvent(ctx context.Context, tx repository.Store, eventType string, p *model.Patient) error {
	event, err := model.NewOutboxEvent(eventType, p.ID, &model.PatientEventPayload{
		PatientID:     p.ID,
		UserID:        p.UserID,
		PatientNumber: p.PatientNumber,
		Email:         p.Email,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
	})
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	return tx.Outbox().Create(ctx, event)
}
