package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
)

const patientSelect = `
	SELECT p.id, p.user_id, p.patient_number, p.date_of_birth, p.gender,
		   p.blood_type, p.allergies, p.medical_history, p.insurance_provider,
		   p.insurance_number, p.emergency_contact_name, p.emergency_contact_phone,
		   p.address, p.created_at, p.updated_at,
		   u.first_name, u.last_name, u.email, u.phone, u.is_active
	FROM patients p
	JOIN users u ON u.id = p.user_id
`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, user_id, patient_number, date_of_birth, gender, blood_type,
			allergies, medical_history, insurance_provider, insurance_number,
			emergency_contact_name, emergency_contact_phone, address,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := time.Now()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, query,
		patient.ID,
		patient.UserID,
		patient.PatientNumber,
		patient.DateOfBirth,
		patient.Gender,
		patient.BloodType,
		patient.Allergies,
		patient.MedicalHistory,
		patient.InsuranceProvider,
		patient.InsuranceNumber,
		patient.EmergencyContactName,
		patient.EmergencyContactPhone,
		patient.Address,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", translateError(err))
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := patientSelect + ` WHERE p.id = $1`

	var patient model.Patient
	if err := r.q.GetContext(ctx, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", translateError(err))
	}
	return &patient, nil
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	query := patientSelect + ` WHERE p.user_id = $1`

	var patient model.Patient
	if err := r.q.GetContext(ctx, &patient, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get patient by user: %w", translateError(err))
	}
	return &patient, nil
}

// Update writes patient-owned columns; patient_number is never updated.
func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET
			date_of_birth = $1,
			gender = $2,
			blood_type = $3,
			allergies = $4,
			medical_history = $5,
			insurance_provider = $6,
			insurance_number = $7,
			emergency_contact_name = $8,
			emergency_contact_phone = $9,
			address = $10,
			updated_at = $11
		WHERE id = $12
	`
	patient.UpdatedAt = time.Now()

	result, err := r.q.ExecContext(ctx, query,
		patient.DateOfBirth,
		patient.Gender,
		patient.BloodType,
		patient.Allergies,
		patient.MedicalHistory,
		patient.InsuranceProvider,
		patient.InsuranceNumber,
		patient.EmergencyContactName,
		patient.EmergencyContactPhone,
		patient.Address,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", translateError(err))
	}
	return expectRow(result, "patient")
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if !filters.IncludeInactive {
		where += ` AND u.is_active = TRUE`
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := len(args)
		where += fmt.Sprintf(` AND (u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR u.email ILIKE $%d OR p.patient_number ILIKE $%d)`, n, n, n, n)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM patients p JOIN users u ON u.id = p.user_id` + where
	if err := r.q.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", translateError(err))
	}

	page := filters.Page.Normalize()
	query := patientSelect + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	var patients []*model.Patient
	if err := r.q.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", translateError(err))
	}
	return patients, total, nil
}

func (r *patientRepository) NextPatientNumber(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.q.GetContext(ctx, &seq, `SELECT nextval('patient_number_seq')`); err != nil {
		return 0, fmt.Errorf("failed to allocate patient number: %w", translateError(err))
	}
	return seq, nil
}
