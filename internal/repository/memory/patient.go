package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
)

type patientRepository struct {
	sh *shared
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	if _, ok := r.sh.data.users[patient.UserID]; !ok {
		return fmt.Errorf("patient user: %w", repository.ErrNotFound)
	}
	for _, p := range r.sh.data.patients {
		if p.PatientNumber == patient.PatientNumber {
			return repository.Duplicate(repository.ConstraintPatientNumber)
		}
		if p.UserID == patient.UserID {
			return repository.Duplicate(repository.ConstraintPatientUser)
		}
	}

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := time.Now()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	r.sh.data.patients[patient.ID] = *patient
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	p, ok := r.sh.data.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient: %w", repository.ErrNotFound)
	}
	return r.join(p), nil
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	for _, p := range r.sh.data.patients {
		if p.UserID == userID {
			return r.join(p), nil
		}
	}
	return nil, fmt.Errorf("patient: %w", repository.ErrNotFound)
}

// join fills the user columns; caller holds the lock
func (r *patientRepository) join(p model.Patient) *model.Patient {
	if u, ok := r.sh.data.users[p.UserID]; ok {
		p.FirstName = u.FirstName
		p.LastName = u.LastName
		p.Email = u.Email
		p.Phone = u.Phone
		p.IsActive = u.IsActive
	}
	return &p
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	existing, ok := r.sh.data.patients[patient.ID]
	if !ok {
		return fmt.Errorf("patient: %w", repository.ErrNotFound)
	}

	patient.UpdatedAt = time.Now()
	existing.DateOfBirth = patient.DateOfBirth
	existing.Gender = patient.Gender
	existing.BloodType = patient.BloodType
	existing.Allergies = patient.Allergies
	existing.MedicalHistory = patient.MedicalHistory
	existing.InsuranceProvider = patient.InsuranceProvider
	existing.InsuranceNumber = patient.InsuranceNumber
	existing.EmergencyContactName = patient.EmergencyContactName
	existing.EmergencyContactPhone = patient.EmergencyContactPhone
	existing.Address = patient.Address
	existing.UpdatedAt = patient.UpdatedAt
	r.sh.data.patients[patient.ID] = existing
	return nil
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	search := strings.ToLower(filters.Search)
	var matched []*model.Patient
	for _, p := range r.sh.data.patients {
		joined := r.join(p)
		if !filters.IncludeInactive && !joined.IsActive {
			continue
		}
		if search != "" && !matchesSearch(joined, search) {
			continue
		}
		matched = append(matched, joined)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].PatientNumber > matched[j].PatientNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filters.Page), len(matched), nil
}

func matchesSearch(p *model.Patient, search string) bool {
	for _, field := range []string{p.FirstName, p.LastName, p.Email, p.PatientNumber} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (r *patientRepository) NextPatientNumber(ctx context.Context) (int64, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	r.sh.seq++
	return r.sh.seq, nil
}
