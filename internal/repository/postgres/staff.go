package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
)

func (r *staffRepository) Create(ctx context.Context, staff *model.Staff) error {
	query := `
		INSERT INTO staff (
			id, user_id, employee_id, department, specialization,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if staff.ID == uuid.Nil {
		staff.ID = uuid.New()
	}
	now := time.Now()
	staff.CreatedAt = now
	staff.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, query,
		staff.ID,
		staff.UserID,
		staff.EmployeeID,
		staff.Department,
		staff.Specialization,
		staff.CreatedAt,
		staff.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create staff: %w", translateError(err))
	}
	return nil
}

func (r *staffRepository) Get(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	query := `
		SELECT s.id, s.user_id, s.employee_id, s.department, s.specialization,
			   s.created_at, s.updated_at,
			   u.role, u.first_name, u.last_name, u.email, u.is_active
		FROM staff s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`
	var staff model.Staff
	if err := r.q.GetContext(ctx, &staff, query, id); err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", translateError(err))
	}
	return &staff, nil
}
