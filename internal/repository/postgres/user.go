package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
)

const userColumns = `id, username, email, password_hash, role, first_name,
	last_name, phone, is_active, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, role, first_name,
			last_name, phone, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translateError(err))
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := r.q.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translateError(err))
	}
	return &user, nil
}

// GetByEmail matches case-insensitively, inactive users included
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	var user model.User
	if err := r.q.GetContext(ctx, &user, query, email); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", translateError(err))
	}
	return &user, nil
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`

	var exists bool
	if err := r.q.GetContext(ctx, &exists, query, username); err != nil {
		return false, fmt.Errorf("failed to check username: %w", translateError(err))
	}
	return exists, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			email = $1,
			first_name = $2,
			last_name = $3,
			phone = $4,
			updated_at = $5
		WHERE id = $6
	`
	user.UpdatedAt = time.Now()

	result, err := r.q.ExecContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", translateError(err))
	}
	return expectRow(result, "user")
}

func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to set user active flag: %w", translateError(err))
	}
	return expectRow(result, "user")
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func expectRow(result rowsAffecter, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", entity, repository.ErrNotFound)
	}
	return nil
}
