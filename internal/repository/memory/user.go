package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
)

type userRepository struct {
	sh *shared
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	for _, u := range r.sh.data.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.Duplicate(repository.ConstraintUserEmail)
		}
		if strings.EqualFold(u.Username, user.Username) {
			return repository.Duplicate(repository.ConstraintUserUsername)
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.sh.data.users[user.ID] = *user
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	u, ok := r.sh.data.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	for _, u := range r.sh.data.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	for _, u := range r.sh.data.users {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	existing, ok := r.sh.data.users[user.ID]
	if !ok {
		return fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	for id, u := range r.sh.data.users {
		if id != user.ID && strings.EqualFold(u.Email, user.Email) {
			return repository.Duplicate(repository.ConstraintUserEmail)
		}
	}

	user.UpdatedAt = time.Now()
	existing.Email = user.Email
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	existing.Phone = user.Phone
	existing.UpdatedAt = user.UpdatedAt
	r.sh.data.users[user.ID] = existing
	return nil
}

func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	u, ok := r.sh.data.users[id]
	if !ok {
		return fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	u.IsActive = active
	u.UpdatedAt = time.Now()
	r.sh.data.users[id] = u
	return nil
}

type staffRepository struct {
	sh *shared
}

func (r *staffRepository) Create(ctx context.Context, staff *model.Staff) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	if _, ok := r.sh.data.users[staff.UserID]; !ok {
		return fmt.Errorf("staff user: %w", repository.ErrNotFound)
	}
	for _, s := range r.sh.data.staff {
		if s.UserID == staff.UserID || s.EmployeeID == staff.EmployeeID {
			return repository.Duplicate(repository.ConstraintStaffUser)
		}
	}

	if staff.ID == uuid.Nil {
		staff.ID = uuid.New()
	}
	now := time.Now()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	r.sh.data.staff[staff.ID] = *staff
	return nil
}

func (r *staffRepository) Get(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	s, ok := r.sh.data.staff[id]
	if !ok {
		return nil, fmt.Errorf("staff: %w", repository.ErrNotFound)
	}
	u, ok := r.sh.data.users[s.UserID]
	if !ok {
		return nil, fmt.Errorf("staff: %w", repository.ErrNotFound)
	}
	s.Role = u.Role
	s.FirstName = u.FirstName
	s.LastName = u.LastName
	s.Email = u.Email
	s.IsActive = u.IsActive
	return &s, nil
}
