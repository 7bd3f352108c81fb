package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hmis-api/internal/repository"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type userRepository struct {
	q queryer
}

type patientRepository struct {
	q queryer
}

type staffRepository struct {
	q queryer
}

type appointmentRepository struct {
	q queryer
}

type outboxRepository struct {
	q queryer
}

// Store implements repository.Store on PostgreSQL
type Store struct {
	db *sqlx.DB
	tx *sqlx.Tx
	q  queryer
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Users() repository.UserRepository {
	return &userRepository{q: s.q}
}

func (s *Store) Patients() repository.PatientRepository {
	return &patientRepository{q: s.q}
}

func (s *Store) Staff() repository.StaffRepository {
	return &staffRepository{q: s.q}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{q: s.q}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{q: s.q}
}

// Transaction runs fn inside a database transaction. The transaction is
// committed when fn returns nil and rolled back on error or panic. Nested
// calls join the outer transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, tx: tx, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for migrations and health checks
func (s *Store) DB() *sqlx.DB {
	return s.db
}
