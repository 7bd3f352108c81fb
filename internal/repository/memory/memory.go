// Package memory is an in-process repository.Store used for demos and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
)

type state struct {
	users        map[uuid.UUID]model.User
	patients     map[uuid.UUID]model.Patient
	staff        map[uuid.UUID]model.Staff
	appointments map[uuid.UUID]model.Appointment
	outbox       map[uuid.UUID]model.OutboxEvent
}

func newState() *state {
	return &state{
		users:        make(map[uuid.UUID]model.User),
		patients:     make(map[uuid.UUID]model.Patient),
		staff:        make(map[uuid.UUID]model.Staff),
		appointments: make(map[uuid.UUID]model.Appointment),
		outbox:       make(map[uuid.UUID]model.OutboxEvent),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.staff {
		c.staff[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

type shared struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state
	// patient number sequence; like a database sequence it survives rollback
	seq int64
}

// Store implements repository.Store with maps guarded by a mutex.
// Transactions are serialized and restore a snapshot when fn fails.
type Store struct {
	sh   *shared
	inTx bool
}

func NewStore() *Store {
	return &Store{sh: &shared{data: newState()}}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Users() repository.UserRepository {
	return &userRepository{sh: s.sh}
}

func (s *Store) Patients() repository.PatientRepository {
	return &patientRepository{sh: s.sh}
}

func (s *Store) Staff() repository.StaffRepository {
	return &staffRepository{sh: s.sh}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{sh: s.sh}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{sh: s.sh}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	s.sh.txMu.Lock()
	defer s.sh.txMu.Unlock()

	s.sh.mu.RLock()
	snapshot := s.sh.data.clone()
	s.sh.mu.RUnlock()

	restore := func() {
		s.sh.mu.Lock()
		s.sh.data = snapshot
		s.sh.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(&Store{sh: s.sh, inTx: true}); err != nil {
		restore()
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

// paginate slices items for the normalized page
func paginate[T any](items []T, page model.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
