// Package memory is an in-process entity store. Transactions take the store lock
// for their whole duration and roll back by restoring a snapshot, which makes
// them serializable.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type state struct {
	patients     map[int64]model.Patient
	doctors      map[int64]model.Doctor
	staff        map[int64]model.Staff
	rooms        map[string]model.Room
	treatments   map[int64]model.Treatment
	payments     map[int64]model.Payment
	appointments map[int64]model.Appointment
	outbox       map[uuid.UUID]model.OutboxEvent
	seq          map[string]int64
}

func newState() *state {
	return &state{
		patients:     map[int64]model.Patient{},
		doctors:      map[int64]model.Doctor{},
		staff:        map[int64]model.Staff{},
		rooms:        map[string]model.Room{},
		treatments:   map[int64]model.Treatment{},
		payments:     map[int64]model.Payment{},
		appointments: map[int64]model.Appointment{},
		outbox:       map[uuid.UUID]model.OutboxEvent{},
		seq:          map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.doctors {
		c.doctors[k] = v
	}
	for k, v := range s.staff {
		c.staff[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.treatments {
		c.treatments[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

func (s *state) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

type Option func(*Store)

// WithClock overrides the clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTreatments seeds the read-only treatment catalog.
func WithTreatments(treatments ...model.Treatment) Option {
	return func(s *Store) {
		for _, t := range treatments {
			if t.ID == 0 {
				t.ID = s.data.nextID("treatments")
			} else if t.ID > s.data.seq["treatments"] {
				s.data.seq["treatments"] = t.ID
			}
			s.data.treatments[t.ID] = t
		}
	}
}

type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
	repos
}

var _ repository.Store = (*Store)(nil)

func New(opts ...Option) *Store {
	s := &Store{data: newState(), now: time.Now}
	s.repos = repos{store: s}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
	}()

	if err := fn(repos{store: s, inTx: true}); err != nil {
		s.data = snapshot
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

// repos binds the entity repositories either to the store lock or to a running
// transaction, which already holds it.
type repos struct {
	store *Store
	inTx  bool
}

func (r repos) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r repos) Patients() repository.PatientRepository         { return patientRepository{r} }
func (r repos) Doctors() repository.DoctorRepository           { return doctorRepository{r} }
func (r repos) Staff() repository.StaffRepository              { return staffRepository{r} }
func (r repos) Rooms() repository.RoomRepository               { return roomRepository{r} }
func (r repos) Treatments() repository.TreatmentRepository     { return treatmentRepository{r} }
func (r repos) Payments() repository.PaymentRepository         { return paymentRepository{r} }
func (r repos) Appointments() repository.AppointmentRepository { return appointmentRepository{r} }
func (r repos) Outbox() repository.OutboxRepository            { return outboxRepository{r} }
