package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// All repository interfaces in one file. Lookups of a missing row return a
// pkg/errors NotFound; driver failures come back as StorageFailure.
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id int64) (*model.Patient, error)
		GetForUpdate(ctx context.Context, id int64) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context, page model.Pagination) ([]*model.Patient, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id int64) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context) ([]*model.Doctor, error)
	}

	StaffRepository interface {
		Create(ctx context.Context, staff *model.Staff) error
		Get(ctx context.Context, id int64) (*model.Staff, error)
		GetForUpdate(ctx context.Context, id int64) (*model.Staff, error)
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context) ([]*model.Staff, error)
		// ListFree returns staff with no non-Cancelled appointment at slot, ignoring
		// the appointment identified by excludeAppointmentID (0 ignores nothing).
		ListFree(ctx context.Context, slot model.Slot, excludeAppointmentID int64) ([]*model.Staff, error)
	}

	RoomRepository interface {
		Create(ctx context.Context, room *model.Room) error
		Get(ctx context.Context, number string) (*model.Room, error)
		GetForUpdate(ctx context.Context, number string) (*model.Room, error)
		Delete(ctx context.Context, number string) error
		List(ctx context.Context) ([]*model.Room, error)
		SetStatus(ctx context.Context, number string, status model.RoomStatus) error
	}

	TreatmentRepository interface {
		Get(ctx context.Context, id int64) (*model.Treatment, error)
		List(ctx context.Context) ([]*model.Treatment, error)
	}

	PaymentRepository interface {
		Create(ctx context.Context, payment *model.Payment) error
		Get(ctx context.Context, id int64) (*model.Payment, error)
		Update(ctx context.Context, payment *model.Payment) error
		Delete(ctx context.Context, id int64) error
		// Ledger joins every payment to its appointment and patient, newest payment first.
		Ledger(ctx context.Context) ([]*model.LedgerRow, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.Appointment, error)
		// GetForUpdate reads the row and holds a write lock on it until the transaction ends.
		GetForUpdate(ctx context.Context, id int64) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		Count(ctx context.Context, filters *model.AppointmentFilters) (int, error)
		ListDetails(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Repositories groups every entity repository bound to one connection or transaction.
type Repositories interface {
	Patients() PatientRepository
	Doctors() DoctorRepository
	Staff() StaffRepository
	Rooms() RoomRepository
	Treatments() TreatmentRepository
	Payments() PaymentRepository
	Appointments() AppointmentRepository
	Outbox() OutboxRepository
}

// Store is the entity store. WithTx runs fn inside one serializable transaction:
// either every write fn makes is committed or none is.
type Store interface {
	Repositories
	WithTx(ctx context.Context, fn func(tx Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}
