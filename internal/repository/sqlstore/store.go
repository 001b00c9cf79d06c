// Package sqlstore implements the entity store on PostgreSQL (lib/pq or pgx)
// and MySQL through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type Store struct {
	db         *sqlx.DB
	dialect    string
	maxRetries int
	repos
}

var _ repository.Store = (*Store)(nil)

// New wraps an open database. maxRetries bounds how often a transaction that
// lost a serialization race is replayed.
func New(db *sqlx.DB, maxRetries int) (*Store, error) {
	dialect, err := dialectOf(db.DriverName())
	if err != nil {
		return nil, err
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	s := &Store{db: db, dialect: dialect, maxRetries: maxRetries}
	s.repos = repos{q: db, dialect: dialect}
	return s, nil
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

// WithTx executes fn within a serializable transaction, replaying it when the
// database aborts it for a serialization failure or deadlock.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
			}
		}
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return errors.Wrap(errors.KindStorageFailure, "transaction retries exhausted", err)
}

func (s *Store) runTx(ctx context.Context, fn func(tx repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.StorageFailure(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(repos{q: tx, dialect: s.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
			return stderrors.Join(err, errors.StorageFailure(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageFailure(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// repos binds every repository to either the pool or one transaction.
type repos struct {
	q       sqlx.ExtContext
	dialect string
}

func (r repos) Patients() repository.PatientRepository         { return &patientRepository{r} }
func (r repos) Doctors() repository.DoctorRepository           { return &doctorRepository{r} }
func (r repos) Staff() repository.StaffRepository              { return &staffRepository{r} }
func (r repos) Rooms() repository.RoomRepository               { return &roomRepository{r} }
func (r repos) Treatments() repository.TreatmentRepository     { return &treatmentRepository{r} }
func (r repos) Payments() repository.PaymentRepository         { return &paymentRepository{r} }
func (r repos) Appointments() repository.AppointmentRepository { return &appointmentRepository{r} }
func (r repos) Outbox() repository.OutboxRepository            { return &outboxRepository{r} }

// insert runs an INSERT and returns the generated id.
func (r repos) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if r.dialect == dialectPostgres {
		var id int64
		err := r.q.QueryRowxContext(ctx, r.q.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r repos) get(ctx context.Context, dest interface{}, resource, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, r.q, dest, r.q.Rebind(query), args...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource)
	}
	if err != nil {
		return storageErr("get "+resource, err)
	}
	return nil
}

func (r repos) selectAll(ctx context.Context, dest interface{}, op, query string, args ...interface{}) error {
	if err := sqlx.SelectContext(ctx, r.q, dest, r.q.Rebind(query), args...); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// execOne runs a statement that must touch exactly one row.
func (r repos) execOne(ctx context.Context, resource, op, query string, args ...interface{}) error {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return storageErr(op+" "+resource, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return storageErr("get rows affected", err)
	}
	if rows == 0 {
		return errors.NotFound(resource)
	}
	return nil
}

// storageErr wraps a driver error, keeping it reachable for retry detection.
func storageErr(op string, err error) error {
	return errors.Wrap(errors.KindStorageFailure, "failed to "+op, err)
}

func now() time.Time {
	return time.Now().UTC()
}
