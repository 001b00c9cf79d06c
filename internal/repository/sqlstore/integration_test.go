package sqlstore_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/sqlstore"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/conflict"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/internal/service/payment"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// testDB is the migrated database shared by the integration tests. It stays nil
// unless CLINIC_TEST_DSN points at a disposable PostgreSQL or MySQL database;
// CLINIC_TEST_DRIVER selects postgres, pgx (default) or mysql.
var testDB *sqlx.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("CLINIC_TEST_DSN")
	if dsn == "" {
		os.Exit(m.Run())
	}
	driver := os.Getenv("CLINIC_TEST_DRIVER")
	if driver == "" {
		driver = "pgx"
	}

	db, err := openTestDB(driver, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up test database: %v\n", err)
		os.Exit(1)
	}
	testDB = db
	code := m.Run()
	db.Close()
	os.Exit(code)
}

func openTestDB(driver, dsn string) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	migrator, err := sqlstore.NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

type SQLStoreSuite struct {
	suite.Suite
	ctx     context.Context
	store   *sqlstore.Store
	service *appointment.Service

	patient *model.Patient
	other   *model.Patient
	doctor  *model.Doctor
	doctor2 *model.Doctor
	staff   []*model.Staff
	slot    model.Slot
}

func TestSQLStore(t *testing.T) {
	if testDB == nil {
		t.Skip("CLINIC_TEST_DSN not set")
	}
	suite.Run(t, new(SQLStoreSuite))
}

func (s *SQLStoreSuite) SetupTest() {
	s.ctx = context.Background()
	for _, table := range []string{"outbox_events", "payments", "appointments", "staff", "doctors", "patients", "rooms"} {
		_, err := testDB.ExecContext(s.ctx, "DELETE FROM "+table)
		s.Require().NoError(err, "clear %s", table)
	}

	store, err := sqlstore.New(testDB, 5)
	s.Require().NoError(err)
	s.store = store

	clock := func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	checker := conflict.NewChecker(conflict.WithClock(clock), conflict.WithLocation(time.UTC))
	s.service = appointment.NewService(store, checker, event.NewEventService(), logger.Nop(), metrics.NewMetrics("test"))

	for _, n := range []string{"101", "102"} {
		s.Require().NoError(store.Rooms().Create(s.ctx, &model.Room{Number: n}))
	}
	s.patient = s.createPatient("Ada")
	s.other = s.createPatient("Grace")
	s.doctor = s.createDoctor("Dr Lee", "101")
	s.doctor2 = s.createDoctor("Dr Park", "102")
	s.staff = nil
	for _, name := range []string{"Sam", "Kim"} {
		st := &model.Staff{Name: name, Role: "Nurse"}
		s.Require().NoError(store.Staff().Create(s.ctx, st))
		s.staff = append(s.staff, st)
	}
	s.slot = model.Slot{Date: "2026-03-10", Time: "09:00 AM"}
}

func (s *SQLStoreSuite) createPatient(name string) *model.Patient {
	p := &model.Patient{Name: name, Gender: "Female", BirthDate: "1990-01-01", Phone: "555-0100"}
	s.Require().NoError(s.store.Patients().Create(s.ctx, p))
	s.Require().NotZero(p.ID)
	return p
}

func (s *SQLStoreSuite) createDoctor(name, room string) *model.Doctor {
	d := &model.Doctor{Name: name, Specialty: "General", AssignedRoom: &room}
	s.Require().NoError(s.store.Doctors().Create(s.ctx, d))
	s.Require().NotZero(d.ID)
	return d
}

func (s *SQLStoreSuite) selfBook(patientID, doctorID int64, slot model.Slot) (*model.Appointment, error) {
	return s.service.Book(s.ctx, appointment.BookRequest{
		PatientID: patientID,
		DoctorID:  doctorID,
		Slot:      slot,
		Channel:   model.ChannelSelfService,
	})
}

func (s *SQLStoreSuite) scheduled(patientID, doctorID int64, staffID int64) *model.Appointment {
	apt, err := s.selfBook(patientID, doctorID, s.slot)
	s.Require().NoError(err)
	apt, err = s.service.Verify(s.ctx, apt.ID, staffID)
	s.Require().NoError(err)
	return apt
}

func (s *SQLStoreSuite) roomStatus(number string) model.RoomStatus {
	room, err := s.store.Rooms().Get(s.ctx, number)
	s.Require().NoError(err)
	return room.Status
}

func (s *SQLStoreSuite) TestBookWritesAppointmentAndPayment() {
	apt, err := s.selfBook(s.patient.ID, s.doctor.ID, model.Slot{Date: "2026-03-10", Time: "9:00 am"})
	s.Require().NoError(err)
	s.NotZero(apt.ID)

	stored, err := s.store.Appointments().Get(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Equal(s.slot, stored.Slot)
	s.Equal(model.AppointmentStatusPending, stored.Status)
	s.Require().NotNil(stored.RoomNumber)
	s.Equal("101", *stored.RoomNumber)
	s.Equal(model.RoomStatusOccupied, s.roomStatus("101"))

	s.Require().NotNil(stored.PaymentID)
	p, err := s.store.Payments().Get(s.ctx, *stored.PaymentID)
	s.Require().NoError(err)
	s.Equal(apt.ID, p.AppointmentID)
	s.True(p.Amount.IsZero())
	s.Equal(model.PaymentStatusPending, p.Status)

	events, err := s.store.Outbox().GetPendingEventsWithLock(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(model.EventAppointmentBooked, events[0].EventType)
}

func (s *SQLStoreSuite) TestSequenceViolation() {
	_, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)

	_, err = s.selfBook(s.patient.ID, s.doctor2.ID, model.Slot{Date: "2026-03-09", Time: "09:00 AM"})
	s.True(errors.IsKind(err, errors.KindSequenceViolation), "got %v", err)

	n, err := s.store.Appointments().Count(s.ctx, &model.AppointmentFilters{PatientID: &s.patient.ID})
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *SQLStoreSuite) TestVerifyExcludesBusyStaff() {
	first := s.scheduled(s.patient.ID, s.doctor.ID, s.staff[0].ID)
	second, err := s.selfBook(s.other.ID, s.doctor2.ID, s.slot)
	s.Require().NoError(err)

	free, err := s.store.Staff().ListFree(s.ctx, s.slot, 0)
	s.Require().NoError(err)
	s.Require().Len(free, 1)
	s.Equal(s.staff[1].ID, free[0].ID)

	free, err = s.store.Staff().ListFree(s.ctx, s.slot, first.ID)
	s.Require().NoError(err)
	s.Len(free, 2)

	_, err = s.service.Verify(s.ctx, second.ID, s.staff[0].ID)
	s.True(errors.IsKind(err, errors.KindNoResourceAvailable), "got %v", err)

	verified, err := s.service.Verify(s.ctx, second.ID, s.staff[1].ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusScheduled, verified.Status)
}

func (s *SQLStoreSuite) TestRescheduleThenRebook() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.staff[0].ID)

	result, err := s.service.Reschedule(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusCancelled, result.Cancelled.Status)
	s.Equal(model.RoomStatusAvailable, s.roomStatus("101"))

	blocked := result.Rebook.BlockedSlot
	rebook := appointment.BookRequest{
		PatientID: s.patient.ID,
		DoctorID:  s.doctor.ID,
		Slot:      s.slot,
		Channel:   model.ChannelSelfService,
		Blocked:   &blocked,
	}
	_, err = s.service.Book(s.ctx, rebook)
	s.True(errors.IsKind(err, errors.KindResourceConflict), "got %v", err)

	rebook.Slot = model.Slot{Date: "2026-03-10", Time: "11:00 AM"}
	_, err = s.service.Book(s.ctx, rebook)
	s.Require().NoError(err)

	free, err := s.store.Staff().ListFree(s.ctx, s.slot, 0)
	s.Require().NoError(err)
	s.Len(free, 2, "cancelled appointments release their staff")
}

func (s *SQLStoreSuite) TestDeleteRemovesPayment() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.staff[0].ID)

	err := s.service.Delete(s.ctx, apt.ID, appointment.DeleteOptions{})
	s.True(errors.IsKind(err, errors.KindInvalidTransition), "got %v", err)

	_, err = s.service.Cancel(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.service.Delete(s.ctx, apt.ID, appointment.DeleteOptions{}))

	_, err = s.store.Appointments().Get(s.ctx, apt.ID)
	s.True(errors.IsKind(err, errors.KindNotFound))
	_, err = s.store.Payments().Get(s.ctx, *apt.PaymentID)
	s.True(errors.IsKind(err, errors.KindNotFound))

	err = s.service.Delete(s.ctx, apt.ID, appointment.DeleteOptions{})
	s.True(errors.IsKind(err, errors.KindNotFound))
}

func (s *SQLStoreSuite) TestCompleteSettlesPaymentInLedger() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.staff[0].ID)

	done, err := s.service.Complete(s.ctx, apt.ID, appointment.CompleteRequest{TreatmentID: 1, Notes: "all good"})
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusCompleted, done.Status)
	s.Equal(model.RoomStatusAvailable, s.roomStatus("101"))

	entries, err := payment.NewService(s.store).Ledger(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(apt.ID, entries[0].AppointmentID)
	s.Equal("Ada", entries[0].PatientName)
	s.True(entries[0].Amount.Equal(decimal.RequireFromString("50.00")), "amount %s", entries[0].Amount)
	s.Equal(model.PaymentStatusPaid, entries[0].Status)
	s.Equal("2026-03-01", entries[0].Date)
	s.False(entries[0].Estimated)

	details, err := s.service.DoctorWorklist(s.ctx, s.doctor.ID, "")
	s.Require().NoError(err)
	s.Require().Len(details, 1)
	s.Require().NotNil(details[0].TreatmentLabel)
	s.Equal("General Consultation", *details[0].TreatmentLabel)
}

func (s *SQLStoreSuite) TestStatusFilterExpandsIn() {
	_, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)
	cancelled, err := s.selfBook(s.other.ID, s.doctor2.ID, s.slot)
	s.Require().NoError(err)
	_, err = s.service.Cancel(s.ctx, cancelled.ID)
	s.Require().NoError(err)

	active, err := s.store.Appointments().List(s.ctx, &model.AppointmentFilters{
		Date:     s.slot.Date,
		Statuses: []model.AppointmentStatus{model.AppointmentStatusPending, model.AppointmentStatusScheduled},
	})
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(s.patient.ID, active[0].PatientID)
}

func (s *SQLStoreSuite) TestConcurrentBookingsOfOneRoom() {
	const callers = 3
	patients := make([]*model.Patient, callers)
	for i := range patients {
		patients[i] = s.createPatient(fmt.Sprintf("Patient %d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range patients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.selfBook(patients[i].ID, s.doctor.ID, s.slot)
		}(i)
	}
	wg.Wait()

	booked := 0
	for _, err := range errs {
		if err == nil {
			booked++
			continue
		}
		s.True(errors.IsKind(err, errors.KindResourceConflict), "got %v", err)
	}
	s.Equal(1, booked)

	room := "101"
	n, err := s.store.Appointments().Count(s.ctx, &model.AppointmentFilters{RoomNumber: &room})
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *SQLStoreSuite) TestRoomSlotIndexRejectsDuplicates() {
	if testDB.DriverName() == "mysql" {
		s.T().Skip("partial unique index is postgres only")
	}
	room := "101"
	first := &model.Appointment{
		Slot:       s.slot,
		Status:     model.AppointmentStatusPending,
		Channel:    model.ChannelFrontDesk,
		PatientID:  s.patient.ID,
		DoctorID:   s.doctor.ID,
		RoomNumber: &room,
	}
	s.Require().NoError(s.store.Appointments().Create(s.ctx, first))

	dup := *first
	dup.ID = 0
	dup.PatientID = s.other.ID
	err := s.store.Appointments().Create(s.ctx, &dup)
	s.True(errors.IsKind(err, errors.KindResourceConflict), "got %v", err)

	first.Status = model.AppointmentStatusCancelled
	s.Require().NoError(s.store.Appointments().Update(s.ctx, first))
	s.NoError(s.store.Appointments().Create(s.ctx, &dup))
}
