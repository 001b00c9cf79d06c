package appointment

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/conflict"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

var clinicNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type AppointmentServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	service *Service

	patient  *model.Patient
	other    *model.Patient
	doctor   *model.Doctor
	doctor2  *model.Doctor
	staff    []*model.Staff
	slot     model.Slot
	roomA    string
	roomB    string
	checkups int64
}

func (s *AppointmentServiceSuite) SetupTest() {
	s.ctx = context.Background()
	clock := func() time.Time { return clinicNow }
	s.checkups = 9
	s.store = memory.New(
		memory.WithClock(clock),
		memory.WithTreatments(append(model.DefaultTreatments(),
			model.Treatment{ID: s.checkups, Label: "Checkup", Cost: decimal.RequireFromString("75.00")})...),
	)
	checker := conflict.NewChecker(conflict.WithClock(clock), conflict.WithLocation(time.UTC))
	s.service = NewService(s.store, checker, event.NewEventService(), logger.Nop(), metrics.NewMetrics("test"))

	s.roomA, s.roomB = "101", "102"
	for _, n := range []string{s.roomA, s.roomB} {
		s.Require().NoError(s.store.Rooms().Create(s.ctx, &model.Room{Number: n}))
	}
	s.patient = s.createPatient("Ada")
	s.other = s.createPatient("Grace")
	s.doctor = s.createDoctor("Dr Lee", &s.roomA)
	s.doctor2 = s.createDoctor("Dr Park", &s.roomB)
	s.staff = nil
	for _, name := range []string{"Sam", "Kim"} {
		st := &model.Staff{Name: name, Role: "Nurse"}
		s.Require().NoError(s.store.Staff().Create(s.ctx, st))
		s.staff = append(s.staff, st)
	}
	s.slot = model.Slot{Date: "2026-03-10", Time: "09:00 AM"}
}

func (s *AppointmentServiceSuite) createPatient(name string) *model.Patient {
	p := &model.Patient{Name: name, Gender: "Female", BirthDate: "1990-01-01", Phone: "555-0100"}
	s.Require().NoError(s.store.Patients().Create(s.ctx, p))
	return p
}

func (s *AppointmentServiceSuite) createDoctor(name string, room *string) *model.Doctor {
	d := &model.Doctor{Name: name, Specialty: "General", AssignedRoom: room}
	s.Require().NoError(s.store.Doctors().Create(s.ctx, d))
	return d
}

func (s *AppointmentServiceSuite) selfBook(patientID, doctorID int64, slot model.Slot) (*model.Appointment, error) {
	return s.service.Book(s.ctx, BookRequest{
		PatientID: patientID,
		DoctorID:  doctorID,
		Slot:      slot,
		Channel:   model.ChannelSelfService,
	})
}

func (s *AppointmentServiceSuite) scheduled(patientID, doctorID int64, slot model.Slot, staffID int64) *model.Appointment {
	apt, err := s.selfBook(patientID, doctorID, slot)
	s.Require().NoError(err)
	apt, err = s.service.Verify(s.ctx, apt.ID, staffID)
	s.Require().NoError(err)
	return apt
}

func (s *AppointmentServiceSuite) roomStatus(number string) model.RoomStatus {
	room, err := s.store.Rooms().Get(s.ctx, number)
	s.Require().NoError(err)
	return room.Status
}

func (s *AppointmentServiceSuite) payment(apt *model.Appointment) *model.Payment {
	s.Require().NotNil(apt.PaymentID)
	p, err := s.store.Payments().Get(s.ctx, *apt.PaymentID)
	s.Require().NoError(err)
	return p
}

func (s *AppointmentServiceSuite) TestBookCreatesPendingAppointmentAndHoldsRoom() {
	apt, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)

	s.Equal(model.AppointmentStatusPending, apt.Status)
	s.Require().NotNil(apt.RoomNumber)
	s.Equal(s.roomA, *apt.RoomNumber)
	s.Equal(model.RoomStatusOccupied, s.roomStatus(s.roomA))

	p := s.payment(apt)
	s.True(p.Amount.IsZero())
	s.Equal(model.PaymentStatusPending, p.Status)
	s.Require().NotNil(p.Date)
	s.Equal("2026-03-01", *p.Date)
}

func (s *AppointmentServiceSuite) TestBookEarlierSlotViolatesSequence() {
	_, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)

	_, err = s.selfBook(s.patient.ID, s.doctor2.ID, model.Slot{Date: "2026-03-09", Time: "09:00 AM"})
	s.True(errors.IsKind(err, errors.KindSequenceViolation), "got %v", err)

	n, err := s.store.Appointments().Count(s.ctx, &model.AppointmentFilters{PatientID: &s.patient.ID})
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *AppointmentServiceSuite) TestBookRejectsPastDate() {
	_, err := s.selfBook(s.patient.ID, s.doctor.ID, model.Slot{Date: "2026-02-28", Time: "09:00 AM"})
	s.True(errors.IsKind(err, errors.KindInvalidDate))

	_, err = s.selfBook(s.patient.ID, s.doctor.ID, model.Slot{Date: "2026-03-01", Time: "09:00 AM"})
	s.NoError(err, "today is bookable")
}

func (s *AppointmentServiceSuite) TestBookRejectsMalformedSlot() {
	_, err := s.selfBook(s.patient.ID, s.doctor.ID, model.Slot{Date: "2026-03-10", Time: "25:00"})
	s.True(errors.IsKind(err, errors.KindValidation))
}

func (s *AppointmentServiceSuite) TestBookSelfServiceRoomConflict() {
	_, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)

	_, err = s.selfBook(s.other.ID, s.doctor.ID, s.slot)
	s.True(errors.IsKind(err, errors.KindResourceConflict))
}

func (s *AppointmentServiceSuite) TestBookUnknownPatientLeavesNoTrace() {
	_, err := s.selfBook(999, s.doctor.ID, s.slot)
	s.True(errors.IsKind(err, errors.KindNotFound))

	n, err := s.store.Appointments().Count(s.ctx, nil)
	s.Require().NoError(err)
	s.Zero(n)
	s.Equal(model.RoomStatusAvailable, s.roomStatus(s.roomA))
}

func (s *AppointmentServiceSuite) TestFrontDeskBookingDefersRoomToVerify() {
	apt, err := s.service.Book(s.ctx, BookRequest{PatientID: s.patient.ID, DoctorID: s.doctor.ID, Slot: s.slot})
	s.Require().NoError(err)
	s.Equal(model.ChannelFrontDesk, apt.Channel)
	s.Nil(apt.RoomNumber)
	s.Equal(model.RoomStatusAvailable, s.roomStatus(s.roomA))

	apt, err = s.service.Verify(s.ctx, apt.ID, s.staff[0].ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusScheduled, apt.Status)
	s.Require().NotNil(apt.RoomNumber)
	s.Equal(s.roomA, *apt.RoomNumber)
	s.Equal(model.RoomStatusOccupied, s.roomStatus(s.roomA))
}

func (s *AppointmentServiceSuite) TestVerifyExcludesBusyStaff() {
	s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)
	second, err := s.selfBook(s.other.ID, s.doctor2.ID, s.slot)
	s.Require().NoError(err)

	eligible, err := s.service.EligibleStaff(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Require().Len(eligible, 1)
	s.Equal(s.staff[1].ID, eligible[0].ID)

	_, err = s.service.Verify(s.ctx, second.ID, s.staff[0].ID)
	s.True(errors.IsKind(err, errors.KindNoResourceAvailable), "got %v", err)

	got, err := s.service.Get(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusPending, got.Status)
	s.Nil(got.StaffID)

	verified, err := s.service.Verify(s.ctx, second.ID, s.staff[1].ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusScheduled, verified.Status)
}

func (s *AppointmentServiceSuite) TestVerifyWithNoFreeStaff() {
	s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)
	third := s.createPatient("Linus")
	s.scheduled(third.ID, s.doctor2.ID, s.slot, s.staff[1].ID)

	fourth := s.createPatient("Barbara")
	doctor3 := s.createDoctor("Dr Kay", nil)
	apt, err := s.selfBook(fourth.ID, doctor3.ID, s.slot)
	s.Require().NoError(err)

	_, err = s.service.Verify(s.ctx, apt.ID, s.staff[0].ID)
	s.True(errors.IsKind(err, errors.KindNoResourceAvailable))
}

func (s *AppointmentServiceSuite) TestReverifyKeepsOwnStaffEligible() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)

	eligible, err := s.service.EligibleStaff(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Len(eligible, 2)

	apt, err = s.service.Verify(s.ctx, apt.ID, s.staff[1].ID)
	s.Require().NoError(err)
	s.Equal(s.staff[1].ID, *apt.StaffID)
}

func (s *AppointmentServiceSuite) TestRescheduleThenRebook() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)

	result, err := s.service.Reschedule(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusCancelled, result.Cancelled.Status)
	s.Equal(s.patient.ID, result.Rebook.PatientID)
	s.Equal(s.doctor.ID, result.Rebook.DoctorID)
	s.Equal(s.slot, result.Rebook.BlockedSlot)
	s.Equal(model.RoomStatusAvailable, s.roomStatus(s.roomA))

	blocked := result.Rebook.BlockedSlot
	rebook := BookRequest{
		PatientID: result.Rebook.PatientID,
		DoctorID:  result.Rebook.DoctorID,
		Slot:      s.slot,
		Channel:   model.ChannelSelfService,
		Blocked:   &blocked,
	}
	_, err = s.service.Book(s.ctx, rebook)
	s.True(errors.IsKind(err, errors.KindResourceConflict))

	rebook.Slot = model.Slot{Date: "2026-03-10", Time: "11:00 AM"}
	fresh, err := s.service.Book(s.ctx, rebook)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusPending, fresh.Status)

	old, err := s.service.Get(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusCancelled, old.Status)

	free, err := s.service.RoomAvailability(s.ctx, s.roomA, s.slot.Date, s.slot.Time)
	s.Require().NoError(err)
	s.True(free.Free)
}

func (s *AppointmentServiceSuite) TestRescheduleRequiresScheduled() {
	apt, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)

	_, err = s.service.Reschedule(s.ctx, apt.ID)
	s.True(errors.IsKind(err, errors.KindInvalidTransition))
}

func (s *AppointmentServiceSuite) TestDeleteScheduledIsRejectedUntilCancelled() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)

	err := s.service.Delete(s.ctx, apt.ID, DeleteOptions{})
	s.True(errors.IsKind(err, errors.KindInvalidTransition))

	_, err = s.service.Cancel(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.service.Delete(s.ctx, apt.ID, DeleteOptions{}))

	_, err = s.service.Get(s.ctx, apt.ID)
	s.True(errors.IsKind(err, errors.KindNotFound))
	_, err = s.store.Payments().Get(s.ctx, *apt.PaymentID)
	s.True(errors.IsKind(err, errors.KindNotFound))
	s.Equal(model.RoomStatusAvailable, s.roomStatus(s.roomA))

	err = s.service.Delete(s.ctx, apt.ID, DeleteOptions{})
	s.True(errors.IsKind(err, errors.KindNotFound))
}

func (s *AppointmentServiceSuite) TestDeletePendingReleasesRoom() {
	apt, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)
	s.Equal(model.RoomStatusOccupied, s.roomStatus(s.roomA))

	s.Require().NoError(s.service.Delete(s.ctx, apt.ID, DeleteOptions{}))
	s.Equal(model.RoomStatusAvailable, s.roomStatus(s.roomA))
}

func (s *AppointmentServiceSuite) TestCompleteSettlesPayment() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)

	done, err := s.service.Complete(s.ctx, apt.ID, CompleteRequest{TreatmentID: s.checkups, Notes: "all good"})
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusCompleted, done.Status)
	s.Require().NotNil(done.DoctorNotes)
	s.Equal("all good", *done.DoctorNotes)

	p := s.payment(done)
	s.True(p.Amount.Equal(decimal.RequireFromString("75.00")), "amount %s", p.Amount)
	s.Equal(model.PaymentStatusPaid, p.Status)
	s.Equal(model.RoomStatusAvailable, s.roomStatus(s.roomA))
}

func (s *AppointmentServiceSuite) TestCompleteGuards() {
	pending, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)
	_, err = s.service.Complete(s.ctx, pending.ID, CompleteRequest{TreatmentID: 1})
	s.True(errors.IsKind(err, errors.KindInvalidTransition))

	apt, err := s.service.Verify(s.ctx, pending.ID, s.staff[0].ID)
	s.Require().NoError(err)

	_, err = s.service.Complete(s.ctx, apt.ID, CompleteRequest{TreatmentID: 1, DoctorID: s.doctor2.ID})
	s.True(errors.IsKind(err, errors.KindForbidden))

	_, err = s.service.Complete(s.ctx, apt.ID, CompleteRequest{TreatmentID: 404})
	s.True(errors.IsKind(err, errors.KindNotFound))

	got, err := s.service.Get(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusScheduled, got.Status)
	s.True(s.payment(got).Amount.IsZero())
}

func (s *AppointmentServiceSuite) TestDeleteCompletedNeedsConfirmation() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)
	_, err := s.service.Complete(s.ctx, apt.ID, CompleteRequest{TreatmentID: 1})
	s.Require().NoError(err)

	err = s.service.Delete(s.ctx, apt.ID, DeleteOptions{})
	s.True(errors.IsKind(err, errors.KindInvalidTransition))
	appErr, ok := errors.As(err)
	s.Require().True(ok)
	s.Equal(true, appErr.Details["confirmation_required"])

	s.NoError(s.service.Delete(s.ctx, apt.ID, DeleteOptions{ConfirmCompleted: true}))
}

func (s *AppointmentServiceSuite) TestTerminalStatesRejectTransitions() {
	apt, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)

	_, err = s.service.Cancel(s.ctx, apt.ID)
	s.Require().NoError(err)

	_, err = s.service.Cancel(s.ctx, apt.ID)
	s.True(errors.IsKind(err, errors.KindInvalidTransition))
	_, err = s.service.Verify(s.ctx, apt.ID, s.staff[0].ID)
	s.True(errors.IsKind(err, errors.KindInvalidTransition))
	_, err = s.service.Complete(s.ctx, apt.ID, CompleteRequest{TreatmentID: 1})
	s.True(errors.IsKind(err, errors.KindInvalidTransition))
	_, err = s.service.Reschedule(s.ctx, apt.ID)
	s.True(errors.IsKind(err, errors.KindInvalidTransition))
}

func (s *AppointmentServiceSuite) TestCancelledSlotIsBookableAgain() {
	apt, err := s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.Require().NoError(err)
	_, err = s.service.Cancel(s.ctx, apt.ID)
	s.Require().NoError(err)

	_, err = s.selfBook(s.other.ID, s.doctor.ID, s.slot)
	s.NoError(err)
}

func (s *AppointmentServiceSuite) TestTransitionsEmitOutboxEvents() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)
	_, err := s.service.Cancel(s.ctx, apt.ID)
	s.Require().NoError(err)

	events, err := s.store.Outbox().GetPendingEventsWithLock(s.ctx, 0)
	s.Require().NoError(err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	s.ElementsMatch([]string{
		model.EventAppointmentBooked,
		model.EventAppointmentVerified,
		model.EventAppointmentCancelled,
	}, types)
}

func (s *AppointmentServiceSuite) TestViews() {
	first := s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)
	_, err := s.selfBook(s.patient.ID, s.doctor.ID, model.Slot{Date: "2026-03-12", Time: "09:00 AM"})
	s.Require().NoError(err)

	history, err := s.service.PatientHistory(s.ctx, s.patient.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("2026-03-12", history[0].Date, "history is newest first")
	s.Equal("Dr Lee", history[1].DoctorName)

	worklist, err := s.service.DoctorWorklist(s.ctx, s.doctor.ID, "")
	s.Require().NoError(err)
	s.Require().Len(worklist, 1, "pending appointments are not on the worklist")
	s.Equal(first.ID, worklist[0].ID)
	s.Require().NotNil(worklist[0].StaffName)
	s.Equal("Sam", *worklist[0].StaffName)

	worklist, err = s.service.DoctorWorklist(s.ctx, s.doctor.ID, "2026-03-11")
	s.Require().NoError(err)
	s.Empty(worklist)

	_, err = s.service.PatientHistory(s.ctx, 404)
	s.True(errors.IsKind(err, errors.KindNotFound))
}

func (s *AppointmentServiceSuite) TestDeletedStaffAndRoomAreTolerated() {
	apt := s.scheduled(s.patient.ID, s.doctor.ID, s.slot, s.staff[0].ID)
	s.Require().NoError(s.store.Staff().Delete(s.ctx, s.staff[0].ID))
	s.Require().NoError(s.store.Rooms().Delete(s.ctx, s.roomA))

	schedule, err := s.service.Schedule(s.ctx, model.AppointmentFilters{})
	s.Require().NoError(err)
	s.Require().Len(schedule, 1)
	s.Nil(schedule[0].StaffName)

	_, err = s.service.Cancel(s.ctx, apt.ID)
	s.NoError(err)
}

// faultyStore fails one kind of write inside every transaction.
type faultyStore struct {
	*memory.Store
	payments error
	outbox   error
}

func (f faultyStore) WithTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	return f.Store.WithTx(ctx, func(tx repository.Repositories) error {
		return fn(faultyRepos{Repositories: tx, store: f})
	})
}

type faultyRepos struct {
	repository.Repositories
	store faultyStore
}

func (r faultyRepos) Payments() repository.PaymentRepository {
	return faultyPayments{PaymentRepository: r.Repositories.Payments(), err: r.store.payments}
}

func (r faultyRepos) Outbox() repository.OutboxRepository {
	return faultyOutbox{OutboxRepository: r.Repositories.Outbox(), err: r.store.outbox}
}

type faultyPayments struct {
	repository.PaymentRepository
	err error
}

func (p faultyPayments) Create(ctx context.Context, payment *model.Payment) error {
	if p.err != nil {
		return p.err
	}
	return p.PaymentRepository.Create(ctx, payment)
}

type faultyOutbox struct {
	repository.OutboxRepository
	err error
}

func (o faultyOutbox) Create(ctx context.Context, event *model.OutboxEvent) error {
	if o.err != nil {
		return o.err
	}
	return o.OutboxRepository.Create(ctx, event)
}

func (s *AppointmentServiceSuite) assertNothingBooked() {
	n, err := s.store.Appointments().Count(s.ctx, nil)
	s.Require().NoError(err)
	s.Zero(n)
	ledger, err := s.store.Payments().Ledger(s.ctx)
	s.Require().NoError(err)
	s.Empty(ledger)
	events, err := s.store.Outbox().GetPendingEventsWithLock(s.ctx, 0)
	s.Require().NoError(err)
	s.Empty(events)
	s.Equal(model.RoomStatusAvailable, s.roomStatus(s.roomA))
}

func (s *AppointmentServiceSuite) TestBookRollsBackWhenPaymentWriteFails() {
	diskFull := stderrors.New("disk full")
	svc := NewService(faultyStore{Store: s.store, payments: diskFull}, s.service.checker,
		event.NewEventService(), logger.Nop(), metrics.NewMetrics("test"))

	_, err := svc.Book(s.ctx, BookRequest{
		PatientID: s.patient.ID,
		DoctorID:  s.doctor.ID,
		Slot:      s.slot,
		Channel:   model.ChannelSelfService,
	})
	s.ErrorIs(err, diskFull)
	s.assertNothingBooked()

	// the slot is still bookable once writes succeed again
	_, err = s.selfBook(s.patient.ID, s.doctor.ID, s.slot)
	s.NoError(err)
}

func (s *AppointmentServiceSuite) TestBookRollsBackWhenEventWriteFails() {
	diskFull := stderrors.New("disk full")
	svc := NewService(faultyStore{Store: s.store, outbox: diskFull}, s.service.checker,
		event.NewEventService(), logger.Nop(), metrics.NewMetrics("test"))

	_, err := svc.Book(s.ctx, BookRequest{
		PatientID: s.patient.ID,
		DoctorID:  s.doctor.ID,
		Slot:      s.slot,
		Channel:   model.ChannelSelfService,
	})
	s.ErrorIs(err, diskFull)
	s.assertNothingBooked()
}

func TestAppointmentService(t *testing.T) {
	suite.Run(t, new(AppointmentServiceSuite))
}

func TestContainsStaff(t *testing.T) {
	staff := []*model.Staff{{ID: 1}, {ID: 3}}
	assert.True(t, containsStaff(staff, 3))
	assert.False(t, containsStaff(staff, 2))
	require.False(t, containsStaff(nil, 1))
}
