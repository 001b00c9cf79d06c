package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/conflict"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Transition action names, used in errors, events and metrics.
const (
	ActionBook       = "book"
	ActionVerify     = "verify"
	ActionComplete   = "complete"
	ActionCancel     = "cancel"
	ActionReschedule = "reschedule"
	ActionDelete     = "delete"
)

var roomHoldingStatuses = []model.AppointmentStatus{
	model.AppointmentStatusPending,
	model.AppointmentStatusScheduled,
}

// BookRequest describes a new booking. Blocked, when set, is the slot a
// reschedule freed; booking it again is refused.
type BookRequest struct {
	PatientID int64
	DoctorID  int64
	Slot      model.Slot
	Channel   model.BookingChannel
	Blocked   *model.Slot
}

type CompleteRequest struct {
	TreatmentID int64
	Notes       string
	// DoctorID, when non-zero, must match the appointment's doctor.
	DoctorID int64
}

type DeleteOptions struct {
	// ConfirmCompleted must be set to delete a Completed appointment.
	ConfirmCompleted bool
}

// Service is the appointment lifecycle controller. Every transition runs in a
// single store transaction that re-checks its guards before writing.
type Service struct {
	store   repository.Store
	checker *conflict.Checker
	events  *event.EventService
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(
	store repository.Store,
	checker *conflict.Checker,
	events *event.EventService,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		store:   store,
		checker: checker,
		events:  events,
		logger:  logger,
		metrics: metrics,
	}
}

// Book creates a Pending appointment together with its zero-amount Pending payment.
func (s *Service) Book(ctx context.Context, req BookRequest) (*model.Appointment, error) {
	var booked *model.Appointment
	err := s.observe(ActionBook, func() error {
		slot, err := model.ParseSlot(req.Slot.Date, req.Slot.Time)
		if err != nil {
			return errors.Validation(err.Error())
		}
		if req.Channel == "" {
			req.Channel = model.ChannelFrontDesk
		}
		if req.Channel != model.ChannelFrontDesk && req.Channel != model.ChannelSelfService {
			return errors.Validation(fmt.Sprintf("unknown booking channel %q", req.Channel))
		}

		future, err := s.checker.IsFutureDate(slot.Date)
		if err != nil {
			return err
		}
		if !future {
			return errors.InvalidDate(fmt.Sprintf("appointment date %s is in the past", slot.Date))
		}

		if req.Blocked != nil {
			blocked, err := model.ParseSlot(req.Blocked.Date, req.Blocked.Time)
			if err != nil {
				return errors.Validation(err.Error())
			}
			if blocked.Same(slot) {
				return errors.ResourceConflict("cannot rebook the slot that was just rescheduled").
					With("blocked_slot", blocked.String())
			}
		}

		return s.store.WithTx(ctx, func(tx repository.Repositories) error {
			if _, err := tx.Patients().GetForUpdate(ctx, req.PatientID); err != nil {
				return err
			}
			doctor, err := tx.Doctors().Get(ctx, req.DoctorID)
			if err != nil {
				return err
			}

			apt := &model.Appointment{
				Slot:      slot,
				Status:    model.AppointmentStatusPending,
				Channel:   req.Channel,
				PatientID: req.PatientID,
				DoctorID:  req.DoctorID,
			}

			if req.Channel == model.ChannelSelfService {
				ok, err := s.checker.IsSequenceValid(ctx, tx, req.PatientID, slot)
				if err != nil {
					return err
				}
				if !ok {
					return errors.SequenceViolation(fmt.Sprintf("%s is not after the patient's latest appointment", slot))
				}
				if doctor.AssignedRoom != nil {
					room := *doctor.AssignedRoom
					free, err := s.checker.IsRoomFree(ctx, tx, room, slot, 0)
					if err != nil {
						return err
					}
					if !free {
						return errors.ResourceConflict(fmt.Sprintf("room %s is already booked at %s", room, slot)).
							With("room_number", room)
					}
					apt.RoomNumber = &room
				}
			}

			if err := tx.Appointments().Create(ctx, apt); err != nil {
				return err
			}

			today := s.checker.Today()
			payment := &model.Payment{
				AppointmentID: apt.ID,
				Status:        model.PaymentStatusPending,
				Date:          &today,
			}
			if err := tx.Payments().Create(ctx, payment); err != nil {
				return err
			}
			apt.PaymentID = &payment.ID
			if err := tx.Appointments().Update(ctx, apt); err != nil {
				return err
			}

			if err := s.refreshRoom(ctx, tx, apt.RoomNumber); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, model.EventAppointmentBooked, apt, ""); err != nil {
				return err
			}
			booked = apt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", booked.ID,
		"patient_id", booked.PatientID,
		"doctor_id", booked.DoctorID,
		"channel", string(booked.Channel),
		"slot", booked.Slot.String())
	return booked, nil
}

// Verify schedules a Pending (or re-verifies a Scheduled) appointment with a free
// staff member, assigning the doctor's room when none is held yet.
func (s *Service) Verify(ctx context.Context, id, staffID int64) (*model.Appointment, error) {
	var verified *model.Appointment
	err := s.observe(ActionVerify, func() error {
		return s.store.WithTx(ctx, func(tx repository.Repositories) error {
			apt, err := tx.Appointments().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if apt.Status.Terminal() {
				return errors.InvalidTransition(string(apt.Status), ActionVerify)
			}

			if _, err := tx.Staff().GetForUpdate(ctx, staffID); err != nil {
				return err
			}
			free, err := s.checker.FreeStaff(ctx, tx, apt.Slot, apt.ID)
			if err != nil {
				return err
			}
			if len(free) == 0 {
				return errors.NoResourceAvailable(fmt.Sprintf("no staff is free at %s", apt.Slot))
			}
			if !containsStaff(free, staffID) {
				return errors.NoResourceAvailable(fmt.Sprintf("staff %d is already assigned at %s", staffID, apt.Slot)).
					With("staff_id", staffID)
			}

			room := apt.RoomNumber
			if room == nil {
				doctor, err := tx.Doctors().Get(ctx, apt.DoctorID)
				if err != nil {
					return err
				}
				room = doctor.AssignedRoom
			}
			if room != nil {
				if _, err := tx.Rooms().GetForUpdate(ctx, *room); err != nil && !errors.IsKind(err, errors.KindNotFound) {
					return err
				}
				ok, err := s.checker.IsRoomFree(ctx, tx, *room, apt.Slot, apt.ID)
				if err != nil {
					return err
				}
				if !ok {
					return errors.ResourceConflict(fmt.Sprintf("room %s is already booked at %s", *room, apt.Slot)).
						With("room_number", *room)
				}
				r := *room
				apt.RoomNumber = &r
			}

			from := apt.Status
			apt.Status = model.AppointmentStatusScheduled
			apt.StaffID = &staffID
			if err := tx.Appointments().Update(ctx, apt); err != nil {
				return err
			}
			if err := s.refreshRoom(ctx, tx, apt.RoomNumber); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, model.EventAppointmentVerified, apt, from); err != nil {
				return err
			}
			verified = apt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment verified", "appointment_id", verified.ID, "staff_id", staffID)
	return verified, nil
}

// Complete closes a Scheduled visit: records treatment and notes, settles the
// payment at the treatment cost and releases the room.
func (s *Service) Complete(ctx context.Context, id int64, req CompleteRequest) (*model.Appointment, error) {
	var completed *model.Appointment
	err := s.observe(ActionComplete, func() error {
		return s.store.WithTx(ctx, func(tx repository.Repositories) error {
			apt, err := tx.Appointments().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if req.DoctorID != 0 && apt.DoctorID != req.DoctorID {
				return errors.Forbidden("appointment belongs to another doctor")
			}
			if apt.Status != model.AppointmentStatusScheduled {
				return errors.InvalidTransition(string(apt.Status), ActionComplete)
			}

			treatment, err := tx.Treatments().Get(ctx, req.TreatmentID)
			if err != nil {
				return err
			}
			if apt.PaymentID == nil {
				return errors.New(errors.KindStorageFailure, "appointment has no payment record")
			}
			payment, err := tx.Payments().Get(ctx, *apt.PaymentID)
			if err != nil {
				return err
			}

			payment.Amount = treatment.Cost
			payment.Status = model.PaymentStatusPaid
			if err := tx.Payments().Update(ctx, payment); err != nil {
				return err
			}

			apt.Status = model.AppointmentStatusCompleted
			apt.TreatmentID = &treatment.ID
			if req.Notes != "" {
				notes := req.Notes
				apt.DoctorNotes = &notes
			}
			if err := tx.Appointments().Update(ctx, apt); err != nil {
				return err
			}
			if err := s.refreshRoom(ctx, tx, apt.RoomNumber); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, model.EventAppointmentCompleted, apt, model.AppointmentStatusScheduled); err != nil {
				return err
			}
			completed = apt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment completed", "appointment_id", completed.ID, "treatment_id", req.TreatmentID)
	return completed, nil
}

// Cancel moves a Pending or Scheduled appointment to Cancelled and releases its room.
func (s *Service) Cancel(ctx context.Context, id int64) (*model.Appointment, error) {
	var cancelled *model.Appointment
	err := s.observe(ActionCancel, func() error {
		return s.store.WithTx(ctx, func(tx repository.Repositories) error {
			apt, err := s.cancel(ctx, tx, id, ActionCancel, func(st model.AppointmentStatus) bool {
				return !st.Terminal()
			})
			cancelled = apt
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment cancelled", "appointment_id", cancelled.ID)
	return cancelled, nil
}

// Reschedule cancels a Scheduled appointment and returns what the follow-up
// booking needs, including the old slot which may not be booked again.
func (s *Service) Reschedule(ctx context.Context, id int64) (*model.RescheduleResult, error) {
	var result *model.RescheduleResult
	err := s.observe(ActionReschedule, func() error {
		return s.store.WithTx(ctx, func(tx repository.Repositories) error {
			apt, err := s.cancel(ctx, tx, id, ActionReschedule, func(st model.AppointmentStatus) bool {
				return st == model.AppointmentStatusScheduled
			})
			if err != nil {
				return err
			}
			result = &model.RescheduleResult{
				Cancelled: apt,
				Rebook: &model.RebookPrompt{
					PatientID:   apt.PatientID,
					DoctorID:    apt.DoctorID,
					BlockedSlot: apt.Slot,
				},
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment rescheduled", "appointment_id", result.Cancelled.ID, "blocked_slot", result.Rebook.BlockedSlot.String())
	return result, nil
}

func (s *Service) cancel(ctx context.Context, tx repository.Repositories, id int64, action string, allowed func(model.AppointmentStatus) bool) (*model.Appointment, error) {
	apt, err := tx.Appointments().GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !allowed(apt.Status) {
		return nil, errors.InvalidTransition(string(apt.Status), action)
	}

	from := apt.Status
	apt.Status = model.AppointmentStatusCancelled
	if err := tx.Appointments().Update(ctx, apt); err != nil {
		return nil, err
	}
	if err := s.refreshRoom(ctx, tx, apt.RoomNumber); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, tx, model.EventAppointmentCancelled, apt, from); err != nil {
		return nil, err
	}
	return apt, nil
}

// Delete removes an appointment that is not Scheduled, along with its payment.
// Completed appointments additionally need opts.ConfirmCompleted.
func (s *Service) Delete(ctx context.Context, id int64, opts DeleteOptions) error {
	var deleted *model.Appointment
	err := s.observe(ActionDelete, func() error {
		return s.store.WithTx(ctx, func(tx repository.Repositories) error {
			apt, err := tx.Appointments().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			switch apt.Status {
			case model.AppointmentStatusScheduled:
				return errors.InvalidTransition(string(apt.Status), ActionDelete)
			case model.AppointmentStatusCompleted:
				if !opts.ConfirmCompleted {
					return errors.InvalidTransition(string(apt.Status), ActionDelete).
						With("confirmation_required", true)
				}
			}

			if apt.PaymentID != nil {
				if err := tx.Payments().Delete(ctx, *apt.PaymentID); err != nil && !errors.IsKind(err, errors.KindNotFound) {
					return err
				}
			}
			if err := tx.Appointments().Delete(ctx, apt.ID); err != nil {
				return err
			}
			if err := s.refreshRoom(ctx, tx, apt.RoomNumber); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, model.EventAppointmentDeleted, apt, apt.Status); err != nil {
				return err
			}
			deleted = apt
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("appointment deleted", "appointment_id", deleted.ID, "status", string(deleted.Status))
	return nil
}

// refreshRoom derives the room status from the appointments still holding it.
// A room that no longer exists is left alone.
func (s *Service) refreshRoom(ctx context.Context, tx repository.Repositories, room *string) error {
	if room == nil {
		return nil
	}
	n, err := tx.Appointments().Count(ctx, &model.AppointmentFilters{
		RoomNumber: room,
		Statuses:   roomHoldingStatuses,
	})
	if err != nil {
		return fmt.Errorf("failed to count room holders: %w", err)
	}
	status := model.RoomStatusAvailable
	if n > 0 {
		status = model.RoomStatusOccupied
	}
	err = tx.Rooms().SetStatus(ctx, *room, status)
	if errors.IsKind(err, errors.KindNotFound) {
		s.logger.Debug("room no longer exists", "room_number", *room)
		return nil
	}
	return err
}

func (s *Service) emit(ctx context.Context, tx repository.Repositories, eventType string, apt *model.Appointment, from model.AppointmentStatus) error {
	return s.events.Emit(ctx, tx, eventType, model.AppointmentEvent{
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		DoctorID:      apt.DoctorID,
		Slot:          apt.Slot,
		From:          from,
		To:            apt.Status,
		RoomNumber:    apt.RoomNumber,
		StaffID:       apt.StaffID,
		OccurredAt:    time.Now().UTC(),
	})
}

func (s *Service) observe(action string, fn func() error) error {
	err := fn()
	result := "ok"
	if err != nil {
		result = string(errors.KindOf(err))
		if errors.KindOf(err) == errors.KindStorageFailure {
			s.logger.Error(err, "appointment transition failed", "action", action)
		}
	}
	s.metrics.ObserveTransition(action, result)
	return err
}

func containsStaff(staff []*model.Staff, id int64) bool {
	for _, st := range staff {
		if st.ID == id {
			return true
		}
	}
	return false
}
