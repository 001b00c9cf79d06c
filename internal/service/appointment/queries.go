package appointment

import (
	"context"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

func (s *Service) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	return s.store.Appointments().Get(ctx, id)
}

// Schedule is the front desk view: every appointment, newest date first.
func (s *Service) Schedule(ctx context.Context, filters model.AppointmentFilters) ([]*model.AppointmentDetail, error) {
	filters.NewestFirst = true
	return s.store.Appointments().ListDetails(ctx, &filters)
}

// PatientHistory lists a patient's own appointments with their current cost.
func (s *Service) PatientHistory(ctx context.Context, patientID int64) ([]*model.AppointmentDetail, error) {
	if _, err := s.store.Patients().Get(ctx, patientID); err != nil {
		return nil, err
	}
	return s.store.Appointments().ListDetails(ctx, &model.AppointmentFilters{
		PatientID:   &patientID,
		NewestFirst: true,
	})
}

// DoctorWorklist lists a doctor's Scheduled and Completed appointments in
// chronological order, optionally for a single date.
func (s *Service) DoctorWorklist(ctx context.Context, doctorID int64, date string) ([]*model.AppointmentDetail, error) {
	if _, err := s.store.Doctors().Get(ctx, doctorID); err != nil {
		return nil, err
	}
	filters := &model.AppointmentFilters{
		DoctorID: &doctorID,
		Statuses: []model.AppointmentStatus{model.AppointmentStatusScheduled, model.AppointmentStatusCompleted},
	}
	if date != "" {
		d, err := model.NormalizeDate(date)
		if err != nil {
			return nil, errors.Validation(err.Error())
		}
		filters.Date = d
	}
	return s.store.Appointments().ListDetails(ctx, filters)
}

// EligibleStaff lists staff who could verify the appointment: free at its slot,
// not counting the appointment's own current assignment.
func (s *Service) EligibleStaff(ctx context.Context, id int64) ([]*model.Staff, error) {
	apt, err := s.store.Appointments().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.checker.FreeStaff(ctx, s.store, apt.Slot, apt.ID)
}

// RoomAvailability reports whether room is free at the given slot.
func (s *Service) RoomAvailability(ctx context.Context, room string, date, clock string) (*model.RoomAvailability, error) {
	slot, err := model.ParseSlot(date, clock)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}
	if _, err := s.store.Rooms().Get(ctx, room); err != nil {
		return nil, err
	}
	free, err := s.checker.IsRoomFree(ctx, s.store, room, slot, 0)
	if err != nil {
		return nil, err
	}
	return &model.RoomAvailability{Number: room, Slot: slot, Free: free}, nil
}
