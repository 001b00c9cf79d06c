// Package clinic manages the clinic registry: doctors, staff, rooms and the
// treatment catalog.
package clinic

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

const treatmentListKey = "treatments:all"

type Service struct {
	store  repository.Store
	cache  *cache.Cache
	logger *logger.Logger
}

// NewService caches the read-only treatment catalog for cacheTTL.
func NewService(store repository.Store, cacheTTL time.Duration, logger *logger.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &Service{
		store:  store,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		logger: logger,
	}
}

func (s *Service) CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	doctor := &model.Doctor{
		Name:         req.Name,
		Specialty:    req.Specialty,
		AssignedRoom: trimmed(req.AssignedRoom),
	}
	if err := s.store.Doctors().Create(ctx, doctor); err != nil {
		return nil, fmt.Errorf("failed to create doctor: %w", err)
	}
	s.logger.Info("doctor created", "doctor_id", doctor.ID)
	return doctor, nil
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	return s.store.Doctors().Get(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, id int64, req *model.UpdateDoctorRequest) (*model.Doctor, error) {
	doctor, err := s.store.Doctors().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		doctor.Name = *req.Name
	}
	if req.Specialty != nil {
		doctor.Specialty = *req.Specialty
	}
	if req.AssignedRoom != nil {
		doctor.AssignedRoom = trimmed(req.AssignedRoom)
	}
	if err := s.store.Doctors().Update(ctx, doctor); err != nil {
		return nil, err
	}
	return doctor, nil
}

// DeleteDoctor refuses while any appointment, in any status, references the doctor.
func (s *Service) DeleteDoctor(ctx context.Context, id int64) error {
	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Doctors().Get(ctx, id); err != nil {
			return err
		}
		n, err := tx.Appointments().Count(ctx, &model.AppointmentFilters{DoctorID: &id})
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.ReferentialIntegrity("doctor", n)
		}
		return tx.Doctors().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("doctor deleted", "doctor_id", id)
	return nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	return s.store.Doctors().List(ctx)
}

func (s *Service) CreateStaff(ctx context.Context, req *model.CreateStaffRequest) (*model.Staff, error) {
	staff := &model.Staff{Name: req.Name, Role: req.Role}
	if err := s.store.Staff().Create(ctx, staff); err != nil {
		return nil, fmt.Errorf("failed to create staff: %w", err)
	}
	s.logger.Info("staff created", "staff_id", staff.ID)
	return staff, nil
}

// DeleteStaff is unconditional; appointments keep a dangling staff reference.
func (s *Service) DeleteStaff(ctx context.Context, id int64) error {
	if err := s.store.Staff().Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("staff deleted", "staff_id", id)
	return nil
}

func (s *Service) ListStaff(ctx context.Context) ([]*model.Staff, error) {
	return s.store.Staff().List(ctx)
}

// CreateRoom registers a room as Available.
func (s *Service) CreateRoom(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error) {
	number := strings.TrimSpace(req.Number)
	if number == "" {
		return nil, errors.Validation("room number is required")
	}
	room := &model.Room{Number: number, Status: model.RoomStatusAvailable}
	if err := s.store.Rooms().Create(ctx, room); err != nil {
		return nil, err
	}
	s.logger.Info("room created", "room_number", number)
	return room, nil
}

func (s *Service) GetRoom(ctx context.Context, number string) (*model.Room, error) {
	return s.store.Rooms().Get(ctx, number)
}

// DeleteRoom is unconditional; doctors and appointments keep a dangling room reference.
func (s *Service) DeleteRoom(ctx context.Context, number string) error {
	if err := s.store.Rooms().Delete(ctx, number); err != nil {
		return err
	}
	s.logger.Info("room deleted", "room_number", number)
	return nil
}

func (s *Service) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return s.store.Rooms().List(ctx)
}

func (s *Service) ListTreatments(ctx context.Context) ([]*model.Treatment, error) {
	if cached, found := s.cache.Get(treatmentListKey); found {
		return cached.([]*model.Treatment), nil
	}
	treatments, err := s.store.Treatments().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list treatments: %w", err)
	}
	s.cache.Set(treatmentListKey, treatments, cache.DefaultExpiration)
	for _, t := range treatments {
		s.cache.Set(treatmentKey(t.ID), t, cache.DefaultExpiration)
	}
	return treatments, nil
}

func (s *Service) GetTreatment(ctx context.Context, id int64) (*model.Treatment, error) {
	if cached, found := s.cache.Get(treatmentKey(id)); found {
		return cached.(*model.Treatment), nil
	}
	t, err := s.store.Treatments().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(treatmentKey(id), t, cache.DefaultExpiration)
	return t, nil
}

func treatmentKey(id int64) string {
	return "treatment:" + strconv.FormatInt(id, 10)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
