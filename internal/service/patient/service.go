package patient

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

type Service struct {
	store  repository.Store
	logger *logger.Logger
}

func NewService(store repository.Store, logger *logger.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	birth, err := model.NormalizeDate(req.BirthDate)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}
	patient := &model.Patient{
		Name:      req.Name,
		Gender:    req.Gender,
		BirthDate: birth,
		Phone:     req.Phone,
	}
	if err := s.store.Patients().Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	s.logger.Info("patient registered", "patient_id", patient.ID)
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*model.Patient, error) {
	return s.store.Patients().Get(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id int64, req *model.UpdatePatientRequest) (*model.Patient, error) {
	var updated *model.Patient
	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		patient, err := tx.Patients().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			patient.Name = *req.Name
		}
		if req.Gender != nil {
			patient.Gender = *req.Gender
		}
		if req.BirthDate != nil {
			birth, err := model.NormalizeDate(*req.BirthDate)
			if err != nil {
				return errors.Validation(err.Error())
			}
			patient.BirthDate = birth
		}
		if req.Phone != nil {
			patient.Phone = *req.Phone
		}
		if err := tx.Patients().Update(ctx, patient); err != nil {
			return err
		}
		updated = patient
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePatient refuses while any appointment, in any status, references the patient.
func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Patients().GetForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := tx.Appointments().Count(ctx, &model.AppointmentFilters{PatientID: &id})
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.ReferentialIntegrity("patient", n)
		}
		return tx.Patients().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("patient deleted", "patient_id", id)
	return nil
}

func (s *Service) ListPatients(ctx context.Context, page model.Pagination) ([]*model.Patient, error) {
	return s.store.Patients().List(ctx, page)
}
