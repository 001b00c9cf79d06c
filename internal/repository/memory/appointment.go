package memory

import (
	"context"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type appointmentRepository struct{ repos }

func (r appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	defer r.lock()()
	d := r.store.data
	appointment.ID = d.nextID("appointments")
	appointment.CreatedAt = r.store.now()
	appointment.UpdatedAt = appointment.CreatedAt
	d.appointments[appointment.ID] = *appointment
	return nil
}

func (r appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	defer r.lock()()
	a, ok := r.store.data.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	return &a, nil
}

func (r appointmentRepository) GetForUpdate(ctx context.Context, id int64) (*model.Appointment, error) {
	return r.Get(ctx, id)
}

func (r appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.appointments[appointment.ID]; !ok {
		return errors.NotFound("appointment")
	}
	appointment.UpdatedAt = r.store.now()
	d.appointments[appointment.ID] = *appointment
	return nil
}

func (r appointmentRepository) Delete(ctx context.Context, id int64) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.appointments[id]; !ok {
		return errors.NotFound("appointment")
	}
	delete(d.appointments, id)
	return nil
}

func (r appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	defer r.lock()()
	return r.filter(filters), nil
}

func (r appointmentRepository) Count(ctx context.Context, filters *model.AppointmentFilters) (int, error) {
	defer r.lock()()
	return len(r.filter(filters)), nil
}

func (r appointmentRepository) ListDetails(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error) {
	defer r.lock()()
	d := r.store.data
	rows := r.filter(filters)
	out := make([]*model.AppointmentDetail, 0, len(rows))
	for _, a := range rows {
		detail := &model.AppointmentDetail{Appointment: *a}
		if p, ok := d.patients[a.PatientID]; ok {
			detail.PatientName = p.Name
		}
		if doc, ok := d.doctors[a.DoctorID]; ok {
			detail.DoctorName = doc.Name
		}
		if a.StaffID != nil {
			if s, ok := d.staff[*a.StaffID]; ok {
				name := s.Name
				detail.StaffName = &name
			}
		}
		if a.TreatmentID != nil {
			if t, ok := d.treatments[*a.TreatmentID]; ok {
				label := t.Label
				detail.TreatmentLabel = &label
			}
		}
		if a.PaymentID != nil {
			if p, ok := d.payments[*a.PaymentID]; ok {
				detail.PaymentAmount.Decimal = p.Amount
				detail.PaymentAmount.Valid = true
				status := p.Status
				detail.PaymentStatus = &status
			}
		}
		out = append(out, detail)
	}
	return out, nil
}

func (r appointmentRepository) filter(f *model.AppointmentFilters) []*model.Appointment {
	if f == nil {
		f = &model.AppointmentFilters{}
	}
	out := make([]*model.Appointment, 0)
	for _, a := range r.store.data.appointments {
		if matches(&a, f) {
			a := a
			out = append(out, &a)
		}
	}
	model.SortBySlot(out, func(a *model.Appointment) (model.Slot, int64) { return a.Slot, a.ID }, f.NewestFirst)
	return out
}

func matches(a *model.Appointment, f *model.AppointmentFilters) bool {
	if f.ExcludeID != 0 && a.ID == f.ExcludeID {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
		return false
	}
	if f.StaffID != nil && (a.StaffID == nil || *a.StaffID != *f.StaffID) {
		return false
	}
	if f.RoomNumber != nil && (a.RoomNumber == nil || *a.RoomNumber != *f.RoomNumber) {
		return false
	}
	if f.Date != "" && a.Date != f.Date {
		return false
	}
	if f.Time != "" && a.Time != f.Time {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
