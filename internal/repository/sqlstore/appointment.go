package sqlstore

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type appointmentRepository struct{ repos }

const appointmentColumns = `a.id, a.appointment_date, a.appointment_time, a.status, a.channel,
	a.patient_id, a.doctor_id, a.room_number, a.staff_id, a.payment_id, a.treatment_id,
	a.doctor_notes, a.created_at, a.updated_at`

func (r *appointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	a.CreatedAt = now()
	a.UpdatedAt = a.CreatedAt
	id, err := r.insert(ctx, `
		INSERT INTO appointments (
			appointment_date, appointment_time, status, channel,
			patient_id, doctor_id, room_number, staff_id, payment_id, treatment_id,
			doctor_notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Date, a.Time, a.Status, a.Channel,
		a.PatientID, a.DoctorID, a.RoomNumber, a.StaffID, a.PaymentID, a.TreatmentID,
		a.DoctorNotes, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errors.ResourceConflict("room is already booked for this slot")
	}
	if err != nil {
		return storageErr("create appointment", err)
	}
	a.ID = id
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.get(ctx, &a, "appointment", `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = ?`, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id int64) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.get(ctx, &a, "appointment", `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = ? FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepository) Update(ctx context.Context, a *model.Appointment) error {
	a.UpdatedAt = now()
	err := r.execOne(ctx, "appointment", "update", `
		UPDATE appointments SET
			appointment_date = ?, appointment_time = ?, status = ?, room_number = ?,
			staff_id = ?, payment_id = ?, treatment_id = ?, doctor_notes = ?, updated_at = ?
		WHERE id = ?`,
		a.Date, a.Time, a.Status, a.RoomNumber,
		a.StaffID, a.PaymentID, a.TreatmentID, a.DoctorNotes, a.UpdatedAt,
		a.ID,
	)
	if isUniqueViolation(err) {
		return errors.ResourceConflict("room is already booked for this slot")
	}
	return err
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, "appointment", "delete", `DELETE FROM appointments WHERE id = ?`, id)
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	where, args, err := buildFilters(filters)
	if err != nil {
		return nil, err
	}
	appointments := []*model.Appointment{}
	if err := r.selectAll(ctx, &appointments, "list appointments",
		`SELECT `+appointmentColumns+` FROM appointments a`+where, args...); err != nil {
		return nil, err
	}
	model.SortBySlot(appointments, func(a *model.Appointment) (model.Slot, int64) { return a.Slot, a.ID }, newestFirst(filters))
	return appointments, nil
}

func (r *appointmentRepository) Count(ctx context.Context, filters *model.AppointmentFilters) (int, error) {
	where, args, err := buildFilters(filters)
	if err != nil {
		return 0, err
	}
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, r.q.Rebind(`SELECT COUNT(*) FROM appointments a`+where), args...); err != nil {
		return 0, storageErr("count appointments", err)
	}
	return n, nil
}

func (r *appointmentRepository) ListDetails(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error) {
	where, args, err := buildFilters(filters)
	if err != nil {
		return nil, err
	}
	details := []*model.AppointmentDetail{}
	if err := r.selectAll(ctx, &details, "list appointment details", `
		SELECT `+appointmentColumns+`,
			COALESCE(p.name, '') AS patient_name,
			COALESCE(d.name, '') AS doctor_name,
			s.name AS staff_name,
			t.label AS treatment_label,
			pay.amount AS payment_amount,
			pay.status AS payment_status
		FROM appointments a
		LEFT JOIN patients p ON p.id = a.patient_id
		LEFT JOIN doctors d ON d.id = a.doctor_id
		LEFT JOIN staff s ON s.id = a.staff_id
		LEFT JOIN treatments t ON t.id = a.treatment_id
		LEFT JOIN payments pay ON pay.id = a.payment_id`+where, args...); err != nil {
		return nil, err
	}
	model.SortBySlot(details, func(d *model.AppointmentDetail) (model.Slot, int64) { return d.Slot, d.ID }, newestFirst(filters))
	return details, nil
}

func newestFirst(f *model.AppointmentFilters) bool {
	return f != nil && f.NewestFirst
}

// buildFilters renders the WHERE clause for f with ? placeholders.
func buildFilters(f *model.AppointmentFilters) (string, []interface{}, error) {
	if f == nil {
		return "", nil, nil
	}
	var conds []string
	var args []interface{}
	if f.PatientID != nil {
		conds = append(conds, "a.patient_id = ?")
		args = append(args, *f.PatientID)
	}
	if f.DoctorID != nil {
		conds = append(conds, "a.doctor_id = ?")
		args = append(args, *f.DoctorID)
	}
	if f.StaffID != nil {
		conds = append(conds, "a.staff_id = ?")
		args = append(args, *f.StaffID)
	}
	if f.RoomNumber != nil {
		conds = append(conds, "a.room_number = ?")
		args = append(args, *f.RoomNumber)
	}
	if f.Date != "" {
		conds = append(conds, "a.appointment_date = ?")
		args = append(args, f.Date)
	}
	if f.Time != "" {
		conds = append(conds, "a.appointment_time = ?")
		args = append(args, f.Time)
	}
	if f.ExcludeID != 0 {
		conds = append(conds, "a.id <> ?")
		args = append(args, f.ExcludeID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		cond, inArgs, err := sqlx.In("a.status IN (?)", statuses)
		if err != nil {
			return "", nil, storageErr("build status filter", err)
		}
		conds = append(conds, cond)
		args = append(args, inArgs...)
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}
