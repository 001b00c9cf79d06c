package sqlstore

import (
	"context"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type patientRepository struct{ repos }

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	patient.CreatedAt = now()
	patient.UpdatedAt = patient.CreatedAt
	id, err := r.insert(ctx, `
		INSERT INTO patients (name, gender, birth_date, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		patient.Name, patient.Gender, patient.BirthDate, patient.Phone,
		patient.CreatedAt, patient.UpdatedAt,
	)
	if err != nil {
		return storageErr("create patient", err)
	}
	patient.ID = id
	return nil
}

const patientColumns = `id, name, gender, birth_date, phone, created_at, updated_at`

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	var p model.Patient
	if err := r.get(ctx, &p, "patient", `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepository) GetForUpdate(ctx context.Context, id int64) (*model.Patient, error) {
	var p model.Patient
	if err := r.get(ctx, &p, "patient", `SELECT `+patientColumns+` FROM patients WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	patient.UpdatedAt = now()
	return r.execOne(ctx, "patient", "update", `
		UPDATE patients SET name = ?, gender = ?, birth_date = ?, phone = ?, updated_at = ?
		WHERE id = ?`,
		patient.Name, patient.Gender, patient.BirthDate, patient.Phone, patient.UpdatedAt, patient.ID,
	)
}

func (r *patientRepository) Delete(ctx context.Context, id int64) error {
	err := r.execOne(ctx, "patient", "delete", `DELETE FROM patients WHERE id = ?`, id)
	if err != nil && isForeignKeyViolation(err) {
		return errors.New(errors.KindReferentialIntegrity, "patient is referenced by appointments")
	}
	return err
}

func (r *patientRepository) List(ctx context.Context, page model.Pagination) ([]*model.Patient, error) {
	page = page.Normalize()
	patients := []*model.Patient{}
	err := r.selectAll(ctx, &patients, "list patients",
		`SELECT `+patientColumns+` FROM patients ORDER BY id LIMIT ? OFFSET ?`,
		page.PageSize, page.Offset(),
	)
	return patients, err
}

type doctorRepository struct{ repos }

const doctorColumns = `id, name, specialty, assigned_room, created_at, updated_at`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	doctor.CreatedAt = now()
	doctor.UpdatedAt = doctor.CreatedAt
	id, err := r.insert(ctx, `
		INSERT INTO doctors (name, specialty, assigned_room, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		doctor.Name, doctor.Specialty, doctor.AssignedRoom, doctor.CreatedAt, doctor.UpdatedAt,
	)
	if err != nil {
		return storageErr("create doctor", err)
	}
	doctor.ID = id
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	var d model.Doctor
	if err := r.get(ctx, &d, "doctor", `SELECT `+doctorColumns+` FROM doctors WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	doctor.UpdatedAt = now()
	return r.execOne(ctx, "doctor", "update", `
		UPDATE doctors SET name = ?, specialty = ?, assigned_room = ?, updated_at = ?
		WHERE id = ?`,
		doctor.Name, doctor.Specialty, doctor.AssignedRoom, doctor.UpdatedAt, doctor.ID,
	)
}

func (r *doctorRepository) Delete(ctx context.Context, id int64) error {
	err := r.execOne(ctx, "doctor", "delete", `DELETE FROM doctors WHERE id = ?`, id)
	if err != nil && isForeignKeyViolation(err) {
		return errors.New(errors.KindReferentialIntegrity, "doctor is referenced by appointments")
	}
	return err
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	doctors := []*model.Doctor{}
	err := r.selectAll(ctx, &doctors, "list doctors", `SELECT `+doctorColumns+` FROM doctors ORDER BY id`)
	return doctors, err
}

type staffRepository struct{ repos }

const staffColumns = `id, name, role, created_at, updated_at`

func (r *staffRepository) Create(ctx context.Context, staff *model.Staff) error {
	staff.CreatedAt = now()
	staff.UpdatedAt = staff.CreatedAt
	id, err := r.insert(ctx, `
		INSERT INTO staff (name, role, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		staff.Name, staff.Role, staff.CreatedAt, staff.UpdatedAt,
	)
	if err != nil {
		return storageErr("create staff", err)
	}
	staff.ID = id
	return nil
}

func (r *staffRepository) Get(ctx context.Context, id int64) (*model.Staff, error) {
	var s model.Staff
	if err := r.get(ctx, &s, "staff", `SELECT `+staffColumns+` FROM staff WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *staffRepository) GetForUpdate(ctx context.Context, id int64) (*model.Staff, error) {
	var s model.Staff
	if err := r.get(ctx, &s, "staff", `SELECT `+staffColumns+` FROM staff WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *staffRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, "staff", "delete", `DELETE FROM staff WHERE id = ?`, id)
}

func (r *staffRepository) List(ctx context.Context) ([]*model.Staff, error) {
	staff := []*model.Staff{}
	err := r.selectAll(ctx, &staff, "list staff", `SELECT `+staffColumns+` FROM staff ORDER BY id`)
	return staff, err
}

func (r *staffRepository) ListFree(ctx context.Context, slot model.Slot, excludeAppointmentID int64) ([]*model.Staff, error) {
	staff := []*model.Staff{}
	err := r.selectAll(ctx, &staff, "list free staff", `
		SELECT `+staffColumns+` FROM staff
		WHERE id NOT IN (
			SELECT staff_id FROM appointments
			WHERE appointment_date = ?
			  AND appointment_time = ?
			  AND status <> ?
			  AND staff_id IS NOT NULL
			  AND id <> ?
		)
		ORDER BY id`,
		slot.Date, slot.Time, model.AppointmentStatusCancelled, excludeAppointmentID,
	)
	return staff, err
}

type roomRepository struct{ repos }

const roomColumns = `room_number, status, created_at, updated_at`

func (r *roomRepository) Create(ctx context.Context, room *model.Room) error {
	if room.Status == "" {
		room.Status = model.RoomStatusAvailable
	}
	room.CreatedAt = now()
	room.UpdatedAt = room.CreatedAt
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO rooms (room_number, status, created_at, updated_at) VALUES (?, ?, ?, ?)`),
		room.Number, room.Status, room.CreatedAt, room.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errors.ResourceConflict("room " + room.Number + " already exists")
	}
	if err != nil {
		return storageErr("create room", err)
	}
	return nil
}

func (r *roomRepository) Get(ctx context.Context, number string) (*model.Room, error) {
	var room model.Room
	if err := r.get(ctx, &room, "room", `SELECT `+roomColumns+` FROM rooms WHERE room_number = ?`, number); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) GetForUpdate(ctx context.Context, number string) (*model.Room, error) {
	var room model.Room
	if err := r.get(ctx, &room, "room", `SELECT `+roomColumns+` FROM rooms WHERE room_number = ? FOR UPDATE`, number); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) Delete(ctx context.Context, number string) error {
	return r.execOne(ctx, "room", "delete", `DELETE FROM rooms WHERE room_number = ?`, number)
}

func (r *roomRepository) List(ctx context.Context) ([]*model.Room, error) {
	rooms := []*model.Room{}
	err := r.selectAll(ctx, &rooms, "list rooms", `SELECT `+roomColumns+` FROM rooms ORDER BY room_number`)
	return rooms, err
}

func (r *roomRepository) SetStatus(ctx context.Context, number string, status model.RoomStatus) error {
	// MySQL reports zero affected rows when the value is unchanged, so existence
	// is checked separately.
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`UPDATE rooms SET status = ?, updated_at = ? WHERE room_number = ?`),
		status, now(), number)
	if err != nil {
		return storageErr("update room status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = r.Get(ctx, number)
	return err
}

type treatmentRepository struct{ repos }

func (r *treatmentRepository) Get(ctx context.Context, id int64) (*model.Treatment, error) {
	var t model.Treatment
	if err := r.get(ctx, &t, "treatment", `SELECT id, label, cost FROM treatments WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *treatmentRepository) List(ctx context.Context) ([]*model.Treatment, error) {
	treatments := []*model.Treatment{}
	err := r.selectAll(ctx, &treatments, "list treatments", `SELECT id, label, cost FROM treatments ORDER BY id`)
	return treatments, err
}
