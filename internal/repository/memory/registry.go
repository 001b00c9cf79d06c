package memory

import (
	"context"
	"sort"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type patientRepository struct{ repos }

func (r patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	defer r.lock()()
	d := r.store.data
	patient.ID = d.nextID("patients")
	patient.CreatedAt = r.store.now()
	patient.UpdatedAt = patient.CreatedAt
	d.patients[patient.ID] = *patient
	return nil
}

func (r patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	defer r.lock()()
	p, ok := r.store.data.patients[id]
	if !ok {
		return nil, errors.NotFound("patient")
	}
	return &p, nil
}

func (r patientRepository) GetForUpdate(ctx context.Context, id int64) (*model.Patient, error) {
	return r.Get(ctx, id)
}

func (r patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.patients[patient.ID]; !ok {
		return errors.NotFound("patient")
	}
	patient.UpdatedAt = r.store.now()
	d.patients[patient.ID] = *patient
	return nil
}

func (r patientRepository) Delete(ctx context.Context, id int64) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.patients[id]; !ok {
		return errors.NotFound("patient")
	}
	delete(d.patients, id)
	return nil
}

func (r patientRepository) List(ctx context.Context, page model.Pagination) ([]*model.Patient, error) {
	defer r.lock()()
	page = page.Normalize()
	out := make([]*model.Patient, 0, len(r.store.data.patients))
	for _, p := range r.store.data.patients {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, page), nil
}

func paginate[T any](items []T, page model.Pagination) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type doctorRepository struct{ repos }

func (r doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	defer r.lock()()
	d := r.store.data
	doctor.ID = d.nextID("doctors")
	doctor.CreatedAt = r.store.now()
	doctor.UpdatedAt = doctor.CreatedAt
	d.doctors[doctor.ID] = *doctor
	return nil
}

func (r doctorRepository) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	defer r.lock()()
	doc, ok := r.store.data.doctors[id]
	if !ok {
		return nil, errors.NotFound("doctor")
	}
	return &doc, nil
}

func (r doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.doctors[doctor.ID]; !ok {
		return errors.NotFound("doctor")
	}
	doctor.UpdatedAt = r.store.now()
	d.doctors[doctor.ID] = *doctor
	return nil
}

func (r doctorRepository) Delete(ctx context.Context, id int64) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.doctors[id]; !ok {
		return errors.NotFound("doctor")
	}
	delete(d.doctors, id)
	return nil
}

func (r doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	defer r.lock()()
	out := make([]*model.Doctor, 0, len(r.store.data.doctors))
	for _, doc := range r.store.data.doctors {
		doc := doc
		out = append(out, &doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type staffRepository struct{ repos }

func (r staffRepository) Create(ctx context.Context, staff *model.Staff) error {
	defer r.lock()()
	d := r.store.data
	staff.ID = d.nextID("staff")
	staff.CreatedAt = r.store.now()
	staff.UpdatedAt = staff.CreatedAt
	d.staff[staff.ID] = *staff
	return nil
}

func (r staffRepository) Get(ctx context.Context, id int64) (*model.Staff, error) {
	defer r.lock()()
	s, ok := r.store.data.staff[id]
	if !ok {
		return nil, errors.NotFound("staff")
	}
	return &s, nil
}

func (r staffRepository) GetForUpdate(ctx context.Context, id int64) (*model.Staff, error) {
	return r.Get(ctx, id)
}

func (r staffRepository) Delete(ctx context.Context, id int64) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.staff[id]; !ok {
		return errors.NotFound("staff")
	}
	delete(d.staff, id)
	return nil
}

func (r staffRepository) List(ctx context.Context) ([]*model.Staff, error) {
	defer r.lock()()
	return r.list(nil), nil
}

func (r staffRepository) ListFree(ctx context.Context, slot model.Slot, excludeAppointmentID int64) ([]*model.Staff, error) {
	defer r.lock()()
	busy := map[int64]bool{}
	for _, a := range r.store.data.appointments {
		if a.ID == excludeAppointmentID || !a.Status.Active() || a.StaffID == nil {
			continue
		}
		if a.Slot.Same(slot) {
			busy[*a.StaffID] = true
		}
	}
	return r.list(busy), nil
}

func (r staffRepository) list(skip map[int64]bool) []*model.Staff {
	out := make([]*model.Staff, 0, len(r.store.data.staff))
	for _, s := range r.store.data.staff {
		if skip[s.ID] {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type roomRepository struct{ repos }

func (r roomRepository) Create(ctx context.Context, room *model.Room) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.rooms[room.Number]; ok {
		return errors.ResourceConflict("room " + room.Number + " already exists")
	}
	if room.Status == "" {
		room.Status = model.RoomStatusAvailable
	}
	room.CreatedAt = r.store.now()
	room.UpdatedAt = room.CreatedAt
	d.rooms[room.Number] = *room
	return nil
}

func (r roomRepository) Get(ctx context.Context, number string) (*model.Room, error) {
	defer r.lock()()
	room, ok := r.store.data.rooms[number]
	if !ok {
		return nil, errors.NotFound("room")
	}
	return &room, nil
}

func (r roomRepository) GetForUpdate(ctx context.Context, number string) (*model.Room, error) {
	return r.Get(ctx, number)
}

func (r roomRepository) Delete(ctx context.Context, number string) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.rooms[number]; !ok {
		return errors.NotFound("room")
	}
	delete(d.rooms, number)
	return nil
}

func (r roomRepository) List(ctx context.Context) ([]*model.Room, error) {
	defer r.lock()()
	out := make([]*model.Room, 0, len(r.store.data.rooms))
	for _, room := range r.store.data.rooms {
		room := room
		out = append(out, &room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r roomRepository) SetStatus(ctx context.Context, number string, status model.RoomStatus) error {
	defer r.lock()()
	d := r.store.data
	room, ok := d.rooms[number]
	if !ok {
		return errors.NotFound("room")
	}
	room.Status = status
	room.UpdatedAt = r.store.now()
	d.rooms[number] = room
	return nil
}

type treatmentRepository struct{ repos }

func (r treatmentRepository) Get(ctx context.Context, id int64) (*model.Treatment, error) {
	defer r.lock()()
	t, ok := r.store.data.treatments[id]
	if !ok {
		return nil, errors.NotFound("treatment")
	}
	return &t, nil
}

func (r treatmentRepository) List(ctx context.Context) ([]*model.Treatment, error) {
	defer r.lock()()
	out := make([]*model.Treatment, 0, len(r.store.data.treatments))
	for _, t := range r.store.data.treatments {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
