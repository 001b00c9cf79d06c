package memory

import (
	"context"
	"sort"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type paymentRepository struct{ repos }

func (r paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	defer r.lock()()
	d := r.store.data
	payment.ID = d.nextID("payments")
	payment.CreatedAt = r.store.now()
	payment.UpdatedAt = payment.CreatedAt
	d.payments[payment.ID] = *payment
	return nil
}

func (r paymentRepository) Get(ctx context.Context, id int64) (*model.Payment, error) {
	defer r.lock()()
	p, ok := r.store.data.payments[id]
	if !ok {
		return nil, errors.NotFound("payment")
	}
	return &p, nil
}

func (r paymentRepository) Update(ctx context.Context, payment *model.Payment) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.payments[payment.ID]; !ok {
		return errors.NotFound("payment")
	}
	payment.UpdatedAt = r.store.now()
	d.payments[payment.ID] = *payment
	return nil
}

func (r paymentRepository) Delete(ctx context.Context, id int64) error {
	defer r.lock()()
	d := r.store.data
	if _, ok := d.payments[id]; !ok {
		return errors.NotFound("payment")
	}
	delete(d.payments, id)
	return nil
}

func (r paymentRepository) Ledger(ctx context.Context) ([]*model.LedgerRow, error) {
	defer r.lock()()
	d := r.store.data
	out := make([]*model.LedgerRow, 0, len(d.payments))
	for _, p := range d.payments {
		row := &model.LedgerRow{Payment: p}
		if a, ok := d.appointments[p.AppointmentID]; ok {
			row.AppointmentDate = a.Date
			row.PatientID = a.PatientID
			if pt, ok := d.patients[a.PatientID]; ok {
				row.PatientName = pt.Name
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
