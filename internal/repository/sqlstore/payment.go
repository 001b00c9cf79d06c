package sqlstore

import (
	"context"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type paymentRepository struct{ repos }

const paymentColumns = `pay.id, pay.appointment_id, pay.amount, pay.status, pay.payment_date, pay.created_at, pay.updated_at`

func (r *paymentRepository) Create(ctx context.Context, p *model.Payment) error {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	id, err := r.insert(ctx, `
		INSERT INTO payments (appointment_id, amount, status, payment_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.AppointmentID, p.Amount, p.Status, p.Date, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return storageErr("create payment", err)
	}
	p.ID = id
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id int64) (*model.Payment, error) {
	var p model.Payment
	if err := r.get(ctx, &p, "payment", `SELECT `+paymentColumns+` FROM payments pay WHERE pay.id = ?`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *model.Payment) error {
	p.UpdatedAt = now()
	return r.execOne(ctx, "payment", "update", `
		UPDATE payments SET appointment_id = ?, amount = ?, status = ?, payment_date = ?, updated_at = ?
		WHERE id = ?`,
		p.AppointmentID, p.Amount, p.Status, p.Date, p.UpdatedAt, p.ID,
	)
}

func (r *paymentRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, "payment", "delete", `DELETE FROM payments WHERE id = ?`, id)
}

func (r *paymentRepository) Ledger(ctx context.Context) ([]*model.LedgerRow, error) {
	rows := []*model.LedgerRow{}
	err := r.selectAll(ctx, &rows, "list ledger", `
		SELECT `+paymentColumns+`,
			COALESCE(a.appointment_date, '') AS appointment_date,
			COALESCE(a.patient_id, 0) AS patient_id,
			COALESCE(p.name, '') AS patient_name
		FROM payments pay
		LEFT JOIN appointments a ON a.id = pay.appointment_id
		LEFT JOIN patients p ON p.id = a.patient_id
		ORDER BY pay.id DESC`)
	return rows, err
}
