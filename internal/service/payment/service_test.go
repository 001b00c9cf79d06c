package payment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
)

func TestEntryFallsBackToAppointmentDate(t *testing.T) {
	row := &model.LedgerRow{
		Payment:         model.Payment{ID: 1, AppointmentID: 2, Amount: decimal.NewFromInt(50), Status: model.PaymentStatusPaid},
		AppointmentDate: "2026-03-10",
		PatientID:       3,
		PatientName:     "Ada",
	}
	entry := Entry(row)
	assert.Equal(t, "2026-03-10", entry.Date)
	assert.True(t, entry.Estimated)

	empty := ""
	row.Date = &empty
	assert.True(t, Entry(row).Estimated)

	paid := "2026-03-01"
	row.Date = &paid
	entry = Entry(row)
	assert.Equal(t, "2026-03-01", entry.Date)
	assert.False(t, entry.Estimated)
	assert.Equal(t, "Ada", entry.PatientName)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(50)))
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := &model.Patient{Name: "Ada"}
	require.NoError(t, store.Patients().Create(ctx, p))
	apt := &model.Appointment{Slot: model.Slot{Date: "2026-03-10", Time: "09:00 AM"}, PatientID: p.ID, DoctorID: 1}
	require.NoError(t, store.Appointments().Create(ctx, apt))

	date := "2026-03-01"
	first := &model.Payment{AppointmentID: apt.ID, Status: model.PaymentStatusPending, Date: &date}
	second := &model.Payment{AppointmentID: apt.ID, Status: model.PaymentStatusPending}
	require.NoError(t, store.Payments().Create(ctx, first))
	require.NoError(t, store.Payments().Create(ctx, second))

	svc := NewService(store)
	entries, err := svc.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second.ID, entries[0].PaymentID, "newest first")
	assert.Equal(t, "2026-03-10", entries[0].Date)
	assert.True(t, entries[0].Estimated)
	assert.Equal(t, "2026-03-01", entries[1].Date)
	assert.Equal(t, "Ada", entries[1].PatientName)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, apt.ID, got.AppointmentID)
}
