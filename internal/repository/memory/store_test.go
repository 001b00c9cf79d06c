package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()

	boom := fmt.Errorf("boom")
	err := s.WithTx(ctx, func(tx repository.Repositories) error {
		require.NoError(t, tx.Patients().Create(ctx, &model.Patient{Name: "Ada"}))
		require.NoError(t, tx.Rooms().Create(ctx, &model.Room{Number: "101"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	patients, err := s.Patients().List(ctx, model.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, patients)
	_, err = s.Rooms().Get(ctx, "101")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx repository.Repositories) error {
			require.NoError(t, tx.Staff().Create(ctx, &model.Staff{Name: "Sam"}))
			panic("oops")
		})
	})

	staff, err := s.Staff().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, staff)
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	var id int64
	err := s.WithTx(ctx, func(tx repository.Repositories) error {
		p := &model.Patient{Name: "Ada"}
		if err := tx.Patients().Create(ctx, p); err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	require.NoError(t, err)

	p, err := s.Patients().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
}

func TestWithTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().WithTx(ctx, func(tx repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestReturnedRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &model.Patient{Name: "Ada"}
	require.NoError(t, s.Patients().Create(ctx, p))

	got, err := s.Patients().Get(ctx, p.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := s.Patients().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.Name)
}

func TestAppointmentFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	room := "101"
	staffID := int64(7)
	rows := []model.Appointment{
		{Slot: model.Slot{Date: "2026-03-10", Time: "01:00 PM"}, Status: model.AppointmentStatusPending, PatientID: 1, DoctorID: 1, RoomNumber: &room},
		{Slot: model.Slot{Date: "2026-03-10", Time: "11:00 AM"}, Status: model.AppointmentStatusScheduled, PatientID: 1, DoctorID: 2, StaffID: &staffID},
		{Slot: model.Slot{Date: "2026-03-11", Time: "09:00 AM"}, Status: model.AppointmentStatusCancelled, PatientID: 2, DoctorID: 1},
	}
	for i := range rows {
		require.NoError(t, s.Appointments().Create(ctx, &rows[i]))
	}

	all, err := s.Appointments().List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "11:00 AM", all[0].Time, "ordered chronologically, not by text")

	patient := int64(1)
	n, err := s.Appointments().Count(ctx, &model.AppointmentFilters{PatientID: &patient})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Appointments().Count(ctx, &model.AppointmentFilters{RoomNumber: &room})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Appointments().Count(ctx, &model.AppointmentFilters{StaffID: &staffID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Appointments().Count(ctx, &model.AppointmentFilters{
		Statuses: []model.AppointmentStatus{model.AppointmentStatusPending, model.AppointmentStatusScheduled},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Appointments().Count(ctx, &model.AppointmentFilters{Date: "2026-03-10", ExcludeID: rows[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
