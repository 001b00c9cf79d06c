package sqlstore

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func TestBuildFilters(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		where, args, err := buildFilters(nil)
		require.NoError(t, err)
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("all fields expand the status list", func(t *testing.T) {
		patient, room := int64(7), "101"
		where, args, err := buildFilters(&model.AppointmentFilters{
			PatientID:  &patient,
			RoomNumber: &room,
			Date:       "2026-03-10",
			Time:       "09:00 AM",
			ExcludeID:  3,
			Statuses:   []model.AppointmentStatus{model.AppointmentStatusPending, model.AppointmentStatusScheduled},
		})
		require.NoError(t, err)
		assert.Equal(t,
			" WHERE a.patient_id = ? AND a.room_number = ? AND a.appointment_date = ?"+
				" AND a.appointment_time = ? AND a.id <> ? AND a.status IN (?, ?)",
			where)
		assert.Equal(t, []interface{}{patient, room, "2026-03-10", "09:00 AM", int64(3), "Pending", "Scheduled"}, args)

		rebound := sqlx.Rebind(sqlx.DOLLAR, "SELECT 1 FROM appointments a"+where)
		assert.Contains(t, rebound, "a.status IN ($6, $7)")
	})

	t.Run("empty filter", func(t *testing.T) {
		where, _, err := buildFilters(&model.AppointmentFilters{NewestFirst: true})
		require.NoError(t, err)
		assert.Empty(t, where)
	})
}
