// Package conflict answers the scheduling questions every lifecycle transition
// is guarded by. All checks run against the repositories handed in, so inside a
// transaction they see that transaction's view.
package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Statuses that take part in slot conflicts and patient sequencing.
var activeStatuses = []model.AppointmentStatus{
	model.AppointmentStatusPending,
	model.AppointmentStatusScheduled,
	model.AppointmentStatusCompleted,
}

type Checker struct {
	now     func() time.Time
	loc     *time.Location
	metrics *metrics.Metrics
}

type Option func(*Checker)

func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// WithLocation sets the clinic timezone used to decide what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(c *Checker) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Today is the current clinic date as YYYY-MM-DD.
func (c *Checker) Today() string {
	return c.now().In(c.loc).Format(model.DateLayout)
}

// IsRoomFree reports whether no non-Cancelled appointment other than excludeID
// holds room at slot.
func (c *Checker) IsRoomFree(ctx context.Context, repos repository.Repositories, room string, slot model.Slot, excludeID int64) (bool, error) {
	n, err := repos.Appointments().Count(ctx, &model.AppointmentFilters{
		RoomNumber: &room,
		Date:       slot.Date,
		Time:       slot.Time,
		Statuses:   activeStatuses,
		ExcludeID:  excludeID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check room availability: %w", err)
	}
	c.metrics.ObserveCheck("room_free", n == 0)
	return n == 0, nil
}

// FreeStaff lists staff not linked to any non-Cancelled appointment at slot,
// ignoring the appointment excludeID.
func (c *Checker) FreeStaff(ctx context.Context, repos repository.Repositories, slot model.Slot, excludeID int64) ([]*model.Staff, error) {
	staff, err := repos.Staff().ListFree(ctx, slot, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list free staff: %w", err)
	}
	c.metrics.ObserveCheck("free_staff", len(staff) > 0)
	return staff, nil
}

// IsSequenceValid reports whether candidate falls strictly after the patient's
// latest non-Cancelled appointment. A patient with no appointments is always valid.
func (c *Checker) IsSequenceValid(ctx context.Context, repos repository.Repositories, patientID int64, candidate model.Slot) (bool, error) {
	latest, err := c.LatestSlot(ctx, repos, patientID)
	if err != nil {
		return false, err
	}
	ok := latest == nil || latest.Before(candidate)
	c.metrics.ObserveCheck("sequence", ok)
	return ok, nil
}

// LatestSlot returns the patient's latest non-Cancelled slot, or nil.
func (c *Checker) LatestSlot(ctx context.Context, repos repository.Repositories, patientID int64) (*model.Slot, error) {
	appointments, err := repos.Appointments().List(ctx, &model.AppointmentFilters{
		PatientID: &patientID,
		Statuses:  activeStatuses,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	var latest *model.Slot
	for _, a := range appointments {
		if latest == nil || latest.Before(a.Slot) {
			s := a.Slot
			latest = &s
		}
	}
	return latest, nil
}

// IsFutureDate reports whether date is today or later in the clinic timezone.
func (c *Checker) IsFutureDate(date string) (bool, error) {
	day, err := model.Slot{Date: date}.Day(c.loc)
	if err != nil {
		return false, errors.Validation(fmt.Sprintf("date must be YYYY-MM-DD: %q", date))
	}
	now := c.now().In(c.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
	ok := !day.Before(today)
	c.metrics.ObserveCheck("future_date", ok)
	return ok, nil
}
