package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// DateLayout is the stored and wire form of a slot date.
	DateLayout = "2006-01-02"
	// TimeLayout is the canonical 12-hour clock form of a slot time, e.g. "09:00 AM".
	TimeLayout = "03:04 PM"
)

var acceptedTimeLayouts = []string{TimeLayout, "3:04 PM", "03:04PM", "3:04PM"}

// Slot is a (date, time) pair identifying a potential or actual booking instant.
// Both halves are always held in canonical form so string equality is slot equality.
type Slot struct {
	Date string `db:"appointment_date" json:"date"`
	Time string `db:"appointment_time" json:"time"`
}

// NormalizeDate validates a YYYY-MM-DD date and returns it unchanged in canonical form.
func NormalizeDate(s string) (string, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("date must be YYYY-MM-DD: %q", s)
	}
	return d.Format(DateLayout), nil
}

// NormalizeTime accepts "9:00 am", "09:00 AM", "09:00AM" and returns "09:00 AM".
func NormalizeTime(s string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range acceptedTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", fmt.Errorf("time must be hh:mm AM/PM: %q", s)
}

// ParseSlot normalizes both halves of a slot.
func ParseSlot(date, clock string) (Slot, error) {
	d, err := NormalizeDate(date)
	if err != nil {
		return Slot{}, err
	}
	t, err := NormalizeTime(clock)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Time: t}, nil
}

// Instant combines date and time into a single comparable value in loc.
func (s Slot) Instant(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	n, err := ParseSlot(s.Date, s.Time)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, n.Date+" "+n.Time, loc)
}

// Day returns the slot date at midnight in loc.
func (s Slot) Day(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s.Date), loc)
}

// Before orders slots chronologically. Unparseable slots sort by their text.
func (s Slot) Before(o Slot) bool {
	a, errA := s.Instant(time.UTC)
	b, errB := o.Instant(time.UTC)
	if errA != nil || errB != nil {
		return s.String() < o.String()
	}
	return a.Before(b)
}

// Same is the string-exact comparison used to block rebooking an identical slot.
func (s Slot) Same(o Slot) bool {
	return s.Date == o.Date && s.Time == o.Time
}

func (s Slot) IsZero() bool {
	return s.Date == "" && s.Time == ""
}

func (s Slot) String() string {
	return s.Date + " " + s.Time
}

// SortBySlot orders items chronologically by their slot, breaking ties by id.
// Stored times are 12-hour text, so ordering can never be left to the database.
func SortBySlot[T any](items []T, key func(T) (Slot, int64), newestFirst bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, aid := key(items[i])
		b, bid := key(items[j])
		if newestFirst {
			a, b = b, a
			aid, bid = bid, aid
		}
		if a.Same(b) {
			return aid < bid
		}
		return a.Before(b)
	})
}
