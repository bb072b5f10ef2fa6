// Package timeutil centralizes slot alignment and wall-clock/instant
// conversions. Nothing in the codebase may rely on the process-default
// timezone: all wall math goes through an explicit *time.Location.
package timeutil

import (
	"time"

	"github.com/pkg/errors"
)

// Slot is the fixed availability granularity. All availability blocks and
// confirmed meeting times are aligned to it.
const Slot = 30 * time.Minute

// WallDateLayout is the layout of wall dates ("2025-01-31").
const WallDateLayout = "2006-01-02"

// WallTimeLayout is the layout of wall times within a day ("14:30").
const WallTimeLayout = "15:04"

// IsSlotAligned reports whether t falls exactly on a slot boundary.
func IsSlotAligned(t time.Time) bool {
	return t.Truncate(Slot).Equal(t)
}

// SlotsBetween returns the number of whole slots in [start, end).
func SlotsBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / Slot)
}

// AlignToSlot truncates t down to the nearest slot boundary.
func AlignToSlot(t time.Time) time.Time {
	return t.Truncate(Slot)
}

// LoadLocation resolves an IANA timezone name.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown timezone %q", name)
	}
	return loc, nil
}

// ParseWallDate parses a wall date in the given location, at midnight.
func ParseWallDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(WallDateLayout, s, loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid wall date %q", s)
	}
	return t, nil
}

// ParseWallTime parses a wall time of day. The returned values are hours and
// minutes since midnight.
func ParseWallTime(s string) (hour, minute int, err error) {
	t, err := time.Parse(WallTimeLayout, s)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid wall time %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// WallDate formats the wall date of t in the given location.
func WallDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(WallDateLayout)
}

// MinutesOfDay returns the wall-clock minutes since midnight of t in loc.
func MinutesOfDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

// IsLocalNoon reports whether t falls inside the noon slot of loc's wall
// clock, 12:00 inclusive to 12:30 exclusive. The dispatcher's daily passes
// key off this window and dedup by wall date keeps them to one send per day.
func IsLocalNoon(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	return local.Hour() == 12 && local.Minute() < 30
}
