// Package stageclock computes stage deadlines on top of the working-day
// calendar. Every function takes "now" explicitly so callers (and tests)
// control the clock.
package stageclock

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/rulepost/internal/app/system/calendar"
)

// ErrInvalidDays is returned when a non-positive number of working days is requested.
var ErrInvalidDays = errors.New("stageclock: working days must be positive")

// ErrInvalidTimeOfDay is returned for an hour or minute out of range.
var ErrInvalidTimeOfDay = errors.New("stageclock: invalid time of day")

// nextSlotSearchDays bounds the search in NextPublicationSlot.
const nextSlotSearchDays = 30

// TimeOfDay is a wall-clock time in the calendar's timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// At is shorthand for TimeOfDay{h, m}.
func At(h, m int) TimeOfDay { return TimeOfDay{Hour: h, Minute: m} }

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// on places t on the calendar day of midnight d.
func (t TimeOfDay) on(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, d.Location())
}

// ComputeStageEnds returns the instant at tod on the n-th working day
// counted from today (today counts when it is a working day, so n=1 may
// resolve to today). If that instant is not after now, the deadline rolls
// to the next working day at the same time of day. The result is in UTC.
func ComputeStageEnds(cal *calendar.Calendar, now time.Time, n int, tod TimeOfDay) (time.Time, error) {
	if n <= 0 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidDays, n)
	}
	if !tod.valid() {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTimeOfDay, tod)
	}

	day := cal.DateOf(now)
	counted := 0
	for {
		if cal.IsWorkingDay(day) {
			counted++
			if counted == n {
				break
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	end := tod.on(day)
	if !end.After(now) {
		end = tod.on(cal.NextWorkingDay(day))
	}
	return end.UTC(), nil
}

// OffsetByWorkingDays moves t by n working days (backwards when n < 0),
// keeping its local time of day. n == 0 returns t unchanged.
func OffsetByWorkingDays(cal *calendar.Calendar, t time.Time, n int) time.Time {
	if n == 0 {
		return t.UTC()
	}

	lt := t.In(cal.Location())
	day := cal.DateOf(lt)
	for ; n > 0; n-- {
		day = cal.NextWorkingDay(day)
	}
	for ; n < 0; n++ {
		day = cal.PrevWorkingDay(day)
	}

	out := time.Date(day.Year(), day.Month(), day.Day(),
		lt.Hour(), lt.Minute(), lt.Second(), lt.Nanosecond(), cal.Location())
	return out.UTC()
}

// PublicationSlots are the times of day comment publication runs.
var PublicationSlots = []TimeOfDay{At(0, 0), At(12, 0)}

// NextPublicationSlot returns the first publication slot strictly after
// now that falls on a working day. The search is capped; past the cap it
// falls back to 12:00 on the next working day.
func NextPublicationSlot(cal *calendar.Calendar, now time.Time) time.Time {
	day := cal.DateOf(now)
	for i := 0; i < nextSlotSearchDays; i++ {
		if cal.IsWorkingDay(day) {
			for _, slot := range PublicationSlots {
				if s := slot.on(day); s.After(now) {
					return s.UTC()
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return At(12, 0).on(cal.NextWorkingDay(now)).UTC()
}
