// Package calendar decides which calendar days count as working days for
// the enquiry schedule.
//
// All decisions are made on calendar dates in a single named timezone,
// never on instants, so the time-of-day of the input does not matter and
// DST transitions cannot move a timestamp onto a different day.
//
// Rules, applied in order:
//   - Sunday is never a working day.
//   - Saturday is a working day only on or after the cutoff, which is the
//     race date minus three calendar months.
//   - Any day inside a configured holiday range (inclusive) is not a
//     working day.
package calendar

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // Europe/Rome must resolve on hosts without zoneinfo
)

// DateLayout is the layout used for dates in configuration.
const DateLayout = "2006-01-02"

// ErrInvalidRange is returned when a holiday range ends before it starts.
var ErrInvalidRange = errors.New("calendar: holiday range ends before it starts")

// Calendar is immutable after construction and safe for concurrent use.
type Calendar struct {
	loc      *time.Location
	raceDate time.Time
	cutoff   time.Time
	holidays []span
}

type span struct {
	start, end int // dayKey values, inclusive
}

// New builds a Calendar from cfg.
func New(cfg Config) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("calendar: load timezone %q: %w", cfg.TimeZone, err)
	}

	race, err := time.ParseInLocation(DateLayout, cfg.RaceDate, loc)
	if err != nil {
		return nil, fmt.Errorf("calendar: parse race date %q: %w", cfg.RaceDate, err)
	}

	c := &Calendar{
		loc:      loc,
		raceDate: race,
		cutoff:   addMonthsClamped(race, -3),
	}

	for _, r := range cfg.Holidays {
		start, err := time.ParseInLocation(DateLayout, r.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse holiday start %q: %w", r.Start, err)
		}
		end, err := time.ParseInLocation(DateLayout, r.End, loc)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse holiday end %q: %w", r.End, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, r.Start, r.End)
		}
		c.holidays = append(c.holidays, span{start: dayKey(start), end: dayKey(end)})
	}

	return c, nil
}

// Default returns the calendar built from DefaultConfig.
func Default() *Calendar {
	c, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return c
}

// Location returns the timezone every date decision is made in.
func (c *Calendar) Location() *time.Location { return c.loc }

// RaceDate returns local midnight of the race date.
func (c *Calendar) RaceDate() time.Time { return c.raceDate }

// Cutoff returns local midnight of the first date on which Saturdays
// count as working days.
func (c *Calendar) Cutoff() time.Time { return c.cutoff }

// DateOf returns local midnight of the calendar day t falls on.
func (c *Calendar) DateOf(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
}

// IsWorkingDay reports whether the calendar day containing t is a working day.
func (c *Calendar) IsWorkingDay(t time.Time) bool {
	d := c.DateOf(t)

	switch d.Weekday() {
	case time.Sunday:
		return false
	case time.Saturday:
		if d.Before(c.cutoff) {
			return false
		}
	}

	k := dayKey(d)
	for _, h := range c.holidays {
		if k >= h.start && k <= h.end {
			return false
		}
	}
	return true
}

// NextWorkingDay returns local midnight of the first working day strictly
// after the day containing t.
func (c *Calendar) NextWorkingDay(t time.Time) time.Time {
	d := c.DateOf(t)
	for {
		d = d.AddDate(0, 0, 1)
		if c.IsWorkingDay(d) {
			return d
		}
	}
}

// PrevWorkingDay returns local midnight of the last working day strictly
// before the day containing t.
func (c *Calendar) PrevWorkingDay(t time.Time) time.Time {
	d := c.DateOf(t)
	for {
		d = d.AddDate(0, 0, -1)
		if c.IsWorkingDay(d) {
			return d
		}
	}
}

func dayKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// addMonthsClamped shifts t by n calendar months, clamping the day to the
// last day of the target month (May 31 minus 3 months is Feb 28/29).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}
