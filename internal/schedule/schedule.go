package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Verification and registration are only allowed inside a window around each
// class start: it opens WindowBefore minutes early and closes WindowAfter
// minutes after the start.
const (
	WindowBefore = 10 * time.Minute
	WindowAfter  = 20 * time.Minute
)

// TimeOfDay is a wall-clock start time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return t, nil
}

// On combines the time of day with the date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Subject is one scheduled class: when it meets and who receives its report.
type Subject struct {
	Key       string
	Name      string
	Days      []time.Weekday
	Start     TimeOfDay
	ProfEmail string
}

// MeetsOn reports whether the subject meets on the given weekday.
func (s Subject) MeetsOn(wd time.Weekday) bool {
	for _, d := range s.Days {
		if d == wd {
			return true
		}
	}
	return false
}

// Session is an open verification window, derived from the calendar and the
// current time. It is recomputed on every access and never stored.
type Session struct {
	Subject     Subject
	WindowStart time.Time
	WindowEnd   time.Time
}

// Calendar is a validated weekly schedule.
type Calendar struct {
	subjects []Subject
}

// NewCalendar validates the schedule: keys must be unique, every subject
// needs at least one meeting day, and no two windows may overlap on a shared
// weekday. Overlap is a configuration error rejected at boot, never resolved
// by a request-time tie-break.
func NewCalendar(subjects []Subject) (*Calendar, error) {
	if len(subjects) == 0 {
		return nil, errors.New("schedule: no subjects configured")
	}
	seen := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		if s.Key == "" {
			return nil, errors.New("schedule: subject key required")
		}
		if seen[s.Key] {
			return nil, fmt.Errorf("schedule: duplicate subject key %q", s.Key)
		}
		seen[s.Key] = true
		if len(s.Days) == 0 {
			return nil, fmt.Errorf("schedule: subject %q has no meeting days", s.Key)
		}
		for _, d := range s.Days {
			if d < time.Sunday || d > time.Saturday {
				return nil, fmt.Errorf("schedule: subject %q has invalid weekday %d", s.Key, d)
			}
		}
	}
	for i := 0; i < len(subjects); i++ {
		for j := i + 1; j < len(subjects); j++ {
			if wd, ok := windowsOverlap(subjects[i], subjects[j]); ok {
				return nil, fmt.Errorf("schedule: subjects %q and %q have overlapping windows on %s",
					subjects[i].Key, subjects[j].Key, wd)
			}
		}
	}
	cal := &Calendar{subjects: make([]Subject, len(subjects))}
	copy(cal.subjects, subjects)
	return cal, nil
}

// Active returns the subject whose window contains now on a meeting weekday.
// Window bounds are inclusive. An empty result means the operation is
// forbidden right now, not that anything failed.
func (c *Calendar) Active(now time.Time) (Session, bool) {
	wd := now.Weekday()
	for _, s := range c.subjects {
		if !s.MeetsOn(wd) {
			continue
		}
		start := s.Start.On(now)
		ws := start.Add(-WindowBefore)
		we := start.Add(WindowAfter)
		if !now.Before(ws) && !now.After(we) {
			return Session{Subject: s, WindowStart: ws, WindowEnd: we}, true
		}
	}
	return Session{}, false
}

// Subject returns the subject with the given key.
func (c *Calendar) Subject(key string) (Subject, bool) {
	for _, s := range c.subjects {
		if s.Key == key {
			return s, true
		}
	}
	return Subject{}, false
}

// Subjects returns the schedule in configuration order.
func (c *Calendar) Subjects() []Subject {
	out := make([]Subject, len(c.subjects))
	copy(out, c.subjects)
	return out
}

// windowsOverlap reports whether a and b share a weekday on which their
// windows intersect, comparing minute-of-day intervals.
func windowsOverlap(a, b Subject) (time.Weekday, bool) {
	shared := time.Sunday
	found := false
	for _, da := range a.Days {
		if b.MeetsOn(da) {
			shared, found = da, true
			break
		}
	}
	if !found {
		return 0, false
	}
	aStart := float64(a.Start.Hour*60+a.Start.Minute) - WindowBefore.Minutes()
	aEnd := float64(a.Start.Hour*60+a.Start.Minute) + WindowAfter.Minutes()
	bStart := float64(b.Start.Hour*60+b.Start.Minute) - WindowBefore.Minutes()
	bEnd := float64(b.Start.Hour*60+b.Start.Minute) + WindowAfter.Minutes()
	if aStart <= bEnd && bStart <= aEnd {
		return shared, true
	}
	return 0, false
}
