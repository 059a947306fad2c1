package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchedule(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScheduleFromFile(t *testing.T) {
	path := writeSchedule(t, `
subjects:
  - key: embedded
    name: Embedded Systems
    start: "13:45"
    days: [mon, Wed, " thu "]
    prof_email: prof@example.edu
    demo_uid: e3b4a936
  - key: signals
    name: Signals
    start: "16:00"
    days: [sat]
`)
	cal, demoUIDs, err := Schedule(path)
	require.NoError(t, err)

	s, ok := cal.Subject("embedded")
	require.True(t, ok)
	assert.Equal(t, "Embedded Systems", s.Name)
	assert.Equal(t, "prof@example.edu", s.ProfEmail)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Thursday}, s.Days)
	assert.Equal(t, 13, s.Start.Hour)
	assert.Equal(t, 45, s.Start.Minute)

	assert.Equal(t, map[string]string{"embedded": "e3b4a936"}, demoUIDs)
}

func TestScheduleDefault(t *testing.T) {
	t.Setenv("EMBEDDED_PROF", "embedded-prof@example.edu")
	t.Setenv("INTELLIGENT_PROF", "intelligent-prof@example.edu")

	cal, demoUIDs, err := Schedule("")
	require.NoError(t, err)

	s, ok := cal.Subject("embedded")
	require.True(t, ok)
	assert.Equal(t, "embedded-prof@example.edu", s.ProfEmail)
	assert.ElementsMatch(t, []time.Weekday{time.Monday, time.Wednesday, time.Thursday, time.Friday, time.Sunday}, s.Days)

	s, ok = cal.Subject("intelligent")
	require.True(t, ok)
	assert.Equal(t, 16, s.Start.Hour)

	assert.Equal(t, "e3b4a936", demoUIDs["embedded"])
	assert.Equal(t, "05D4E6F7", demoUIDs["intelligent"])
}

func TestScheduleRejectsUnknownWeekday(t *testing.T) {
	path := writeSchedule(t, `
subjects:
  - key: embedded
    name: Embedded Systems
    start: "13:45"
    days: [monday]
`)
	_, _, err := Schedule(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown weekday")
}

func TestScheduleRejectsBadStart(t *testing.T) {
	path := writeSchedule(t, `
subjects:
  - key: embedded
    name: Embedded Systems
    start: "25:00"
    days: [mon]
`)
	_, _, err := Schedule(path)
	assert.Error(t, err)
}

func TestScheduleRejectsOverlap(t *testing.T) {
	path := writeSchedule(t, `
subjects:
  - key: a
    name: A
    start: "13:45"
    days: [mon]
  - key: b
    name: B
    start: "13:50"
    days: [mon]
`)
	_, _, err := Schedule(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestScheduleMissingFile(t *testing.T) {
	_, _, err := Schedule(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
