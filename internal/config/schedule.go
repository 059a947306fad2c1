package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rollcall/internal/schedule"
)

// scheduleFile is the YAML shape of the weekly schedule.
type scheduleFile struct {
	Subjects []subjectEntry `yaml:"subjects"`
}

type subjectEntry struct {
	Key       string   `yaml:"key"`
	Name      string   `yaml:"name"`
	Start     string   `yaml:"start"`
	Days      []string `yaml:"days"`
	ProfEmail string   `yaml:"prof_email"`
	DemoUID   string   `yaml:"demo_uid"`
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// Schedule loads and validates the weekly schedule. With an empty path the
// built-in demo schedule is used, with professor addresses taken from
// EMBEDDED_PROF / INTELLIGENT_PROF. The returned map carries each subject's
// demo reader uid.
func Schedule(path string) (*schedule.Calendar, map[string]string, error) {
	var sf scheduleFile
	if path == "" {
		sf = defaultSchedule()
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("config: read schedule: %w", err)
		}
		if err := yaml.Unmarshal(raw, &sf); err != nil {
			return nil, nil, fmt.Errorf("config: parse schedule: %w", err)
		}
	}

	subjects := make([]schedule.Subject, 0, len(sf.Subjects))
	demoUIDs := make(map[string]string, len(sf.Subjects))
	for _, e := range sf.Subjects {
		start, err := schedule.ParseTimeOfDay(e.Start)
		if err != nil {
			return nil, nil, fmt.Errorf("config: subject %q: %w", e.Key, err)
		}
		days := make([]time.Weekday, 0, len(e.Days))
		for _, d := range e.Days {
			wd, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]
			if !ok {
				return nil, nil, fmt.Errorf("config: subject %q: unknown weekday %q", e.Key, d)
			}
			days = append(days, wd)
		}
		subjects = append(subjects, schedule.Subject{
			Key:       e.Key,
			Name:      e.Name,
			Days:      days,
			Start:     start,
			ProfEmail: e.ProfEmail,
		})
		if e.DemoUID != "" {
			demoUIDs[e.Key] = e.DemoUID
		}
	}

	cal, err := schedule.NewCalendar(subjects)
	if err != nil {
		return nil, nil, err
	}
	return cal, demoUIDs, nil
}

// defaultSchedule is the built-in demo deployment: two subjects with fixed
// demo reader uids.
func defaultSchedule() scheduleFile {
	return scheduleFile{Subjects: []subjectEntry{
		{
			Key:       "embedded",
			Name:      "Embedded Systems",
			Start:     "13:45",
			Days:      []string{"mon", "wed", "thu", "fri", "sun"},
			ProfEmail: os.Getenv("EMBEDDED_PROF"),
			DemoUID:   "e3b4a936",
		},
		{
			Key:       "intelligent",
			Name:      "Intelligent Systems",
			Start:     "16:00",
			Days:      []string{"tue", "thu"},
			ProfEmail: os.Getenv("INTELLIGENT_PROF"),
			DemoUID:   "05D4E6F7",
		},
	}}
}
