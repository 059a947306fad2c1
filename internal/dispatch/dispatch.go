package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"rollcall/internal/ledger"
	"rollcall/internal/metrics"
	"rollcall/internal/notify"
	"rollcall/internal/report"
	"rollcall/internal/schedule"
)

// Dispatcher mails each subject's day sheet to its professor once its
// verification window has closed. At most one report per subject per day:
// the flag is only set after the mailer confirms delivery, and a failed send
// is retried on the next tick.
type Dispatcher struct {
	cal        *schedule.Calendar
	sheets     *ledger.Service
	flags      FlagStore
	mailer     notify.Mailer
	reportsDir string
	interval   time.Duration

	now func() time.Time
}

// New creates a dispatcher. interval <= 0 selects one minute.
func New(cal *schedule.Calendar, sheets *ledger.Service, flags FlagStore, mailer notify.Mailer, reportsDir string, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Dispatcher{
		cal:        cal,
		sheets:     sheets,
		flags:      flags,
		mailer:     mailer,
		reportsDir: reportsDir,
		interval:   interval,
		now:        time.Now,
	}
}

// WithClock overrides the dispatcher's clock; for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Run executes one pass per tick until ctx is done. Passes run sequentially
// on this one goroutine, so a slow send can delay the next pass but two
// passes can never overlap.
func (d *Dispatcher) Run(ctx context.Context) {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single dispatch pass over all subjects meeting today.
func (d *Dispatcher) RunOnce(ctx context.Context) {
	now := d.now()
	day := ledger.DayKey(now)
	for _, s := range d.cal.Subjects() {
		if !s.MeetsOn(now.Weekday()) {
			continue
		}
		cutoff := s.Start.On(now).Add(schedule.WindowAfter)
		if !now.After(cutoff) {
			continue
		}
		sent, err := d.flags.Sent(ctx, s.Key, day)
		if err != nil {
			log.Printf("dispatch: flag read failed for %s: %v", s.Key, err)
			continue
		}
		if sent {
			continue
		}

		entries, err := d.sheets.Day(ctx, s.Key, day)
		if errors.Is(err, ledger.ErrNoSheet) {
			// No class activity today; nothing to report.
			continue
		}
		if err != nil {
			log.Printf("dispatch: day sheet read failed for %s: %v", s.Key, err)
			continue
		}

		path, err := report.WriteSheet(d.reportsDir, s.Key, day, entries)
		if err != nil {
			log.Printf("dispatch: report render failed for %s: %v", s.Key, err)
			continue
		}
		msg := notify.ReportMail(s.ProfEmail, s.Name, day, path)
		if err := d.mailer.Send(ctx, msg); err != nil {
			metrics.MailTotal.WithLabelValues("error").Inc()
			log.Printf("dispatch: report mail failed for %s, retrying next tick: %v", s.Key, err)
			continue
		}
		metrics.MailTotal.WithLabelValues("ok").Inc()
		if err := d.flags.MarkSent(ctx, s.Key, day); err != nil {
			log.Printf("dispatch: flag write failed for %s: %v", s.Key, err)
			continue
		}
		metrics.ReportsDispatched.Inc()
		log.Printf("dispatch: report for %s (%s) sent to %s", s.Name, day, s.ProfEmail)
	}
}
