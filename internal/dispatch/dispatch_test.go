package dispatch

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/ledger"
	"rollcall/internal/notify"
	"rollcall/internal/roster"
	"rollcall/internal/schedule"
)

// flakyMailer fails the first failures sends, then succeeds.
type flakyMailer struct {
	failures int
	sent     []notify.Message
	attempts int
}

func (m *flakyMailer) Send(_ context.Context, msg notify.Message) error {
	m.attempts++
	if m.attempts <= m.failures {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	disp   *Dispatcher
	sheets *ledger.Service
	mailer *flakyMailer
	now    time.Time
}

// 2026-01-07 is a Wednesday; the subject's window closes 14:05 that day.
func newFixture(t *testing.T, failures int) *fixture {
	t.Helper()
	cal, err := schedule.NewCalendar([]schedule.Subject{{
		Key:       "embedded",
		Name:      "Embedded Systems",
		Days:      []time.Weekday{time.Wednesday},
		Start:     schedule.TimeOfDay{Hour: 13, Minute: 45},
		ProfEmail: "prof@example.edu",
	}})
	require.NoError(t, err)

	registry := roster.NewMemory()
	require.NoError(t, registry.Enroll(context.Background(), "embedded", roster.Student{
		TokenID: "tok-a", Roll: "1", Name: "Alice", Email: "alice@example.edu",
	}))
	sheets := ledger.NewService(ledger.NewMemory(), registry)
	mailer := &flakyMailer{failures: failures}

	f := &fixture{
		disp:   New(cal, sheets, NewMemoryFlags(), mailer, t.TempDir(), time.Minute),
		sheets: sheets,
		mailer: mailer,
		now:    time.Date(2026, 1, 7, 14, 30, 0, 0, time.Local),
	}
	f.disp.WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) materializeToday(t *testing.T) {
	t.Helper()
	_, err := f.sheets.MarkPresent(context.Background(), "embedded", "2026-01-07", "tok-a",
		time.Date(2026, 1, 7, 13, 42, 0, 0, time.Local))
	require.NoError(t, err)
}

func TestDispatchAtMostOncePerDay(t *testing.T) {
	f := newFixture(t, 0)
	f.materializeToday(t)

	for i := 0; i < 100; i++ {
		f.disp.RunOnce(context.Background())
	}

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, "prof@example.edu", msg.To)
	assert.Equal(t, "Daily Attendance Sheet: Embedded Systems (2026-01-07)", msg.Subject)
	_, err := os.Stat(msg.AttachmentPath)
	assert.NoError(t, err)
}

func TestDispatchRetriesUntilDelivery(t *testing.T) {
	f := newFixture(t, 2)
	f.materializeToday(t)
	ctx := context.Background()

	// Two failing passes leave the flag unset.
	f.disp.RunOnce(ctx)
	f.disp.RunOnce(ctx)
	assert.Empty(t, f.mailer.sent)

	// Third pass delivers; later passes are no-ops.
	f.disp.RunOnce(ctx)
	f.disp.RunOnce(ctx)
	assert.Len(t, f.mailer.sent, 1)
	assert.Equal(t, 3, f.mailer.attempts)
}

func TestDispatchSkipsWithoutSheet(t *testing.T) {
	f := newFixture(t, 0)

	for i := 0; i < 5; i++ {
		f.disp.RunOnce(context.Background())
	}
	assert.Empty(t, f.mailer.sent)
	assert.Zero(t, f.mailer.attempts)
}

func TestDispatchWaitsForWindowClose(t *testing.T) {
	f := newFixture(t, 0)
	f.materializeToday(t)

	// Window closes 14:05; the close instant itself does not dispatch.
	f.now = time.Date(2026, 1, 7, 14, 5, 0, 0, time.Local)
	f.disp.RunOnce(context.Background())
	assert.Empty(t, f.mailer.sent)

	f.now = time.Date(2026, 1, 7, 14, 5, 1, 0, time.Local)
	f.disp.RunOnce(context.Background())
	assert.Len(t, f.mailer.sent, 1)
}

func TestDispatchSkipsNonMeetingDays(t *testing.T) {
	f := newFixture(t, 0)
	f.materializeToday(t)

	// 2026-01-08 is a Thursday; the subject does not meet.
	f.now = time.Date(2026, 1, 8, 14, 30, 0, 0, time.Local)
	f.disp.RunOnce(context.Background())
	assert.Empty(t, f.mailer.sent)
}

func TestDispatchNextDayIsFresh(t *testing.T) {
	f := newFixture(t, 0)
	f.materializeToday(t)
	ctx := context.Background()

	f.disp.RunOnce(ctx)
	require.Len(t, f.mailer.sent, 1)

	// A week later the same subject meets again with a fresh sheet and flag.
	nextWeek := time.Date(2026, 1, 14, 14, 30, 0, 0, time.Local)
	_, err := f.sheets.EnsureDay(ctx, "embedded", ledger.DayKey(nextWeek))
	require.NoError(t, err)
	f.now = nextWeek
	f.disp.RunOnce(ctx)
	assert.Len(t, f.mailer.sent, 2)
}
