package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/roster"
)

func seedRoster(t *testing.T, subject string, n int) roster.Store {
	t.Helper()
	reg := roster.NewMemory()
	names := []string{"Alice", "Bob", "Carol", "Dave"}
	for i := 0; i < n; i++ {
		err := reg.Enroll(context.Background(), subject, roster.Student{
			TokenID: string(rune('a'+i)) + "-token",
			Roll:    string(rune('1' + i)),
			Name:    names[i],
			Email:   names[i] + "@example.edu",
		})
		require.NoError(t, err)
	}
	return reg
}

func TestEnsureDaySeedsAbsentAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), seedRoster(t, "embedded", 2))

	first, err := svc.EnsureDay(ctx, "embedded", "2026-01-07")
	require.NoError(t, err)
	require.Len(t, first, 2)
	for _, e := range first {
		assert.Equal(t, StatusAbsent, e.Status)
		assert.Nil(t, e.MarkedAt)
	}

	// A student enrolled after seeding must not leak into the existing sheet.
	reg := svc.registry
	require.NoError(t, reg.Enroll(ctx, "embedded", roster.Student{TokenID: "late", Name: "Late"}))

	second, err := svc.EnsureDay(ctx, "embedded", "2026-01-07")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarkPresentIsMonotonic(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), seedRoster(t, "embedded", 2))

	t0 := time.Date(2026, 1, 7, 13, 42, 0, 0, time.Local)
	out, err := svc.MarkPresent(ctx, "embedded", "2026-01-07", "a-token", t0)
	require.NoError(t, err)
	assert.True(t, out.Newly)
	assert.Equal(t, "Alice", out.Name)
	assert.Equal(t, t0, out.MarkedAt)

	// Second mark later the same day: not newly, original timestamp kept.
	t1 := t0.Add(8 * time.Minute)
	out, err = svc.MarkPresent(ctx, "embedded", "2026-01-07", "a-token", t1)
	require.NoError(t, err)
	assert.False(t, out.Newly)
	assert.Equal(t, t0, out.MarkedAt)

	entries, err := svc.Day(ctx, "embedded", "2026-01-07")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, StatusPresent, entries[0].Status)
	require.NotNil(t, entries[0].MarkedAt)
	assert.Equal(t, t0, *entries[0].MarkedAt)
	assert.Equal(t, StatusAbsent, entries[1].Status)
}

func TestMarkPresentConcurrentMarksOnce(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), seedRoster(t, "embedded", 1))
	at := time.Date(2026, 1, 7, 13, 42, 0, 0, time.Local)

	const attempts = 50
	var newly int64
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.MarkPresent(ctx, "embedded", "2026-01-07", "a-token", at)
			if err != nil {
				errs <- err
				return
			}
			if out.Newly {
				atomic.AddInt64(&newly, 1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Exactly one attempt may observe the Absent→Present transition; the
	// rest must report an already-present outcome.
	assert.EqualValues(t, 1, newly)

	entries, err := svc.Day(ctx, "embedded", "2026-01-07")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusPresent, entries[0].Status)
}

func TestMarkPresentUnknownToken(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), seedRoster(t, "embedded", 1))

	_, err := svc.MarkPresent(ctx, "embedded", "2026-01-07", "nobody", time.Now())
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestMarkPresentMaterializesSheet(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), seedRoster(t, "embedded", 2))

	// No EnsureDay beforehand; marking must seed the sheet first.
	out, err := svc.MarkPresent(ctx, "embedded", "2026-01-07", "b-token", time.Now())
	require.NoError(t, err)
	assert.True(t, out.Newly)

	entries, err := svc.Day(ctx, "embedded", "2026-01-07")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAppendEnrollment(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), seedRoster(t, "embedded", 1))
	late := roster.Student{TokenID: "late", Roll: "9", Name: "Late", Email: "late@example.edu"}

	// No sheet yet: a no-op, nothing materialized.
	require.NoError(t, svc.AppendEnrollment(ctx, "embedded", "2026-01-07", late))
	_, err := svc.Day(ctx, "embedded", "2026-01-07")
	assert.ErrorIs(t, err, ErrNoSheet)

	_, err = svc.EnsureDay(ctx, "embedded", "2026-01-07")
	require.NoError(t, err)

	require.NoError(t, svc.AppendEnrollment(ctx, "embedded", "2026-01-07", late))
	entries, err := svc.Day(ctx, "embedded", "2026-01-07")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "late", entries[1].TokenID)
	assert.Equal(t, StatusAbsent, entries[1].Status)

	// Appending the same student again leaves the sheet unchanged.
	require.NoError(t, svc.AppendEnrollment(ctx, "embedded", "2026-01-07", late))
	entries, err = svc.Day(ctx, "embedded", "2026-01-07")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDaysAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), seedRoster(t, "embedded", 1))

	_, err := svc.MarkPresent(ctx, "embedded", "2026-01-07", "a-token", time.Now())
	require.NoError(t, err)

	// A fresh day starts absent again.
	entries, err := svc.EnsureDay(ctx, "embedded", "2026-01-08")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusAbsent, entries[0].Status)
}

func TestDayLocksArePruned(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), seedRoster(t, "embedded", 1))

	base := time.Date(2026, 1, 7, 13, 42, 0, 0, time.Local)
	for i := 0; i < 30; i++ {
		day := base.AddDate(0, 0, i)
		_, err := svc.MarkPresent(ctx, "embedded", DayKey(day), "a-token", day)
		require.NoError(t, err)
	}

	// Rolled-over days must not accumulate mutexes.
	svc.mu.Lock()
	n := len(svc.locks)
	svc.mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestDayKey(t *testing.T) {
	assert.Equal(t, "2026-01-07", DayKey(time.Date(2026, 1, 7, 23, 59, 0, 0, time.Local)))
}
