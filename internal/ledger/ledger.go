package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"rollcall/internal/roster"
)

var (
	// ErrUnknownToken means the token id has no row in the day sheet. The
	// pipeline validates enrollment before marking, so hitting this is a
	// defensive double-check, not the primary gate.
	ErrUnknownToken = errors.New("token not on day sheet")
	// ErrNoSheet means no day sheet has been materialized yet.
	ErrNoSheet = errors.New("day sheet does not exist")
)

// Status of one attendance entry.
type Status string

const (
	StatusAbsent  Status = "absent"
	StatusPresent Status = "present"
)

// Entry is one row of a day sheet.
type Entry struct {
	TokenID  string     `json:"token_id"`
	Roll     string     `json:"roll"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Status   Status     `json:"status"`
	MarkedAt *time.Time `json:"marked_at,omitempty"`
}

// Outcome reports the effect of a mark attempt.
type Outcome struct {
	Newly    bool
	Name     string
	Email    string
	MarkedAt time.Time
}

// DayKey renders the ledger key for a point in time, using the host's local
// calendar date.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Store is raw day-sheet persistence. The Service serializes all writes for
// a given (subject, day), so implementations only need atomicity per call.
type Store interface {
	Exists(ctx context.Context, subject, day string) (bool, error)
	Seed(ctx context.Context, subject, day string, entries []Entry) error
	Entries(ctx context.Context, subject, day string) ([]Entry, error)
	Get(ctx context.Context, subject, day, tokenID string) (*Entry, error)
	SetPresent(ctx context.Context, subject, day, tokenID string, at time.Time) error
	Append(ctx context.Context, subject, day string, e Entry) error
}

// Service is the attendance ledger. Mutations for a (subject, day) pair are
// serialized behind a per-pair mutex so concurrent marks cannot both observe
// an absent row and double-report a first mark.
type Service struct {
	store    Store
	registry roster.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a ledger over the given sheet store, seeding day sheets
// from the registry.
func NewService(store Store, registry roster.Store) *Service {
	return &Service{store: store, registry: registry, locks: make(map[string]*sync.Mutex)}
}

func (s *Service) lockFor(subject, day string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subject + "|" + day
	l, ok := s.locks[key]
	if !ok {
		// Mutations only ever target the current day, so locks for days
		// that have rolled over are never reacquired and can be dropped.
		for k := range s.locks {
			if d := k[strings.LastIndexByte(k, '|')+1:]; d < day {
				delete(s.locks, k)
			}
		}
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// EnsureDay materializes the day sheet if missing, seeding an Absent row for
// every currently enrolled student. Calling it again returns the existing
// sheet unchanged.
func (s *Service) EnsureDay(ctx context.Context, subject, day string) ([]Entry, error) {
	l := s.lockFor(subject, day)
	l.Lock()
	defer l.Unlock()
	return s.ensureLocked(ctx, subject, day)
}

func (s *Service) ensureLocked(ctx context.Context, subject, day string) ([]Entry, error) {
	exists, err := s.store.Exists(ctx, subject, day)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.store.Entries(ctx, subject, day)
	}
	students, err := s.registry.List(ctx, subject)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(students))
	for _, st := range students {
		entries = append(entries, Entry{
			TokenID: st.TokenID,
			Roll:    st.Roll,
			Name:    st.Name,
			Email:   st.Email,
			Status:  StatusAbsent,
		})
	}
	if err := s.store.Seed(ctx, subject, day, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkPresent transitions a student Absent→Present exactly once. A second
// call on the same day reports Newly=false and leaves the original timestamp
// untouched.
func (s *Service) MarkPresent(ctx context.Context, subject, day, tokenID string, at time.Time) (Outcome, error) {
	l := s.lockFor(subject, day)
	l.Lock()
	defer l.Unlock()

	if _, err := s.ensureLocked(ctx, subject, day); err != nil {
		return Outcome{}, err
	}
	e, err := s.store.Get(ctx, subject, day, tokenID)
	if err != nil {
		return Outcome{}, err
	}
	if e == nil {
		return Outcome{}, ErrUnknownToken
	}
	if e.Status == StatusPresent {
		marked := at
		if e.MarkedAt != nil {
			marked = *e.MarkedAt
		}
		return Outcome{Newly: false, Name: e.Name, Email: e.Email, MarkedAt: marked}, nil
	}
	if err := s.store.SetPresent(ctx, subject, day, tokenID, at); err != nil {
		return Outcome{}, err
	}
	return Outcome{Newly: true, Name: e.Name, Email: e.Email, MarkedAt: at}, nil
}

// AppendEnrollment adds an Absent row for a student registered after the day
// sheet was materialized. No sheet, or an existing row, is a no-op: the next
// EnsureDay seeding will include the student anyway.
func (s *Service) AppendEnrollment(ctx context.Context, subject, day string, st roster.Student) error {
	l := s.lockFor(subject, day)
	l.Lock()
	defer l.Unlock()

	exists, err := s.store.Exists(ctx, subject, day)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	e, err := s.store.Get(ctx, subject, day, st.TokenID)
	if err != nil {
		return err
	}
	if e != nil {
		return nil
	}
	return s.store.Append(ctx, subject, day, Entry{
		TokenID: st.TokenID,
		Roll:    st.Roll,
		Name:    st.Name,
		Email:   st.Email,
		Status:  StatusAbsent,
	})
}

// Day returns the materialized sheet, or ErrNoSheet. It never creates one.
func (s *Service) Day(ctx context.Context, subject, day string) ([]Entry, error) {
	exists, err := s.store.Exists(ctx, subject, day)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoSheet
	}
	return s.store.Entries(ctx, subject, day)
}

// DayExists reports whether a sheet has been materialized.
func (s *Service) DayExists(ctx context.Context, subject, day string) (bool, error) {
	return s.store.Exists(ctx, subject, day)
}
