package verify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rollcall/internal/gallery"
	"rollcall/internal/ledger"
	"rollcall/internal/metrics"
	"rollcall/internal/notify"
	"rollcall/internal/roster"
	"rollcall/internal/schedule"
)

var (
	// ErrSessionClosed means no subject window is open right now. A gate
	// outcome, not a fault.
	ErrSessionClosed = errors.New("no active session window")
	// ErrTokenTaken means the token id is already registered.
	ErrTokenTaken = errors.New("token already registered")
)

// Status is the terminal outcome of a verification attempt.
type Status string

const (
	StatusSessionClosed     Status = "session_closed"
	StatusNotRegistered     Status = "not_registered"
	StatusNoFaceDetected    Status = "no_face_detected"
	StatusFaceNotRecognized Status = "face_not_recognized"
	StatusIdentityMismatch  Status = "identity_mismatch"
	StatusAlreadyPresent    Status = "already_present"
	StatusMarked            Status = "marked"
)

// Result carries the outcome message and, on success, the student's display
// fields and mark time.
type Result struct {
	Status   Status     `json:"status"`
	Message  string     `json:"message"`
	Subject  string     `json:"subject,omitempty"`
	Roll     string     `json:"roll,omitempty"`
	Name     string     `json:"name,omitempty"`
	Email    string     `json:"email,omitempty"`
	MarkedAt *time.Time `json:"time,omitempty"`
}

// Pipeline reconciles token identity against biometric identity and applies
// the attendance transition. It holds no state of its own beyond clocks and
// collaborators; every outcome is terminal.
type Pipeline struct {
	cal      *schedule.Calendar
	registry roster.Store
	faces    *gallery.Service
	sheets   *ledger.Service
	mailer   notify.Mailer

	now func() time.Time
}

// New creates a pipeline. mailer receives student notifications and may be
// nil to disable them.
func New(cal *schedule.Calendar, registry roster.Store, faces *gallery.Service, sheets *ledger.Service, mailer notify.Mailer) *Pipeline {
	return &Pipeline{
		cal:      cal,
		registry: registry,
		faces:    faces,
		sheets:   sheets,
		mailer:   mailer,
		now:      time.Now,
	}
}

// WithClock overrides the pipeline's clock; for tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// ActiveSession returns the currently open window, if any.
func (p *Pipeline) ActiveSession() (schedule.Session, bool) {
	return p.cal.Active(p.now())
}

// Verify runs one verification attempt: window gate, token lookup, biometric
// identification, cross-check, then the idempotent ledger commit. A newly
// marked student gets exactly one notification; a repeat gets none.
func (p *Pipeline) Verify(ctx context.Context, tokenID string, image []byte) (Result, error) {
	now := p.now()
	sess, ok := p.cal.Active(now)
	if !ok {
		return p.outcome(Result{Status: StatusSessionClosed, Message: "Attendance closed"}), nil
	}
	subject := sess.Subject.Key

	st, err := p.registry.Lookup(ctx, subject, tokenID)
	if err != nil {
		return Result{}, err
	}
	if st == nil {
		return p.outcome(Result{Status: StatusNotRegistered, Subject: subject,
			Message: "Student not registered, please register first"}), nil
	}

	match, err := p.faces.Identify(ctx, subject, image)
	switch {
	case errors.Is(err, gallery.ErrNoFace):
		return p.outcome(Result{Status: StatusNoFaceDetected, Subject: subject, Message: "No face detected"}), nil
	case errors.Is(err, gallery.ErrNoMatch):
		return p.outcome(Result{Status: StatusFaceNotRecognized, Subject: subject, Message: "Face not recognized"}), nil
	case err != nil:
		return Result{}, err
	}

	// Both signals must agree on the same identity: a borrowed token with
	// someone else's face fails here, as does the reverse.
	if match.TokenID != tokenID {
		return p.outcome(Result{Status: StatusIdentityMismatch, Subject: subject, Message: "ID & face mismatch"}), nil
	}

	out, err := p.sheets.MarkPresent(ctx, subject, ledger.DayKey(now), tokenID, now)
	if errors.Is(err, ledger.ErrUnknownToken) {
		return p.outcome(Result{Status: StatusNotRegistered, Subject: subject, Message: "Student unknown"}), nil
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Subject:  subject,
		Roll:     st.Roll,
		Name:     st.Name,
		Email:    st.Email,
		MarkedAt: &out.MarkedAt,
	}
	if !out.Newly {
		res.Status = StatusAlreadyPresent
		res.Message = "Already present"
		return p.outcome(res), nil
	}

	res.Status = StatusMarked
	res.Message = fmt.Sprintf("%s Marked Present", st.Name)
	if p.mailer != nil {
		msg := notify.AttendanceMail(st.Email, sess.Subject.Name, st.Name)
		if err := p.mailer.Send(ctx, msg); err != nil {
			log.Printf("verify: attendance mail enqueue failed for %s: %v", tokenID, err)
		}
	}
	return p.outcome(res), nil
}

// CaptureFace validates and stores the face for a not-yet-registered token.
// Token availability is checked before the face is touched, so a duplicate
// token can never leave an orphaned face record behind.
func (p *Pipeline) CaptureFace(ctx context.Context, tokenID string, image []byte) error {
	sess, ok := p.cal.Active(p.now())
	if !ok {
		return ErrSessionClosed
	}
	st, err := p.registry.Lookup(ctx, sess.Subject.Key, tokenID)
	if err != nil {
		return err
	}
	if st != nil {
		return ErrTokenTaken
	}
	return p.faces.EnrollFace(ctx, sess.Subject.Key, tokenID, image)
}

// RegisterStudent completes the registration saga: enroll in the registry,
// append to an already-open day sheet, and queue the confirmation mail.
// If the registry insert fails for an infrastructure reason, the face record
// captured in the first step is removed as compensation. A lost duplicate
// race is not compensated; the surviving registration owns the face.
func (p *Pipeline) RegisterStudent(ctx context.Context, tokenID, roll, name, email string) (roster.Student, error) {
	now := p.now()
	sess, ok := p.cal.Active(now)
	if !ok {
		return roster.Student{}, ErrSessionClosed
	}
	subject := sess.Subject.Key

	st := roster.Student{TokenID: tokenID, Roll: roll, Name: name, Email: email, CreatedAt: now}
	if err := p.registry.Enroll(ctx, subject, st); err != nil {
		if errors.Is(err, roster.ErrAlreadyEnrolled) {
			return roster.Student{}, ErrTokenTaken
		}
		if rmErr := p.faces.Remove(ctx, subject, tokenID); rmErr != nil {
			log.Printf("verify: face compensation failed for %s/%s: %v", subject, tokenID, rmErr)
		}
		return roster.Student{}, err
	}

	if err := p.sheets.AppendEnrollment(ctx, subject, ledger.DayKey(now), st); err != nil {
		log.Printf("verify: day sheet append failed for %s/%s: %v", subject, tokenID, err)
	}

	metrics.RegistrationsTotal.Inc()
	if p.mailer != nil {
		msg := notify.RegistrationMail(email, sess.Subject.Name, name)
		if err := p.mailer.Send(ctx, msg); err != nil {
			log.Printf("verify: registration mail enqueue failed for %s: %v", tokenID, err)
		}
	}
	return st, nil
}

func (p *Pipeline) outcome(res Result) Result {
	metrics.VerificationsTotal.WithLabelValues(string(res.Status)).Inc()
	return res
}
