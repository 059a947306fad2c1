package roster

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyEnrolled is returned when a token id is already registered for
// the subject. Token ids are immutable once created.
var ErrAlreadyEnrolled = errors.New("token already enrolled")

// Student is one enrolled person within a subject, keyed by the token id of
// their physical credential.
type Student struct {
	TokenID   string    `json:"token_id"`
	Roll      string    `json:"roll"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the authoritative registry of enrolled students. All reads go
// through it; nothing else holds student identity.
type Store interface {
	// Enroll adds a student; fails with ErrAlreadyEnrolled on a duplicate
	// token id within the subject.
	Enroll(ctx context.Context, subject string, st Student) error
	// Lookup returns the student for a token id, or nil when unknown.
	Lookup(ctx context.Context, subject, tokenID string) (*Student, error)
	// List returns the subject's students in enrollment order.
	List(ctx context.Context, subject string) ([]Student, error)
}
