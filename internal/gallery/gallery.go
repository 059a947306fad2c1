package gallery

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"
)

// DefaultThreshold is the recognizer tolerance: embeddings closer than this
// are considered the same face.
const DefaultThreshold = 0.5

var (
	// ErrNoFace means the image contained no detectable face.
	ErrNoFace = errors.New("no face detected")
	// ErrDuplicateFace means the face is already enrolled under another
	// token id. One face may never hold two identities.
	ErrDuplicateFace = errors.New("face already registered")
	// ErrAlreadyRegistered means the token id already has a face record.
	ErrAlreadyRegistered = errors.New("token already has a face")
	// ErrNoMatch means no enrolled face is close enough.
	ErrNoMatch = errors.New("face not recognized")
)

// Embedding is a fixed-length face descriptor.
type Embedding []float64

// Distance is the Euclidean distance between two embeddings.
func Distance(a, b Embedding) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Record is one enrolled face.
type Record struct {
	TokenID    string
	Embedding  Embedding
	EnrolledAt time.Time
}

// Match is an identification hit.
type Match struct {
	TokenID  string
	Distance float64
}

// Embedder detects and embeds the first face in an image. Empty results mean
// no face was found.
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([]float64, []byte, error)
}

// CropStore persists cropped face images for audit.
type CropStore interface {
	Save(ctx context.Context, subject, tokenID string, image []byte) error
	Delete(ctx context.Context, subject, tokenID string) error
}

// Store persists face records. List must return records in enrollment order;
// identification depends on it.
type Store interface {
	Add(ctx context.Context, subject string, rec Record) error
	Has(ctx context.Context, subject, tokenID string) (bool, error)
	List(ctx context.Context, subject string) ([]Record, error)
	Remove(ctx context.Context, subject, tokenID string) error
}

// Service is the biometric gallery. Enrollment takes the write lock so an
// identification never scans a half-written gallery; enrollments are rare
// next to verifications, so readers share.
type Service struct {
	store     Store
	embedder  Embedder
	crops     CropStore
	threshold float64

	mu sync.RWMutex
}

// NewService creates a gallery. crops may be nil to skip audit storage;
// threshold <= 0 selects DefaultThreshold.
func NewService(store Store, embedder Embedder, crops CropStore, threshold float64) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{store: store, embedder: embedder, crops: crops, threshold: threshold}
}

// EnrollFace embeds the image and stores the record for the token id.
// Fails ErrAlreadyRegistered when the token has a face, ErrNoFace when the
// image has none, and ErrDuplicateFace when any enrolled embedding is within
// the threshold.
func (s *Service) EnrollFace(ctx context.Context, subject, tokenID string, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	has, err := s.store.Has(ctx, subject, tokenID)
	if err != nil {
		return err
	}
	if has {
		return ErrAlreadyRegistered
	}

	emb, crop, err := s.embedder.Embed(ctx, image)
	if err != nil {
		return err
	}
	if len(emb) == 0 {
		return ErrNoFace
	}

	existing, err := s.store.List(ctx, subject)
	if err != nil {
		return err
	}
	for _, rec := range existing {
		if Distance(rec.Embedding, emb) < s.threshold {
			return ErrDuplicateFace
		}
	}

	if err := s.store.Add(ctx, subject, Record{TokenID: tokenID, Embedding: emb, EnrolledAt: time.Now()}); err != nil {
		return err
	}
	if s.crops != nil && len(crop) > 0 {
		if err := s.crops.Save(ctx, subject, tokenID, crop); err != nil {
			log.Printf("gallery: audit crop save failed for %s/%s: %v", subject, tokenID, err)
		}
	}
	return nil
}

// Identify embeds the image and scans the subject's records in enrollment
// order, returning the first one under the threshold. This is deliberately
// first-match, not nearest-match: with two visually similar enrollments the
// earlier one wins.
func (s *Service) Identify(ctx context.Context, subject string, image []byte) (Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emb, _, err := s.embedder.Embed(ctx, image)
	if err != nil {
		return Match{}, err
	}
	if len(emb) == 0 {
		return Match{}, ErrNoFace
	}

	records, err := s.store.List(ctx, subject)
	if err != nil {
		return Match{}, err
	}
	for _, rec := range records {
		if d := Distance(rec.Embedding, emb); d < s.threshold {
			return Match{TokenID: rec.TokenID, Distance: d}, nil
		}
	}
	return Match{}, ErrNoMatch
}

// Remove deletes a face record and its audit crop. Used to compensate when a
// registration fails after its face was captured.
func (s *Service) Remove(ctx context.Context, subject, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Remove(ctx, subject, tokenID); err != nil {
		return err
	}
	if s.crops != nil {
		if err := s.crops.Delete(ctx, subject, tokenID); err != nil {
			log.Printf("gallery: audit crop delete failed for %s/%s: %v", subject, tokenID, err)
		}
	}
	return nil
}

// Has reports whether the token id already has a face record.
func (s *Service) Has(ctx context.Context, subject, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Has(ctx, subject, tokenID)
}
