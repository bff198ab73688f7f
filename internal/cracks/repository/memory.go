package repository

import (
	"context"
	"sync"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
)

// MemoryStore is a thread-safe in-memory ChallengeStore and SubmissionStore.
type MemoryStore struct {
	mu          sync.RWMutex
	challenges  map[string]*model.Challenge
	submissions map[pairKey]*model.SubmissionRecord
}

type pairKey struct {
	student    string
	assignment string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges:  make(map[string]*model.Challenge),
		submissions: make(map[pairKey]*model.SubmissionRecord),
	}
}

// GetChallenge implements ChallengeStore.
func (s *MemoryStore) GetChallenge(_ context.Context, id string) (*model.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	cp := *ch
	return &cp, nil
}

// CreateChallenge implements ChallengeStore.
func (s *MemoryStore) CreateChallenge(_ context.Context, ch *model.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.challenges[ch.ID]; exists {
		return ErrChallengeExists
	}
	cp := *ch
	s.challenges[ch.ID] = &cp
	return nil
}

// InsertFirstSuccess implements SubmissionStore.
func (s *MemoryStore) InsertFirstSuccess(_ context.Context, rec *model.SubmissionRecord) (bool, error) {
	key := pairKey{rec.StudentID, rec.AssignmentID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[key]; exists {
		return false, nil
	}
	cp := *rec
	s.submissions[key] = &cp
	return true, nil
}

// GetSuccess implements SubmissionStore.
func (s *MemoryStore) GetSuccess(_ context.Context, studentID, assignmentID string) (*model.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.submissions[pairKey{studentID, assignmentID}]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	cp := *rec
	return &cp, nil
}

// Ping implements Pinger.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }
