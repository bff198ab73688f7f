package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
	"github.com/cyberpolicy/cracklab/internal/cracks/repository"
	"go.uber.org/zap"
)

// MaxCandidateLength is the longest accepted candidate, in characters.
const MaxCandidateLength = 256

// Sentinel errors for the submission path. Any other error returned by
// SubmitService is an infrastructure fault and may be retried.
var (
	ErrMissingField           = errors.New("missing challenge_id or candidate")
	ErrCandidateTooLong       = errors.New("candidate too long")
	ErrChallengeNotFound      = errors.New("challenge not found")
	ErrChallengeMisconfigured = errors.New("challenge misconfigured")
	ErrSubmissionNotFound     = errors.New("submission not found")
)

// Verdict is the non-error result of checking a candidate.
type Verdict int

const (
	// VerdictIncorrect means the candidate did not match. It is an expected
	// outcome of play, not an error.
	VerdictIncorrect Verdict = iota
	// VerdictAccepted means the candidate matched and a success is on record.
	VerdictAccepted
)

func (v Verdict) String() string {
	if v == VerdictAccepted {
		return "accepted"
	}
	return "incorrect"
}

// Outcome is returned by Submit when no error occurred.
type Outcome struct {
	Verdict Verdict
	// FirstSuccess is true only for the call that moved the pair out of the
	// unsolved state.
	FirstSuccess bool
	// Record is the stored success row. Set only when Verdict is VerdictAccepted.
	Record *model.SubmissionRecord
}

// challengeReader is the part of the Challenge Store the submission path needs.
type challengeReader interface {
	GetChallenge(ctx context.Context, id string) (*model.Challenge, error)
}

// SubmitService validates candidate answers and records first successes.
// It holds no per-request state; everything durable lives in the stores.
type SubmitService struct {
	challenges  challengeReader
	submissions repository.SubmissionStore
	receipts    *ReceiptSigner
	now         func() time.Time
	logger      *zap.Logger
}

// NewSubmitService creates a SubmitService.
func NewSubmitService(challenges challengeReader, submissions repository.SubmissionStore, receipts *ReceiptSigner, logger *zap.Logger) *SubmitService {
	return &SubmitService{
		challenges:  challenges,
		submissions: submissions,
		receipts:    receipts,
		now:         time.Now,
		logger:      logger,
	}
}

// SetClock overrides the clock used for acceptance timestamps.
func (s *SubmitService) SetClock(now func() time.Time) {
	s.now = now
}

// Submit checks candidate against the challenge identified by challengeID.
//
// Input validation failures return ErrMissingField or ErrCandidateTooLong
// without touching any store. An unknown id returns ErrChallengeNotFound and
// a challenge with unusable secrets returns ErrChallengeMisconfigured.
func (s *SubmitService) Submit(ctx context.Context, challengeID, candidate string) (*Outcome, error) {
	challengeID = strings.TrimSpace(challengeID)
	if challengeID == "" || candidate == "" {
		return nil, ErrMissingField
	}
	if utf8.RuneCountInString(candidate) > MaxCandidateLength {
		return nil, ErrCandidateTooLong
	}

	ch, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("load challenge: %w", err)
	}

	salt, want, err := decodeSecret(ch.Salt, ch.ExpectedDigest)
	if err == nil && (!model.ValidPairID(ch.StudentID) || !model.ValidPairID(ch.AssignmentID)) {
		err = fmt.Errorf("owner identifiers missing or contain %q", model.PairSeparator)
	}
	if err != nil {
		s.logger.Error("challenge misconfigured",
			zap.String("challenge_id", challengeID),
			zap.Error(err),
		)
		return nil, ErrChallengeMisconfigured
	}

	got := digestOf(salt, candidate)
	if !equalDigest(got[:], want, nil) {
		return &Outcome{Verdict: VerdictIncorrect}, nil
	}

	first, rec, err := s.RecordFirstSuccess(ctx, ch.StudentID, ch.AssignmentID, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge solved",
		zap.String("challenge_id", challengeID),
		zap.String("student_id", rec.StudentID),
		zap.String("assignment_id", rec.AssignmentID),
		zap.Bool("first_success", first),
		zap.String("receipt_id", rec.ReceiptID),
	)
	return &Outcome{Verdict: VerdictAccepted, FirstSuccess: first, Record: rec}, nil
}

// RecordFirstSuccess performs the one conditional write for a pair. When the
// pair was already solved it re-reads the stored row so the caller gets the
// original receipt and acceptance time back.
func (s *SubmitService) RecordFirstSuccess(ctx context.Context, studentID, assignmentID string, acceptedAt time.Time) (bool, *model.SubmissionRecord, error) {
	acceptedAt = acceptedAt.UTC().Truncate(time.Second)
	rec := &model.SubmissionRecord{
		StudentID:    studentID,
		AssignmentID: assignmentID,
		AcceptedAt:   acceptedAt,
		ReceiptID:    s.receipts.Receipt(assignmentID, studentID, acceptedAt),
		FirstSuccess: true,
	}

	inserted, err := s.submissions.InsertFirstSuccess(ctx, rec)
	if err != nil {
		return false, nil, fmt.Errorf("record first success: %w", err)
	}
	if inserted {
		return true, rec, nil
	}

	stored, err := s.submissions.GetSuccess(ctx, studentID, assignmentID)
	if err != nil {
		// A lost conditional write followed by a missing row cannot be
		// resolved here; surface it as a store fault.
		return false, nil, fmt.Errorf("re-read existing success: %w", err)
	}
	return false, stored, nil
}

// GetSubmission returns the stored success row for a pair.
func (s *SubmitService) GetSubmission(ctx context.Context, studentID, assignmentID string) (*model.SubmissionRecord, error) {
	// No challenge can be provisioned for such a pair, so it has no success.
	if !model.ValidPairID(studentID) || !model.ValidPairID(assignmentID) {
		return nil, ErrSubmissionNotFound
	}
	rec, err := s.submissions.GetSuccess(ctx, studentID, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return rec, nil
}
