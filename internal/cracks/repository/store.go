// Package repository holds the Challenge Store and Submission Store backends.
//
// Four implementations are provided for each store:
//   - Memory: in-process maps, for tests and single-process development.
//   - Postgres: durable, relies on a primary-key conflict for the conditional write.
//   - Redis: relies on SET NX for the conditional write.
//   - DynamoDB: the serverless deployment, relies on a ConditionExpression.
package repository

import (
	"context"
	"errors"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
)

var (
	// ErrChallengeNotFound is returned when no challenge exists for an id.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeExists is returned by CreateChallenge when the id is taken.
	ErrChallengeExists = errors.New("challenge already exists")

	// ErrSubmissionNotFound is returned when a pair has no success row.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrInvalidPair is returned by backends whose key layout cannot
	// represent a student or assignment id containing model.PairSeparator.
	ErrInvalidPair = errors.New("student or assignment id contains the pair separator")
)

// ChallengeStore is the read side used by the submission path plus the
// provisioning write used by the admin API and seed tool.
type ChallengeStore interface {
	GetChallenge(ctx context.Context, id string) (*model.Challenge, error)
	CreateChallenge(ctx context.Context, ch *model.Challenge) error
}

// SubmissionStore records first successes.
//
// InsertFirstSuccess must be a single atomic insert-if-absent keyed by
// (StudentID, AssignmentID). It returns true when this call wrote the row and
// false when a row already existed; any other failure is returned as an error.
type SubmissionStore interface {
	InsertFirstSuccess(ctx context.Context, rec *model.SubmissionRecord) (bool, error)
	GetSuccess(ctx context.Context, studentID, assignmentID string) (*model.SubmissionRecord, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
