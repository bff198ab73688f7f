package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists challenges and submissions in PostgreSQL.
// The submissions primary key (student_id, assignment_id, marker) is what
// makes InsertFirstSuccess atomic.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetChallenge implements ChallengeStore.
func (s *PostgresStore) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	ch := &model.Challenge{}
	err := s.db.QueryRow(ctx,
		`SELECT challenge_id, student_id, assignment_id, salt, expected_digest, created_at
		 FROM challenges WHERE challenge_id = $1`, id,
	).Scan(&ch.ID, &ch.StudentID, &ch.AssignmentID, &ch.Salt, &ch.ExpectedDigest, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return ch, nil
}

// CreateChallenge implements ChallengeStore.
func (s *PostgresStore) CreateChallenge(ctx context.Context, ch *model.Challenge) error {
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO challenges (challenge_id, student_id, assignment_id, salt, expected_digest, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ch.ID, ch.StudentID, ch.AssignmentID, ch.Salt, ch.ExpectedDigest, ch.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrChallengeExists
		}
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

// InsertFirstSuccess implements SubmissionStore.
func (s *PostgresStore) InsertFirstSuccess(ctx context.Context, rec *model.SubmissionRecord) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO submissions (student_id, assignment_id, marker, accepted_at, receipt_id, first_success)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (student_id, assignment_id, marker) DO NOTHING`,
		rec.StudentID, rec.AssignmentID, model.SuccessMarker, rec.AcceptedAt, rec.ReceiptID, rec.FirstSuccess,
	)
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetSuccess implements SubmissionStore.
func (s *PostgresStore) GetSuccess(ctx context.Context, studentID, assignmentID string) (*model.SubmissionRecord, error) {
	rec := &model.SubmissionRecord{}
	err := s.db.QueryRow(ctx,
		`SELECT student_id, assignment_id, accepted_at, receipt_id, first_success
		 FROM submissions WHERE student_id = $1 AND assignment_id = $2 AND marker = $3`,
		studentID, assignmentID, model.SuccessMarker,
	).Scan(&rec.StudentID, &rec.AssignmentID, &rec.AcceptedAt, &rec.ReceiptID, &rec.FirstSuccess)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	rec.AcceptedAt = rec.AcceptedAt.UTC()
	return rec, nil
}

// Ping implements Pinger.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
