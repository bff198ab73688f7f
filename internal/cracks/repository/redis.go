package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by RedisStore.
const DefaultKeyPrefix = "cracklab"

// RedisStore keeps challenges as hashes and submissions as JSON strings.
// Submissions are written with SET NX, which is the conditional write.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix selects DefaultKeyPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) challengeKey(id string) string {
	return s.prefix + ":challenge:" + id
}

// submissionKey length-prefixes the student id so that no two pairs share a
// key, whatever characters the ids contain.
func (s *RedisStore) submissionKey(studentID, assignmentID string) string {
	return s.prefix + ":submission:" + strconv.Itoa(len(studentID)) + ":" +
		studentID + model.PairSeparator + assignmentID + ":" + model.SuccessMarker
}

// GetChallenge implements ChallengeStore.
func (s *RedisStore) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	fields, err := s.client.HGetAll(ctx, s.challengeKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrChallengeNotFound
	}
	ch := &model.Challenge{
		ID:             id,
		StudentID:      fields["student_id"],
		AssignmentID:   fields["assignment_id"],
		Salt:           fields["salt"],
		ExpectedDigest: fields["hash"],
	}
	if ts := fields["created_at"]; ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			ch.CreatedAt = t
		}
	}
	return ch, nil
}

// createChallengeScript writes every field of a challenge hash only when the
// key does not exist yet, so readers never observe a partial challenge.
var createChallengeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// CreateChallenge implements ChallengeStore.
func (s *RedisStore) CreateChallenge(ctx context.Context, ch *model.Challenge) error {
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	created, err := createChallengeScript.Run(ctx, s.client, []string{s.challengeKey(ch.ID)},
		"challenge_id", ch.ID,
		"student_id", ch.StudentID,
		"assignment_id", ch.AssignmentID,
		"salt", ch.Salt,
		"hash", ch.ExpectedDigest,
		"created_at", ch.CreatedAt.UTC().Format(time.RFC3339),
	).Int()
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	if created == 0 {
		return ErrChallengeExists
	}
	return nil
}

// InsertFirstSuccess implements SubmissionStore.
func (s *RedisStore) InsertFirstSuccess(ctx context.Context, rec *model.SubmissionRecord) (bool, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal submission: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.submissionKey(rec.StudentID, rec.AssignmentID), raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	return ok, nil
}

// GetSuccess implements SubmissionStore.
func (s *RedisStore) GetSuccess(ctx context.Context, studentID, assignmentID string) (*model.SubmissionRecord, error) {
	raw, err := s.client.Get(ctx, s.submissionKey(studentID, assignmentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	rec := &model.SubmissionRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	return rec, nil
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
