package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
	"github.com/cyberpolicy/cracklab/internal/cracks/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaltSize is the number of random salt bytes generated per challenge.
const SaltSize = 16

var (
	// ErrInvalidChallenge wraps provisioning input problems.
	ErrInvalidChallenge = errors.New("invalid challenge")
	// ErrChallengeExists is returned when the requested id is already taken.
	ErrChallengeExists = errors.New("challenge already exists")
)

// challengeWriter is the provisioning half of the Challenge Store.
type challengeWriter interface {
	CreateChallenge(ctx context.Context, ch *model.Challenge) error
}

// ProvisionRequest describes a challenge to create. ID is optional.
type ProvisionRequest struct {
	ID           string
	StudentID    string
	AssignmentID string
	Answer       string
}

// ProvisionService creates challenges: it draws a salt and stores the
// salted digest of the answer. The answer itself is never persisted.
type ProvisionService struct {
	store  challengeWriter
	logger *zap.Logger
}

// NewProvisionService creates a ProvisionService.
func NewProvisionService(store challengeWriter, logger *zap.Logger) *ProvisionService {
	return &ProvisionService{store: store, logger: logger}
}

// CreateChallenge validates req and persists the new challenge.
func (s *ProvisionService) CreateChallenge(ctx context.Context, req ProvisionRequest) (*model.Challenge, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}
	studentID := strings.TrimSpace(req.StudentID)
	assignmentID := strings.TrimSpace(req.AssignmentID)
	if studentID == "" || assignmentID == "" {
		return nil, fmt.Errorf("%w: student_id and assignment_id are required", ErrInvalidChallenge)
	}
	if !model.ValidPairID(studentID) || !model.ValidPairID(assignmentID) {
		return nil, fmt.Errorf("%w: student_id and assignment_id must not contain %q", ErrInvalidChallenge, model.PairSeparator)
	}
	if req.Answer == "" {
		return nil, fmt.Errorf("%w: answer is required", ErrInvalidChallenge)
	}
	if utf8.RuneCountInString(req.Answer) > MaxCandidateLength {
		return nil, fmt.Errorf("%w: answer longer than %d characters", ErrInvalidChallenge, MaxCandidateLength)
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	ch := &model.Challenge{
		ID:             id,
		StudentID:      studentID,
		AssignmentID:   assignmentID,
		Salt:           hex.EncodeToString(salt),
		ExpectedDigest: Digest(salt, req.Answer),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateChallenge(ctx, ch); err != nil {
		if errors.Is(err, repository.ErrChallengeExists) {
			return nil, ErrChallengeExists
		}
		return nil, fmt.Errorf("persist challenge: %w", err)
	}

	s.logger.Info("challenge provisioned",
		zap.String("challenge_id", ch.ID),
		zap.String("student_id", ch.StudentID),
		zap.String("assignment_id", ch.AssignmentID),
	)
	return ch, nil
}
