package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cyberpolicy/cracklab/internal/cracks/model"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// firstSuccessCondition rejects the put when a row for (pk, sk) already exists.
const firstSuccessCondition = "attribute_not_exists(pk) AND attribute_not_exists(sk)"

// challengeItem is the row layout of the challenges table.
type challengeItem struct {
	ChallengeID  string `dynamodbav:"challenge_id"`
	StudentID    string `dynamodbav:"student_id"`
	AssignmentID string `dynamodbav:"assignment_id"`
	Salt         string `dynamodbav:"salt"`
	Hash         string `dynamodbav:"hash"`
	CreatedAt    string `dynamodbav:"created_at,omitempty"`
}

type challengeKey struct {
	ChallengeID string `dynamodbav:"challenge_id"`
}

// submissionItem is the row layout of the submissions table.
type submissionItem struct {
	PK           string `dynamodbav:"pk"`
	SK           string `dynamodbav:"sk"`
	StudentID    string `dynamodbav:"student_id"`
	AssignmentID string `dynamodbav:"assignment_id"`
	AcceptedAt   string `dynamodbav:"accepted_at"`
	ReceiptID    string `dynamodbav:"receipt_id"`
	FirstSuccess bool   `dynamodbav:"first_success"`
}

type submissionKey struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
}

// DynamoStore reads challenges from and records submissions to DynamoDB.
//
// Submission rows are keyed pk = "<student>#<assignment>", sk = "success".
// That key is only unambiguous when neither id contains the separator, so
// such ids are refused with ErrInvalidPair.
type DynamoStore struct {
	client           DynamoAPI
	challengesTable  string
	submissionsTable string
}

// NewDynamoStore creates a DynamoStore over the two named tables.
func NewDynamoStore(client DynamoAPI, challengesTable, submissionsTable string) *DynamoStore {
	return &DynamoStore{
		client:           client,
		challengesTable:  challengesTable,
		submissionsTable: submissionsTable,
	}
}

// GetChallenge implements ChallengeStore.
func (s *DynamoStore) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	key, err := attributevalue.MarshalMap(challengeKey{ChallengeID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal challenge key: %w", err)
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.challengesTable),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrChallengeNotFound
	}

	var item challengeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode challenge %s: %w", id, err)
	}
	ch := &model.Challenge{
		ID:             id,
		StudentID:      item.StudentID,
		AssignmentID:   item.AssignmentID,
		Salt:           item.Salt,
		ExpectedDigest: item.Hash,
	}
	// Older rows carry no created_at.
	if t, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
		ch.CreatedAt = t
	}
	return ch, nil
}

// CreateChallenge implements ChallengeStore.
func (s *DynamoStore) CreateChallenge(ctx context.Context, ch *model.Challenge) error {
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	item, err := attributevalue.MarshalMap(challengeItem{
		ChallengeID:  ch.ID,
		StudentID:    ch.StudentID,
		AssignmentID: ch.AssignmentID,
		Salt:         ch.Salt,
		Hash:         ch.ExpectedDigest,
		CreatedAt:    ch.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.challengesTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(challenge_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrChallengeExists
		}
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

// InsertFirstSuccess implements SubmissionStore.
func (s *DynamoStore) InsertFirstSuccess(ctx context.Context, rec *model.SubmissionRecord) (bool, error) {
	if !model.ValidPairID(rec.StudentID) || !model.ValidPairID(rec.AssignmentID) {
		return false, ErrInvalidPair
	}
	item, err := attributevalue.MarshalMap(submissionItem{
		PK:           model.PairKey(rec.StudentID, rec.AssignmentID),
		SK:           model.SuccessMarker,
		StudentID:    rec.StudentID,
		AssignmentID: rec.AssignmentID,
		AcceptedAt:   rec.AcceptedAt.UTC().Format(time.RFC3339),
		ReceiptID:    rec.ReceiptID,
		FirstSuccess: rec.FirstSuccess,
	})
	if err != nil {
		return false, fmt.Errorf("marshal submission: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.submissionsTable),
		Item:                item,
		ConditionExpression: aws.String(firstSuccessCondition),
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put submission: %w", err)
	}
	return true, nil
}

// GetSuccess implements SubmissionStore. The read is strongly consistent so
// a caller that just lost the conditional put sees the winning row.
func (s *DynamoStore) GetSuccess(ctx context.Context, studentID, assignmentID string) (*model.SubmissionRecord, error) {
	if !model.ValidPairID(studentID) || !model.ValidPairID(assignmentID) {
		return nil, ErrInvalidPair
	}
	key, err := attributevalue.MarshalMap(submissionKey{
		PK: model.PairKey(studentID, assignmentID),
		SK: model.SuccessMarker,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal submission key: %w", err)
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.submissionsTable),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrSubmissionNotFound
	}

	var item submissionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	acceptedAt, err := time.Parse(time.RFC3339, item.AcceptedAt)
	if err != nil {
		return nil, fmt.Errorf("decode accepted_at: %w", err)
	}
	return &model.SubmissionRecord{
		StudentID:    studentID,
		AssignmentID: assignmentID,
		AcceptedAt:   acceptedAt.UTC(),
		ReceiptID:    item.ReceiptID,
		FirstSuccess: item.FirstSuccess,
	}, nil
}

// Ping implements Pinger by describing the submissions table.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.submissionsTable),
	})
	return err
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
