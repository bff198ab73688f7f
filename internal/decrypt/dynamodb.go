package decrypt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// legacyTimeLayout is the naive local timestamp written by the first deployment.
const legacyTimeLayout = "2006-01-02T15:04:05.999999"

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// reportItem is the row layout of the reports table. Email is absent until
// an operator attributes the guid to a student.
type reportItem struct {
	GUID     string `dynamodbav:"guid"`
	SK       string `dynamodbav:"sk"`
	T        string `dynamodbav:"t,omitempty"`
	SourceIP string `dynamodbav:"sourceIp,omitempty"`
	Email    string `dynamodbav:"email,omitempty"`
}

// DynamoStore keeps reports in a table keyed by (guid, sk) where sk is the
// receive time, so repeat reports for a guid never overwrite each other.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore creates a DynamoStore over the named table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// Append implements Store.
func (s *DynamoStore) Append(ctx context.Context, r *Report) error {
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now().UTC()
	}
	ts := r.ReceivedAt.UTC().Format(time.RFC3339Nano)
	item, err := attributevalue.MarshalMap(reportItem{
		GUID:     r.GUID,
		SK:       ts,
		T:        ts,
		SourceIP: r.SourceIP,
		Email:    r.Email,
	})
	if err != nil {
		return fmt.Errorf("marshal decrypt report: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put decrypt report: %w", err)
	}
	return nil
}

// List implements Store. It follows LastEvaluatedKey until the scan is
// exhausted.
func (s *DynamoStore) List(ctx context.Context) ([]*Report, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.table)}
	var out []*Report
	for {
		page, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan decrypt reports: %w", err)
		}
		var items []reportItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("decode decrypt reports: %w", err)
		}
		for _, item := range items {
			out = append(out, item.report())
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

func (it reportItem) report() *Report {
	r := &Report{GUID: it.GUID, SourceIP: it.SourceIP, Email: it.Email}
	ts := it.T
	if ts == "" {
		ts = it.SK
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		r.ReceivedAt = t
	} else if t, err := time.Parse(legacyTimeLayout, ts); err == nil {
		r.ReceivedAt = t
	}
	return r
}
