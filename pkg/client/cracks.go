package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// SubmitResult is the outcome of a candidate submission. Correct is false
// for a wrong answer, which is not an error.
type SubmitResult struct {
	Correct      bool      `json:"ok"`
	Message      string    `json:"message,omitempty"`
	AcceptedAt   time.Time `json:"accepted_at"`
	FirstSuccess bool      `json:"first_success"`
	ReceiptID    string    `json:"receipt_id"`
}

// Submission is a stored first-success record.
type Submission struct {
	StudentID    string    `json:"student_id"`
	AssignmentID string    `json:"assignment_id"`
	AcceptedAt   time.Time `json:"accepted_at"`
	ReceiptID    string    `json:"receipt_id"`
	FirstSuccess bool      `json:"first_success"`
}

// CreateChallengeRequest is the payload for CreateChallenge. ChallengeID is
// optional; the server generates one when empty.
type CreateChallengeRequest struct {
	ChallengeID  string `json:"challenge_id,omitempty"`
	StudentID    string `json:"student_id"`
	AssignmentID string `json:"assignment_id"`
	Answer       string `json:"answer"`
}

// Challenge is the public view of a provisioned challenge.
type Challenge struct {
	ChallengeID  string    `json:"challenge_id"`
	StudentID    string    `json:"student_id"`
	AssignmentID string    `json:"assignment_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Submit sends a candidate answer for a challenge.
//
//	res, err := c.Submit(ctx, "c1", "hunter2")
//	if err == nil && res.Correct {
//	    fmt.Println("receipt:", res.ReceiptID)
//	}
func (c *Client) Submit(ctx context.Context, challengeID, candidate string) (*SubmitResult, error) {
	status, body, err := c.send(ctx, http.MethodPost, "/api/v1/cracks/submit", "", map[string]string{
		"challenge_id": challengeID,
		"candidate":    candidate,
	})
	if err != nil {
		return nil, err
	}
	var res SubmitResult
	if err := decodeOK(status, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateChallenge provisions a challenge. Requires admin credentials.
func (c *Client) CreateChallenge(ctx context.Context, req CreateChallengeRequest) (*Challenge, error) {
	var ch Challenge
	if err := c.admin(ctx, http.MethodPost, "/api/v1/admin/challenges", req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetSubmission returns the stored success for a pair. Requires admin
// credentials. A pair that has not been solved yields an error for which
// IsNotFound is true.
func (c *Client) GetSubmission(ctx context.Context, studentID, assignmentID string) (*Submission, error) {
	q := url.Values{"student_id": {studentID}, "assignment_id": {assignmentID}}
	var resp struct {
		Submission Submission `json:"submission"`
	}
	if err := c.admin(ctx, http.MethodGet, "/api/v1/admin/submissions?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Submission, nil
}
