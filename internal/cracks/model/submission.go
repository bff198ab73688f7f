package model

import (
	"strings"
	"time"
)

// SuccessMarker is the fixed secondary key of the single success row per pair.
const SuccessMarker = "success"

// PairSeparator joins student and assignment ids in PairKey. Ids containing
// it are rejected at provisioning time.
const PairSeparator = "#"

// SubmissionRecord is the first accepted answer for a (student, assignment) pair.
// At most one exists per pair and it is never modified once written.
type SubmissionRecord struct {
	StudentID    string    `json:"student_id"`
	AssignmentID string    `json:"assignment_id"`
	AcceptedAt   time.Time `json:"accepted_at"`
	ReceiptID    string    `json:"receipt_id"`
	FirstSuccess bool      `json:"first_success"`
}

// ValidPairID reports whether id can be one half of a pair: non-empty and
// free of PairSeparator, so PairKey stays injective.
func ValidPairID(id string) bool {
	return id != "" && !strings.Contains(id, PairSeparator)
}

// PairKey returns the composite partition key used by the DynamoDB backend.
// Both ids must satisfy ValidPairID.
func PairKey(studentID, assignmentID string) string {
	return studentID + PairSeparator + assignmentID
}
