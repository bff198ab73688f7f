package model

import "time"

// Challenge is one decryption puzzle assigned to one student for one assignment.
// Salt and ExpectedDigest are written once at provisioning time and only read afterwards.
type Challenge struct {
	ID             string    `json:"challenge_id"`
	StudentID      string    `json:"student_id"`
	AssignmentID   string    `json:"assignment_id"`
	Salt           string    `json:"-"` // hex-encoded
	ExpectedDigest string    `json:"-"` // hex SHA-256 of salt || answer
	CreatedAt      time.Time `json:"created_at"`
}
