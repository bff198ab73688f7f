// Package decrypt records "decrypted it" reports. A student who decrypts a
// GPG-encrypted lab message follows the link embedded in the plaintext,
// which carries a per-student guid; each visit appends one report.
package decrypt

import "time"

// Report is one visit to the decrypt link. Reports are append-only; a guid
// can be reported any number of times.
type Report struct {
	GUID       string    `json:"guid"`
	ReceivedAt time.Time `json:"received_at"`
	SourceIP   string    `json:"source_ip,omitempty"`
	// Email is the student the guid was attributed to, when the store
	// carries it. A roster passed to Tally takes precedence.
	Email string `json:"email,omitempty"`
}
