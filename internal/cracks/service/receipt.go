package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AcceptedAtLayout is the wire format of accepted_at.
const AcceptedAtLayout = "2006-01-02T15:04:05Z"

const receiptStampLayout = "20060102T150405Z"

// ReceiptSigner derives receipt ids. A receipt is
//
//	<assignment>:<student>:<YYYYMMDDTHHMMSSZ>:<tag>
//
// where tag is the first 16 hex characters of an HMAC-SHA256 over the other
// three parts. The same key and inputs always yield the same receipt.
type ReceiptSigner struct {
	key []byte
}

// NewReceiptSigner creates a ReceiptSigner with the given key.
func NewReceiptSigner(key []byte) *ReceiptSigner {
	return &ReceiptSigner{key: append([]byte(nil), key...)}
}

// NewRandomReceiptSigner creates a ReceiptSigner with a fresh 32-byte key.
func NewRandomReceiptSigner() (*ReceiptSigner, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate receipt key: %w", err)
	}
	return &ReceiptSigner{key: key}, nil
}

// Receipt returns the receipt id for a first success.
func (r *ReceiptSigner) Receipt(assignmentID, studentID string, acceptedAt time.Time) string {
	stamp := acceptedAt.UTC().Format(receiptStampLayout)
	mac := hmac.New(sha256.New, r.key)
	fmt.Fprintf(mac, "%s|%s|%s", assignmentID, studentID, stamp)
	tag := hex.EncodeToString(mac.Sum(nil))[:16]
	return assignmentID + ":" + studentID + ":" + stamp + ":" + tag
}
