// Package audit signs audit records so that tampering can be detected later.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventSigner computes HMAC-SHA256 signatures over audit records.
type EventSigner struct {
	secretKey []byte
}

func NewEventSigner(secretKey string) *EventSigner {
	return &EventSigner{
		secretKey: []byte(secretKey),
	}
}

// Sign returns the hex signature of an event. The timestamp is normalised to
// UTC so that records round-tripped through a database still verify.
func (s *EventSigner) Sign(eventID string, timestamp time.Time, sourceIP string, data []byte) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(eventID))
	h.Write([]byte{0})
	h.Write([]byte(timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write([]byte(sourceIP))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *EventSigner) Verify(eventID string, timestamp time.Time, sourceIP string, data []byte, signature string) bool {
	expected := s.Sign(eventID, timestamp, sourceIP, data)
	return hmac.Equal([]byte(expected), []byte(signature))
}
