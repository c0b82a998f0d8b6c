package audit

import (
	"testing"
	"time"
)

func TestEventSigner_Sign(t *testing.T) {
	signer := NewEventSigner("test-secret")
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	data := []byte(`{"asset_id":7}`)

	signature := signer.Sign("impression-123", timestamp, "192.168.1.100", data)
	if len(signature) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(signature))
	}
	if signature != signer.Sign("impression-123", timestamp, "192.168.1.100", data) {
		t.Error("expected deterministic signatures for same input")
	}
	if signature == signer.Sign("impression-124", timestamp, "192.168.1.100", data) {
		t.Error("expected different signatures for different event IDs")
	}
}

func TestEventSigner_FieldBoundaries(t *testing.T) {
	signer := NewEventSigner("test-secret")
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	a := signer.Sign("ab", ts, "c", nil)
	b := signer.Sign("a", ts, "bc", nil)
	if a == b {
		t.Error("shifting bytes between fields must change the signature")
	}
}

func TestEventSigner_TimezoneIndependent(t *testing.T) {
	signer := NewEventSigner("test-secret")
	utc := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("CET", 3600))

	sig := signer.Sign("view-1", utc, "10.0.0.1", []byte("x"))
	if !signer.Verify("view-1", local, "10.0.0.1", []byte("x"), sig) {
		t.Error("same instant in another zone should verify")
	}
}

func TestEventSigner_Verify(t *testing.T) {
	signer := NewEventSigner("test-secret")
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	eventID := "view-456"
	sourceIP := "10.0.0.1"
	data := []byte(`{"asset_id":7,"user_id":"u-1"}`)

	signature := signer.Sign(eventID, timestamp, sourceIP, data)

	tests := []struct {
		name      string
		eventID   string
		timestamp time.Time
		sourceIP  string
		data      []byte
		wantValid bool
	}{
		{name: "valid signature", eventID: eventID, timestamp: timestamp, sourceIP: sourceIP, data: data, wantValid: true},
		{name: "wrong event ID", eventID: "wrong", timestamp: timestamp, sourceIP: sourceIP, data: data},
		{name: "wrong timestamp", eventID: eventID, timestamp: timestamp.Add(time.Hour), sourceIP: sourceIP, data: data},
		{name: "wrong source IP", eventID: eventID, timestamp: timestamp, sourceIP: "192.168.1.1", data: data},
		{name: "tampered data", eventID: eventID, timestamp: timestamp, sourceIP: sourceIP, data: []byte(`{"asset_id":8}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signer.Verify(tt.eventID, tt.timestamp, tt.sourceIP, tt.data, signature); got != tt.wantValid {
				t.Errorf("Verify() = %v, want %v", got, tt.wantValid)
			}
		})
	}
}

func TestEventSigner_DifferentSecrets(t *testing.T) {
	signer1 := NewEventSigner("secret-1")
	signer2 := NewEventSigner("secret-2")
	ts := time.Now()

	sig := signer1.Sign("event-abc", ts, "10.0.0.10", []byte("d"))
	if signer2.Verify("event-abc", ts, "10.0.0.10", []byte("d"), sig) {
		t.Error("expected verification to fail with a different secret key")
	}
}
