package redisadapter

import (
	"errors"
	"testing"
	"time"

	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/ports"
)

func TestRecordEncodingKeepsFields(t *testing.T) {
	expiresAt := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	raw, err := encodeRecord(ports.IdempotencyRecord{
		Key:         "idem-1",
		RequestHash: " hash-1 ",
		ResultID:    "candidate:3",
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	record, err := decodeRecord("idem-1", raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if record.Key != "idem-1" || record.RequestHash != "hash-1" || record.ResultID != "candidate:3" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if !record.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expected expires_at %v, got %v", expiresAt, record.ExpiresAt)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := decodeRecord("idem-1", []byte("not-json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestClaimOutcome(t *testing.T) {
	cases := []struct {
		name       string
		existing   ports.IdempotencyRecord
		hash       string
		wantReplay bool
		wantErr    error
	}{
		{name: "completed same request", existing: ports.IdempotencyRecord{RequestHash: "h1", ResultID: "r1"}, hash: "h1", wantReplay: true},
		{name: "pending same request", existing: ports.IdempotencyRecord{RequestHash: "h1"}, hash: "h1", wantErr: domainerrors.ErrIdempotencyInFlight},
		{name: "pending other request", existing: ports.IdempotencyRecord{RequestHash: "h1"}, hash: "h2", wantErr: domainerrors.ErrIdempotencyConflict},
		{name: "completed other request", existing: ports.IdempotencyRecord{RequestHash: "h1", ResultID: "r1"}, hash: "h2", wantErr: domainerrors.ErrIdempotencyConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			replay, err := claimOutcome(tc.existing, tc.hash)
			if replay != tc.wantReplay {
				t.Fatalf("expected replay=%v, got %v", tc.wantReplay, replay)
			}
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}
