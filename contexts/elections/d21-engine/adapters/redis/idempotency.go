package redisadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/ports"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "d21:idempotency:"

// IdempotencyStore keeps Idempotency-Key claims and results in redis so
// replays are recognised by every API replica. Expiry is left to the key TTL.
type IdempotencyStore struct {
	client redis.Cmdable
	logger *slog.Logger
}

func NewIdempotencyStore(client redis.Cmdable, logger *slog.Logger) *IdempotencyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyStore{client: client, logger: logger}
}

type storedRecord struct {
	RequestHash string    `json:"request_hash"`
	ResultID    string    `json:"result_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claim reserves the key with SETNX. A key that vanished between SETNX and
// GET, or that outlived its logical expiry, is claimed again once.
func (s *IdempotencyStore) Claim(ctx context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	key := strings.TrimSpace(record.Key)
	record.ResultID = ""
	raw, err := encodeRecord(record)
	if err != nil {
		return ports.IdempotencyRecord{}, false, err
	}
	ttl := record.ExpiresAt.Sub(now)
	if ttl <= 0 {
		ttl = time.Second
	}

	for attempt := 0; attempt < 2; attempt++ {
		stored, err := s.client.SetNX(ctx, keyPrefix+key, raw, ttl).Result()
		if err != nil {
			return ports.IdempotencyRecord{}, false, s.logError("election_idempotency_claim_failed", err, "idempotency_key", key)
		}
		if stored {
			return ports.IdempotencyRecord{}, false, nil
		}

		existing, found, err := s.load(ctx, key)
		if err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		if !found {
			continue
		}
		if !existing.ExpiresAt.After(now.UTC()) {
			if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
				return ports.IdempotencyRecord{}, false, s.logError("election_idempotency_expire_delete_failed", err, "idempotency_key", key)
			}
			continue
		}
		replay, err := claimOutcome(existing, record.RequestHash)
		return existing, replay, err
	}
	return ports.IdempotencyRecord{}, false, domainerrors.ErrIdempotencyInFlight
}

// Put completes a claim. It refuses to overwrite a record held by another
// request or already completed with a different result.
func (s *IdempotencyStore) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	key := strings.TrimSpace(record.Key)
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	existing, found, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if found {
		if existing.RequestHash != strings.TrimSpace(record.RequestHash) {
			return domainerrors.ErrIdempotencyConflict
		}
		if existing.ResultID != "" && existing.ResultID != strings.TrimSpace(record.ResultID) {
			return domainerrors.ErrIdempotencyConflict
		}
	}
	raw, err := encodeRecord(record)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return s.logError("election_idempotency_put_failed", err, "idempotency_key", key)
	}
	return nil
}

// Release deletes the key only while it is still this request's pending
// claim.
func (s *IdempotencyStore) Release(ctx context.Context, key string, requestHash string) error {
	key = strings.TrimSpace(key)
	existing, found, err := s.load(ctx, key)
	if err != nil || !found {
		return err
	}
	if existing.ResultID != "" || existing.RequestHash != strings.TrimSpace(requestHash) {
		return nil
	}
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return s.logError("election_idempotency_release_failed", err, "idempotency_key", key)
	}
	return nil
}

func (s *IdempotencyStore) load(ctx context.Context, key string) (ports.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, s.logError("election_idempotency_get_failed", err, "idempotency_key", key)
	}
	record, err := decodeRecord(key, raw)
	if err != nil {
		return ports.IdempotencyRecord{}, false, s.logError("election_idempotency_decode_failed", err, "idempotency_key", key)
	}
	return record, true, nil
}

// claimOutcome decides what a live record means for a new claim.
func claimOutcome(existing ports.IdempotencyRecord, requestHash string) (bool, error) {
	switch {
	case existing.RequestHash != strings.TrimSpace(requestHash):
		return false, domainerrors.ErrIdempotencyConflict
	case existing.ResultID == "":
		return false, domainerrors.ErrIdempotencyInFlight
	default:
		return true, nil
	}
}

func encodeRecord(record ports.IdempotencyRecord) ([]byte, error) {
	return json.Marshal(storedRecord{
		RequestHash: strings.TrimSpace(record.RequestHash),
		ResultID:    strings.TrimSpace(record.ResultID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	})
}

func decodeRecord(key string, raw []byte) (ports.IdempotencyRecord, error) {
	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return ports.IdempotencyRecord{}, err
	}
	return ports.IdempotencyRecord{
		Key:         key,
		RequestHash: stored.RequestHash,
		ResultID:    stored.ResultID,
		ExpiresAt:   stored.ExpiresAt.UTC(),
	}, nil
}

func (s *IdempotencyStore) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "elections/d21-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("election idempotency store operation failed", fields...)
	return err
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)
