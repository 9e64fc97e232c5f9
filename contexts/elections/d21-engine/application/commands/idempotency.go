package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	application "d21vote/contexts/elections/d21-engine/application"
	"d21vote/contexts/elections/d21-engine/ports"
)

// claimKey reserves key for requestHash before any state is touched. It
// returns the stored result id when the same request already completed.
// Keys are optional, and a nil store disables replay entirely.
func (uc ElectionUseCase) claimKey(
	ctx context.Context,
	key string,
	requestHash string,
	now time.Time,
) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || uc.Idempotency == nil {
		return "", false, nil
	}
	record, replay, err := uc.Idempotency.Claim(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}, now)
	if err != nil || !replay {
		return "", false, err
	}
	return record.ResultID, true, nil
}

// releaseKey drops a claim whose unit of work failed, so a retry with the
// same key runs again.
func (uc ElectionUseCase) releaseKey(ctx context.Context, key string, requestHash string) {
	key = strings.TrimSpace(key)
	if key == "" || uc.Idempotency == nil {
		return
	}
	if err := uc.Idempotency.Release(ctx, key, requestHash); err != nil {
		application.ResolveLogger(uc.Logger).Error("idempotency claim release failed",
			"event", "election_idempotency_release_failed",
			"module", "elections/d21-engine",
			"layer", "application",
			"idempotency_key", key,
			"error", err.Error(),
		)
	}
}

// rememberResult completes a claim once the unit of work committed. A failure
// here only costs the replay; the committed state stands.
func (uc ElectionUseCase) rememberResult(
	ctx context.Context,
	key string,
	requestHash string,
	resultID string,
	now time.Time,
) {
	key = strings.TrimSpace(key)
	if key == "" || uc.Idempotency == nil {
		return
	}
	err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		ResultID:    resultID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	})
	if err != nil {
		application.ResolveLogger(uc.Logger).Error("idempotency result store failed",
			"event", "election_idempotency_store_failed",
			"module", "elections/d21-engine",
			"layer", "application",
			"idempotency_key", key,
			"result_id", resultID,
			"error", err.Error(),
		)
	}
}

func (uc ElectionUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func hashCommand(op string, fields map[string]any) string {
	payload := map[string]any{"op": op}
	for key, value := range fields {
		payload[key] = value
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
