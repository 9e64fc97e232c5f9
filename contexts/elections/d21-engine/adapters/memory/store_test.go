package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/ports"
)

func seedElection(t *testing.T, store *Store) entities.Election {
	t.Helper()
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	election := entities.Election{
		ElectionID: store.ElectionID("authority-1", "Board"),
		Authority:  "authority-1",
		Name:       "Board",
		StartTime:  now.Add(time.Hour),
		EndTime:    now.Add(2 * time.Hour),
		NumWinners: 1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.CreateElection(context.Background(), election); err != nil {
		t.Fatalf("create election failed: %v", err)
	}
	return election
}

func TestCreateElectionRejectsExistingID(t *testing.T) {
	store := NewStore()
	election := seedElection(t, store)

	err := store.CreateElection(context.Background(), election)
	if !errors.Is(err, domainerrors.ErrElectionExists) {
		t.Fatalf("expected ErrElectionExists, got %v", err)
	}
}

func TestWithElectionDiscardsStagedWritesOnError(t *testing.T) {
	store := NewStore()
	election := seedElection(t, store)
	failure := errors.New("abort")

	err := store.WithElection(context.Background(), election.ElectionID, func(tx ports.ElectionTx) error {
		current := tx.Election()
		if err := tx.CreateCandidate(context.Background(), entities.Candidate{CandidateID: 0, Name: "Alice"}); err != nil {
			return err
		}
		current.CandidateCount++
		if err := tx.SaveElection(context.Background(), current); err != nil {
			return err
		}
		if err := tx.AppendOutbox(context.Background(), ports.EventEnvelope{EventID: "evt-1", EventType: "election.candidate_added"}); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected abort error, got %v", err)
	}

	stored, err := store.GetElection(context.Background(), election.ElectionID)
	if err != nil {
		t.Fatalf("get election failed: %v", err)
	}
	if stored.CandidateCount != 0 {
		t.Fatalf("expected candidate_count=0 after rollback, got %d", stored.CandidateCount)
	}
	candidates, _ := store.ListCandidates(context.Background(), election.ElectionID)
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates after rollback, got %d", len(candidates))
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox after rollback, got %d", len(pending))
	}
}

func TestWithElectionCommitsCandidatesVotesAndRecords(t *testing.T) {
	store := NewStore()
	election := seedElection(t, store)
	ctx := context.Background()

	err := store.WithElection(ctx, election.ElectionID, func(tx ports.ElectionTx) error {
		for id, name := range []string{"Alice", "Bob"} {
			if err := tx.CreateCandidate(ctx, entities.Candidate{CandidateID: uint8(id), Name: name}); err != nil {
				return err
			}
		}
		if err := tx.CreateCandidate(ctx, entities.Candidate{CandidateID: 1, Name: "Bob again"}); !errors.Is(err, domainerrors.ErrConflict) {
			t.Fatalf("expected ErrConflict for taken candidate id, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add candidates failed: %v", err)
	}

	err = store.WithElection(ctx, election.ElectionID, func(tx ports.ElectionTx) error {
		if err := tx.CreateVoterRecord(ctx, entities.VoterRecord{Voter: "voter-1", HasVoted: true}); err != nil {
			return err
		}
		if err := tx.CreateVoterRecord(ctx, entities.VoterRecord{Voter: "voter-1", HasVoted: true}); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
			t.Fatalf("expected ErrAlreadyVoted for staged record, got %v", err)
		}
		if err := tx.AddCandidateVotes(ctx, 0, 1, 0); err != nil {
			return err
		}
		if err := tx.AddCandidateVotes(ctx, 1, 0, 1); err != nil {
			return err
		}
		if err := tx.AddCandidateVotes(ctx, 7, 1, 0); !errors.Is(err, domainerrors.ErrCandidateNotFound) {
			t.Fatalf("expected ErrCandidateNotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("cast failed: %v", err)
	}

	candidates, err := store.ListCandidates(ctx, election.ElectionID)
	if err != nil {
		t.Fatalf("list candidates failed: %v", err)
	}
	if len(candidates) != 2 || candidates[0].PlusVotes != 1 || candidates[1].MinusVotes != 1 {
		t.Fatalf("unexpected candidate counters: %+v", candidates)
	}
	if _, found, _ := store.GetVoterRecord(ctx, election.ElectionID, "voter-1"); !found {
		t.Fatalf("expected committed voter record")
	}
}

func TestWithElectionUnknownElection(t *testing.T) {
	store := NewStore()
	err := store.WithElection(context.Background(), "missing", func(ports.ElectionTx) error {
		t.Fatalf("callback must not run for unknown election")
		return nil
	})
	if !errors.Is(err, domainerrors.ErrElectionNotFound) {
		t.Fatalf("expected ErrElectionNotFound, got %v", err)
	}
}

func TestIdempotencyClaimLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	claim := ports.IdempotencyRecord{Key: "k1", RequestHash: "h1", ExpiresAt: now.Add(time.Minute)}

	if _, replay, err := store.Claim(ctx, claim, now); err != nil || replay {
		t.Fatalf("expected fresh claim, got replay=%v err=%v", replay, err)
	}
	if _, _, err := store.Claim(ctx, claim, now); !errors.Is(err, domainerrors.ErrIdempotencyInFlight) {
		t.Fatalf("expected ErrIdempotencyInFlight, got %v", err)
	}
	other := claim
	other.RequestHash = "h2"
	if _, _, err := store.Claim(ctx, other, now); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}

	completed := claim
	completed.ResultID = "r1"
	if err := store.Put(ctx, completed); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	record, replay, err := store.Claim(ctx, claim, now)
	if err != nil || !replay || record.ResultID != "r1" {
		t.Fatalf("expected replay of r1, got %+v replay=%v err=%v", record, replay, err)
	}
	if _, replay, err := store.Claim(ctx, other, now.Add(time.Minute)); err != nil || replay {
		t.Fatalf("expected expired record to be claimable, got replay=%v err=%v", replay, err)
	}
}

func TestIdempotencyReleaseDropsOnlyPendingClaims(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	claim := ports.IdempotencyRecord{Key: "k1", RequestHash: "h1", ExpiresAt: now.Add(time.Minute)}

	if _, _, err := store.Claim(ctx, claim, now); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.Release(ctx, "k1", "h1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, replay, err := store.Claim(ctx, claim, now); err != nil || replay {
		t.Fatalf("expected released key to be claimable, got replay=%v err=%v", replay, err)
	}

	completed := claim
	completed.ResultID = "r1"
	if err := store.Put(ctx, completed); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Release(ctx, "k1", "h1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, replay, _ := store.Claim(ctx, claim, now); !replay {
		t.Fatalf("expected completed record to survive release")
	}
}

func TestOutboxKeepsAppendOrder(t *testing.T) {
	store := NewStore()
	at := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	election := entities.Election{ElectionID: "e-1", Authority: "a", Name: "n"}
	events := []ports.EventEnvelope{
		{EventID: "evt-b", EventType: "election.initialized", OccurredAt: at},
		{EventID: "evt-a", EventType: "election.candidate_added", OccurredAt: at},
	}
	if err := store.CreateElection(context.Background(), election, events...); err != nil {
		t.Fatalf("create election failed: %v", err)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "evt-b" || pending[1].OutboxID != "evt-a" {
		t.Fatalf("expected append order, got %+v", pending)
	}
	if err := store.MarkOutboxPublished(context.Background(), "evt-b", at); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, _ = store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 1 || pending[0].OutboxID != "evt-a" {
		t.Fatalf("expected one pending row, got %+v", pending)
	}
}
