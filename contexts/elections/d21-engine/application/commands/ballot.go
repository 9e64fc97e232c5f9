package commands

import (
	"context"
	"strings"

	application "d21vote/contexts/elections/d21-engine/application"
	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/domain/rules"
	"d21vote/contexts/elections/d21-engine/ports"
	contractsv1 "d21vote/contracts/gen/events/v1"
)

// CastVoteCommand submits one voter's fixed-slot ballot.
type CastVoteCommand struct {
	ElectionID     string
	Voter          string
	IdempotencyKey string
	Ballot         entities.Ballot
}

type CastVoteResult struct {
	Record   entities.VoterRecord
	Election entities.Election
	Replayed bool
}

// CastVote records a ballot and tallies it into the candidate counters in the
// same unit of work. Checks run in a fixed order: voting window, prior vote,
// budget, minus prerequisite, candidate range, duplicates/conflicts.
func (uc ElectionUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	electionID := strings.TrimSpace(cmd.ElectionID)
	voter := strings.TrimSpace(cmd.Voter)
	logger.Info("vote cast processing started",
		"event", "election_vote_cast_started",
		"module", "elections/d21-engine",
		"layer", "application",
		"election_id", electionID,
		"voter", voter,
	)
	if voter == "" {
		return CastVoteResult{}, domainerrors.ErrIdentityRequired
	}

	now := uc.now()
	requestHash := hashCommand("cast_vote", map[string]any{
		"election_id": electionID,
		"voter":       voter,
		"plus":        slotValues(cmd.Ballot.Plus[:]),
		"minus":       slotValues(cmd.Ballot.Minus[:]),
	})
	if _, found, err := uc.claimKey(ctx, cmd.IdempotencyKey, requestHash, now); err != nil {
		return CastVoteResult{}, err
	} else if found {
		return uc.replayVote(ctx, electionID, voter)
	}

	var result CastVoteResult
	err := uc.Elections.WithElection(ctx, electionID, func(tx ports.ElectionTx) error {
		election := tx.Election()
		if !election.IsActive(now) {
			return domainerrors.ErrElectionNotActive
		}
		if existing, found, err := tx.GetVoterRecord(ctx, voter); err != nil {
			return err
		} else if found && existing.HasVoted {
			return domainerrors.ErrAlreadyVoted
		}
		if err := rules.ValidateBallot(election, cmd.Ballot); err != nil {
			return err
		}

		record := entities.VoterRecord{
			ElectionID: election.ElectionID,
			Voter:      voter,
			Ballot:     cmd.Ballot,
			HasVoted:   true,
			CastAt:     now,
		}
		// The record key itself is the final guard against a concurrent
		// second ballot from the same voter.
		if err := tx.CreateVoterRecord(ctx, record); err != nil {
			return err
		}
		for _, id := range cmd.Ballot.PlusVotes() {
			if err := tx.AddCandidateVotes(ctx, id, 1, 0); err != nil {
				return err
			}
		}
		for _, id := range cmd.Ballot.MinusVotes() {
			if err := tx.AddCandidateVotes(ctx, id, 0, 1); err != nil {
				return err
			}
		}
		election.VoterCount++
		election.UpdatedAt = now
		if err := tx.SaveElection(ctx, election); err != nil {
			return err
		}
		event, err := uc.buildEvent(ctx, contractsv1.EventVoteCast, election, now, map[string]any{
			"voter":       voter,
			"plus_votes":  cmd.Ballot.PlusVotes(),
			"minus_votes": cmd.Ballot.MinusVotes(),
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, event); err != nil {
			return err
		}
		result = CastVoteResult{Record: record, Election: election}
		return nil
	})
	if err != nil {
		uc.releaseKey(ctx, cmd.IdempotencyKey, requestHash)
		logger.Warn("vote cast rejected",
			"event", "election_vote_cast_rejected",
			"module", "elections/d21-engine",
			"layer", "application",
			"election_id", electionID,
			"voter", voter,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	}
	uc.rememberResult(ctx, cmd.IdempotencyKey, requestHash, voter, now)

	logger.Info("vote cast",
		"event", "election_vote_cast",
		"module", "elections/d21-engine",
		"layer", "application",
		"election_id", result.Election.ElectionID,
		"voter", voter,
		"plus_count", len(cmd.Ballot.PlusVotes()),
		"minus_count", len(cmd.Ballot.MinusVotes()),
		"voter_count", result.Election.VoterCount,
	)
	return result, nil
}

func (uc ElectionUseCase) replayVote(ctx context.Context, electionID string, voter string) (CastVoteResult, error) {
	election, err := uc.Elections.GetElection(ctx, electionID)
	if err != nil {
		return CastVoteResult{}, err
	}
	record, found, err := uc.Elections.GetVoterRecord(ctx, electionID, voter)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !found {
		return CastVoteResult{}, domainerrors.ErrVoterRecordNotFound
	}
	return CastVoteResult{Record: record, Election: election, Replayed: true}, nil
}

// slotValues keeps empty slots as nil so slot position is part of the hash.
func slotValues(slots []entities.Selection) []any {
	values := make([]any, 0, len(slots))
	for _, slot := range slots {
		if !slot.Present {
			values = append(values, nil)
			continue
		}
		values = append(values, slot.CandidateID)
	}
	return values
}
