package commands

import (
	"context"
	"strings"

	application "d21vote/contexts/elections/d21-engine/application"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/ports"
	contractsv1 "d21vote/contracts/gen/events/v1"
)

// FinalizeElectionCommand closes an election after its voting window.
type FinalizeElectionCommand struct {
	ElectionID     string
	Authority      string
	IdempotencyKey string
}

// FinalizeElection is the one-way transition to the closed state. Nothing
// clears IsFinalized afterwards.
func (uc ElectionUseCase) FinalizeElection(ctx context.Context, cmd FinalizeElectionCommand) (ElectionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	electionID := strings.TrimSpace(cmd.ElectionID)
	authority := strings.TrimSpace(cmd.Authority)
	logger.Info("election finalize processing started",
		"event", "election_finalize_started",
		"module", "elections/d21-engine",
		"layer", "application",
		"election_id", electionID,
		"authority", authority,
	)
	if authority == "" {
		return ElectionResult{}, domainerrors.ErrIdentityRequired
	}

	now := uc.now()
	requestHash := hashCommand("finalize_election", map[string]any{
		"election_id": electionID,
		"authority":   authority,
	})
	if _, found, err := uc.claimKey(ctx, cmd.IdempotencyKey, requestHash, now); err != nil {
		return ElectionResult{}, err
	} else if found {
		election, err := uc.Elections.GetElection(ctx, electionID)
		if err != nil {
			return ElectionResult{}, err
		}
		return ElectionResult{Election: election, Replayed: true}, nil
	}

	var result ElectionResult
	err := uc.Elections.WithElection(ctx, electionID, func(tx ports.ElectionTx) error {
		election := tx.Election()
		if err := requireAuthority(election, authority); err != nil {
			return err
		}
		if !election.HasEnded(now) {
			return domainerrors.ErrElectionNotEnded
		}
		if election.IsFinalized {
			return domainerrors.ErrElectionFinalized
		}

		finalizedAt := now
		election.IsFinalized = true
		election.FinalizedAt = &finalizedAt
		election.UpdatedAt = now
		if err := tx.SaveElection(ctx, election); err != nil {
			return err
		}
		event, err := uc.buildEvent(ctx, contractsv1.EventElectionFinalized, election, now, nil)
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, event); err != nil {
			return err
		}
		result = ElectionResult{Election: election}
		return nil
	})
	if err != nil {
		uc.releaseKey(ctx, cmd.IdempotencyKey, requestHash)
		logger.Warn("election finalize rejected",
			"event", "election_finalize_rejected",
			"module", "elections/d21-engine",
			"layer", "application",
			"election_id", electionID,
			"authority", authority,
			"error", err.Error(),
		)
		return ElectionResult{}, err
	}
	uc.rememberResult(ctx, cmd.IdempotencyKey, requestHash, result.Election.ElectionID, now)

	logger.Info("election finalized",
		"event", "election_finalized",
		"module", "elections/d21-engine",
		"layer", "application",
		"election_id", result.Election.ElectionID,
		"name", result.Election.Name,
		"voter_count", result.Election.VoterCount,
	)
	return result, nil
}
