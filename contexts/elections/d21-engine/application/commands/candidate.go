package commands

import (
	"context"
	"strconv"
	"strings"

	application "d21vote/contexts/elections/d21-engine/application"
	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/domain/rules"
	"d21vote/contexts/elections/d21-engine/ports"
	contractsv1 "d21vote/contracts/gen/events/v1"
)

// AddCandidateCommand registers a candidate before voting opens.
type AddCandidateCommand struct {
	ElectionID     string
	Authority      string
	IdempotencyKey string
	Name           string
	Description    string
}

type AddCandidateResult struct {
	Candidate entities.Candidate
	Election  entities.Election
	Replayed  bool
}

// AddCandidate assigns the next sequential candidate id. The id comes from
// the locked election counter, so concurrent registrations never share one.
func (uc ElectionUseCase) AddCandidate(ctx context.Context, cmd AddCandidateCommand) (AddCandidateResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	electionID := strings.TrimSpace(cmd.ElectionID)
	authority := strings.TrimSpace(cmd.Authority)
	logger.Info("candidate add processing started",
		"event", "election_candidate_add_started",
		"module", "elections/d21-engine",
		"layer", "application",
		"election_id", electionID,
		"authority", authority,
	)
	if authority == "" {
		return AddCandidateResult{}, domainerrors.ErrIdentityRequired
	}

	now := uc.now()
	requestHash := hashCommand("add_candidate", map[string]any{
		"election_id": electionID,
		"authority":   authority,
		"name":        cmd.Name,
		"description": cmd.Description,
	})
	if resultID, found, err := uc.claimKey(ctx, cmd.IdempotencyKey, requestHash, now); err != nil {
		return AddCandidateResult{}, err
	} else if found {
		return uc.replayCandidate(ctx, electionID, resultID)
	}

	var result AddCandidateResult
	err := uc.Elections.WithElection(ctx, electionID, func(tx ports.ElectionTx) error {
		election := tx.Election()
		if err := requireAuthority(election, authority); err != nil {
			return err
		}
		if election.IsFinalized {
			return domainerrors.ErrElectionFinalized
		}
		if err := rules.ValidateText(cmd.Name, cmd.Description); err != nil {
			return err
		}
		if election.CandidateCount >= entities.MaxCandidates {
			return domainerrors.ErrTooManyCandidates
		}
		if election.HasStarted(now) {
			return domainerrors.ErrElectionStarted
		}

		candidate := entities.Candidate{
			ElectionID:  election.ElectionID,
			CandidateID: election.CandidateCount,
			Name:        cmd.Name,
			Description: cmd.Description,
			CreatedAt:   now,
		}
		if err := tx.CreateCandidate(ctx, candidate); err != nil {
			return err
		}
		election.CandidateCount++
		election.UpdatedAt = now
		if err := tx.SaveElection(ctx, election); err != nil {
			return err
		}
		event, err := uc.buildEvent(ctx, contractsv1.EventCandidateAdded, election, now, map[string]any{
			"candidate_id": candidate.CandidateID,
			"name":         candidate.Name,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, event); err != nil {
			return err
		}
		result = AddCandidateResult{Candidate: candidate, Election: election}
		return nil
	})
	if err != nil {
		uc.releaseKey(ctx, cmd.IdempotencyKey, requestHash)
		logger.Warn("candidate add rejected",
			"event", "election_candidate_add_rejected",
			"module", "elections/d21-engine",
			"layer", "application",
			"election_id", electionID,
			"authority", authority,
			"error", err.Error(),
		)
		return AddCandidateResult{}, err
	}
	uc.rememberResult(ctx, cmd.IdempotencyKey, requestHash, candidateResultID(result.Candidate.CandidateID), now)

	logger.Info("candidate added",
		"event", "election_candidate_added",
		"module", "elections/d21-engine",
		"layer", "application",
		"election_id", result.Election.ElectionID,
		"candidate_id", result.Candidate.CandidateID,
		"name", result.Candidate.Name,
		"candidate_count", result.Election.CandidateCount,
	)
	return result, nil
}

func (uc ElectionUseCase) replayCandidate(ctx context.Context, electionID string, resultID string) (AddCandidateResult, error) {
	election, err := uc.Elections.GetElection(ctx, electionID)
	if err != nil {
		return AddCandidateResult{}, err
	}
	candidates, err := uc.Elections.ListCandidates(ctx, electionID)
	if err != nil {
		return AddCandidateResult{}, err
	}
	for _, candidate := range candidates {
		if candidateResultID(candidate.CandidateID) == resultID {
			return AddCandidateResult{Candidate: candidate, Election: election, Replayed: true}, nil
		}
	}
	return AddCandidateResult{}, domainerrors.ErrCandidateNotFound
}

func candidateResultID(candidateID uint8) string {
	return "candidate:" + strconv.Itoa(int(candidateID))
}
