package queries

import (
	"context"
	"sort"
	"strings"

	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/domain/rules"
	"d21vote/contexts/elections/d21-engine/ports"
)

type ElectionQueries struct {
	Elections ports.ElectionRepository
}

func (uc ElectionQueries) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	return uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
}

// ListCandidates returns candidates in id order with their recorded counters.
// No ranking is applied.
func (uc ElectionQueries) ListCandidates(ctx context.Context, electionID string) ([]entities.Candidate, error) {
	electionID = strings.TrimSpace(electionID)
	if _, err := uc.Elections.GetElection(ctx, electionID); err != nil {
		return nil, err
	}
	candidates, err := uc.Elections.ListCandidates(ctx, electionID)
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CandidateID < candidates[j].CandidateID
	})
	return candidates, nil
}

func (uc ElectionQueries) GetVoterRecord(ctx context.Context, electionID string, voter string) (entities.VoterRecord, error) {
	voter = strings.TrimSpace(voter)
	if voter == "" {
		return entities.VoterRecord{}, domainerrors.ErrIdentityRequired
	}
	record, found, err := uc.Elections.GetVoterRecord(ctx, strings.TrimSpace(electionID), voter)
	if err != nil {
		return entities.VoterRecord{}, err
	}
	if !found {
		return entities.VoterRecord{}, domainerrors.ErrVoterRecordNotFound
	}
	return record, nil
}

// VoteBudget reports the ballot limits for the election's current candidate
// pool. The plus budget can still grow until voting opens.
func (uc ElectionQueries) VoteBudget(ctx context.Context, electionID string) (entities.VoteBudget, error) {
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return entities.VoteBudget{}, err
	}
	return rules.Budget(election), nil
}
