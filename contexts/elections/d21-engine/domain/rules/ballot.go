package rules

import (
	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
)

const minPlusVotesForMinus = 2

// ValidateBallot applies the ballot checks in their observable order:
// budget, minus prerequisite, candidate range, then duplicate/conflict
// detection. The first failing check wins.
func ValidateBallot(election entities.Election, ballot entities.Ballot) error {
	plus := ballot.PlusVotes()
	minus := ballot.MinusVotes()
	budget := Budget(election)

	if len(plus) > int(budget.MaxPlus) {
		return domainerrors.ErrTooManyPlusVotes
	}
	if len(minus) > int(budget.MaxMinus) {
		return domainerrors.ErrTooManyMinusVotes
	}
	if len(minus) > 0 && len(plus) < minPlusVotesForMinus {
		return domainerrors.ErrInsufficientPlusVotes
	}
	for _, id := range plus {
		if id >= election.CandidateCount {
			return domainerrors.ErrInvalidCandidateID
		}
	}
	for _, id := range minus {
		if id >= election.CandidateCount {
			return domainerrors.ErrInvalidCandidateID
		}
	}
	return CheckDuplicates(plus, minus)
}

// CheckDuplicates runs a single seen-set over plus then minus selections.
// A repeat inside plus is a duplicate; any repeat found while walking minus,
// including a repeat inside minus itself, is a conflict.
func CheckDuplicates(plus []uint8, minus []uint8) error {
	seen := make(map[uint8]struct{}, len(plus)+len(minus))
	for _, id := range plus {
		if _, ok := seen[id]; ok {
			return domainerrors.ErrDuplicateVote
		}
		seen[id] = struct{}{}
	}
	for _, id := range minus {
		if _, ok := seen[id]; ok {
			return domainerrors.ErrConflictingVote
		}
		seen[id] = struct{}{}
	}
	return nil
}
