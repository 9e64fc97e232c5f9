package rules

import "d21vote/contexts/elections/d21-engine/domain/entities"

// MaxPlusVotes is the D21 plus budget: it grows with the number of seats and
// stays strictly below the candidate pool size.
func MaxPlusVotes(numWinners uint8, candidateCount uint8) uint8 {
	var base int
	switch numWinners {
	case 1:
		base = 2
	case 2:
		base = 3
	case 3:
		base = 4
	default:
		base = int(numWinners) + 1
	}

	limit := 0
	if candidateCount > 0 {
		limit = int(candidateCount) - 1
	}
	if base < limit {
		return uint8(base)
	}
	return uint8(limit)
}

// MaxMinusVotes is a third of the plus budget, or zero when the election
// does not accept minus votes.
func MaxMinusVotes(election entities.Election) uint8 {
	if !election.AllowMinusVotes {
		return 0
	}
	return MaxPlusVotes(election.NumWinners, election.CandidateCount) / 3
}

func Budget(election entities.Election) entities.VoteBudget {
	return entities.VoteBudget{
		MaxPlus:  MaxPlusVotes(election.NumWinners, election.CandidateCount),
		MaxMinus: MaxMinusVotes(election),
	}
}
