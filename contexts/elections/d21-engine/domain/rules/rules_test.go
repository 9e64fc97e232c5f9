package rules

import (
	"errors"
	"strings"
	"testing"
	"time"

	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
)

func TestMaxPlusVotesTable(t *testing.T) {
	cases := []struct {
		winners    uint8
		candidates uint8
		want       uint8
	}{
		{winners: 1, candidates: 0, want: 0},
		{winners: 1, candidates: 1, want: 0},
		{winners: 1, candidates: 2, want: 1},
		{winners: 1, candidates: 10, want: 2},
		{winners: 2, candidates: 3, want: 2},
		{winners: 2, candidates: 10, want: 3},
		{winners: 3, candidates: 4, want: 3},
		{winners: 3, candidates: 10, want: 4},
		{winners: 5, candidates: 4, want: 3},
		{winners: 5, candidates: 10, want: 6},
		{winners: 255, candidates: 50, want: 49},
	}
	for _, tc := range cases {
		if got := MaxPlusVotes(tc.winners, tc.candidates); got != tc.want {
			t.Fatalf("MaxPlusVotes(%d, %d) = %d, want %d", tc.winners, tc.candidates, got, tc.want)
		}
	}
}

func TestMaxMinusVotesRequiresOptIn(t *testing.T) {
	election := entities.Election{NumWinners: 3, CandidateCount: 10}
	if got := MaxMinusVotes(election); got != 0 {
		t.Fatalf("expected no minus budget when disabled, got %d", got)
	}
	election.AllowMinusVotes = true
	if got := MaxMinusVotes(election); got != 1 {
		t.Fatalf("expected minus budget 4/3=1, got %d", got)
	}
	election.NumWinners = 5
	if got := MaxMinusVotes(election); got != 2 {
		t.Fatalf("expected minus budget 6/3=2, got %d", got)
	}
	election.NumWinners = 1
	if got := MaxMinusVotes(election); got != 0 {
		t.Fatalf("expected minus budget 2/3=0, got %d", got)
	}
}

func TestValidateBallot(t *testing.T) {
	openMinus := entities.Election{NumWinners: 5, CandidateCount: 10, AllowMinusVotes: true}
	cases := []struct {
		name     string
		election entities.Election
		ballot   entities.Ballot
		want     error
	}{
		{
			name:     "empty ballot is accepted",
			election: openMinus,
		},
		{
			name:     "plus within budget",
			election: entities.Election{NumWinners: 1, CandidateCount: 5},
			ballot:   entities.Ballot{Plus: [4]entities.Selection{entities.Pick(0), entities.Pick(3)}},
		},
		{
			name:     "plus over budget",
			election: entities.Election{NumWinners: 1, CandidateCount: 5},
			ballot: entities.Ballot{Plus: [4]entities.Selection{
				entities.Pick(0), entities.Pick(1), entities.Pick(2),
			}},
			want: domainerrors.ErrTooManyPlusVotes,
		},
		{
			name:     "minus not allowed",
			election: entities.Election{NumWinners: 5, CandidateCount: 10},
			ballot: entities.Ballot{
				Plus:  [4]entities.Selection{entities.Pick(0), entities.Pick(1)},
				Minus: [2]entities.Selection{entities.Pick(2)},
			},
			want: domainerrors.ErrTooManyMinusVotes,
		},
		{
			name:     "minus needs two plus",
			election: openMinus,
			ballot: entities.Ballot{
				Minus: [2]entities.Selection{entities.Pick(2)},
			},
			want: domainerrors.ErrInsufficientPlusVotes,
		},
		{
			name:     "minus with a single plus",
			election: openMinus,
			ballot: entities.Ballot{
				Plus:  [4]entities.Selection{{}, entities.Pick(1)},
				Minus: [2]entities.Selection{{}, entities.Pick(2)},
			},
			want: domainerrors.ErrInsufficientPlusVotes,
		},
		{
			name:     "plus id out of range",
			election: openMinus,
			ballot:   entities.Ballot{Plus: [4]entities.Selection{entities.Pick(10)}},
			want:     domainerrors.ErrInvalidCandidateID,
		},
		{
			name:     "minus id out of range",
			election: openMinus,
			ballot: entities.Ballot{
				Plus:  [4]entities.Selection{entities.Pick(0), entities.Pick(1)},
				Minus: [2]entities.Selection{entities.Pick(42)},
			},
			want: domainerrors.ErrInvalidCandidateID,
		},
		{
			name:     "range is checked before duplicates",
			election: openMinus,
			ballot: entities.Ballot{Plus: [4]entities.Selection{
				entities.Pick(1), entities.Pick(1), entities.Pick(99),
			}},
			want: domainerrors.ErrInvalidCandidateID,
		},
		{
			name:     "repeated plus is a duplicate",
			election: entities.Election{NumWinners: 1, CandidateCount: 5},
			ballot:   entities.Ballot{Plus: [4]entities.Selection{entities.Pick(0), entities.Pick(0)}},
			want:     domainerrors.ErrDuplicateVote,
		},
		{
			name:     "plus reused as minus is a conflict",
			election: entities.Election{NumWinners: 5, CandidateCount: 5, AllowMinusVotes: true},
			ballot: entities.Ballot{
				Plus:  [4]entities.Selection{entities.Pick(0), entities.Pick(1)},
				Minus: [2]entities.Selection{entities.Pick(0)},
			},
			want: domainerrors.ErrConflictingVote,
		},
		{
			name:     "repeated minus is a conflict",
			election: openMinus,
			ballot: entities.Ballot{
				Plus:  [4]entities.Selection{entities.Pick(0), entities.Pick(1)},
				Minus: [2]entities.Selection{entities.Pick(4), entities.Pick(4)},
			},
			want: domainerrors.ErrConflictingVote,
		},
		{
			name:     "full valid ballot",
			election: openMinus,
			ballot: entities.Ballot{
				Plus:  [4]entities.Selection{entities.Pick(0), entities.Pick(1), entities.Pick(2), entities.Pick(3)},
				Minus: [2]entities.Selection{entities.Pick(4), entities.Pick(5)},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBallot(tc.election, tc.ballot)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// A single-winner election has a minus budget of 2/3=0, so the budget check
// fires before the reused id is ever seen by the detector.
func TestCheckDuplicatesConflictAcrossLists(t *testing.T) {
	singleWinner := entities.Election{NumWinners: 1, CandidateCount: 5, AllowMinusVotes: true}
	ballot := entities.Ballot{
		Plus:  [4]entities.Selection{entities.Pick(0), entities.Pick(1)},
		Minus: [2]entities.Selection{entities.Pick(0)},
	}
	if err := ValidateBallot(singleWinner, ballot); !errors.Is(err, domainerrors.ErrTooManyMinusVotes) {
		t.Fatalf("expected minus budget to fire first, got %v", err)
	}

	err := CheckDuplicates([]uint8{0, 1}, []uint8{0})
	if !errors.Is(err, domainerrors.ErrConflictingVote) {
		t.Fatalf("expected conflicting vote, got %v", err)
	}
	if err := CheckDuplicates([]uint8{0, 0}, nil); !errors.Is(err, domainerrors.ErrDuplicateVote) {
		t.Fatalf("expected duplicate vote, got %v", err)
	}
	if err := CheckDuplicates([]uint8{3, 1}, []uint8{0, 2}); err != nil {
		t.Fatalf("expected distinct ids to pass, got %v", err)
	}
}

func TestValidateElectionConfig(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	end := start.Add(time.Hour)

	if err := ValidateElectionConfig(start, end, 1, "board", "annual"); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if err := ValidateElectionConfig(end, start, 0, strings.Repeat("n", 51), ""); !errors.Is(err, domainerrors.ErrInvalidTimeRange) {
		t.Fatalf("expected time range error first, got %v", err)
	}
	if err := ValidateElectionConfig(start, start, 1, "board", ""); !errors.Is(err, domainerrors.ErrInvalidTimeRange) {
		t.Fatalf("expected equal start/end to fail, got %v", err)
	}
	if err := ValidateElectionConfig(start, end, 0, "board", ""); !errors.Is(err, domainerrors.ErrInvalidWinnerCount) {
		t.Fatalf("expected winner count error, got %v", err)
	}
	if err := ValidateElectionConfig(start, end, 1, strings.Repeat("n", 51), ""); !errors.Is(err, domainerrors.ErrNameTooLong) {
		t.Fatalf("expected name too long, got %v", err)
	}
	if err := ValidateElectionConfig(start, end, 1, strings.Repeat("n", 50), strings.Repeat("d", 201)); !errors.Is(err, domainerrors.ErrDescriptionTooLong) {
		t.Fatalf("expected description too long, got %v", err)
	}
	if err := ValidateElectionConfig(start, end, 1, strings.Repeat("n", 50), strings.Repeat("d", 200)); err != nil {
		t.Fatalf("expected bounds to be inclusive, got %v", err)
	}
}
