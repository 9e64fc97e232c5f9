package httpadapter

import (
	"errors"
	"testing"

	"d21vote/contexts/elections/d21-engine/domain/entities"
	httptransport "d21vote/contexts/elections/d21-engine/transport/http"
)

func wireID(value int) *int {
	return &value
}

func TestBallotFromRequestDropsTrailingNulls(t *testing.T) {
	ballot, err := ballotFromRequest(httptransport.CastVoteRequest{
		PlusVotes:  []*int{wireID(3), nil, wireID(1), nil, nil, nil},
		MinusVotes: []*int{nil, wireID(2), nil},
	})
	if err != nil {
		t.Fatalf("expected ballot to fit, got %v", err)
	}
	want := entities.Ballot{
		Plus:  [entities.MaxPlusSlots]entities.Selection{entities.Pick(3), {}, entities.Pick(1), {}},
		Minus: [entities.MaxMinusSlots]entities.Selection{{}, entities.Pick(2)},
	}
	if ballot != want {
		t.Fatalf("unexpected ballot: %+v", ballot)
	}

	empty, err := ballotFromRequest(httptransport.CastVoteRequest{PlusVotes: []*int{nil, nil, nil, nil, nil}})
	if err != nil {
		t.Fatalf("expected all-null list to fit, got %v", err)
	}
	if len(empty.PlusVotes()) != 0 {
		t.Fatalf("expected no selections, got %v", empty.PlusVotes())
	}
}

func TestBallotFromRequestRejectsListsThatDoNotFit(t *testing.T) {
	cases := []httptransport.CastVoteRequest{
		{PlusVotes: []*int{wireID(0), wireID(1), wireID(2), wireID(3), wireID(4)}},
		{PlusVotes: []*int{nil, nil, nil, nil, wireID(0)}},
		{PlusVotes: []*int{wireID(0), wireID(1)}, MinusVotes: []*int{wireID(2), wireID(3), wireID(4)}},
	}
	for _, req := range cases {
		if _, err := ballotFromRequest(req); !errors.Is(err, ErrInvalidBallotShape) {
			t.Fatalf("expected ErrInvalidBallotShape for %+v, got %v", req, err)
		}
	}
}

func TestBallotFromRequestMapsOutOfRangeIDs(t *testing.T) {
	ballot, err := ballotFromRequest(httptransport.CastVoteRequest{PlusVotes: []*int{wireID(300), wireID(-4)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range ballot.PlusVotes() {
		if id < entities.MaxCandidates {
			t.Fatalf("expected out-of-range ids to stay outside the candidate range, got %d", id)
		}
	}
}
