package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"d21vote/contexts/elections/d21-engine/application/commands"
	"d21vote/contexts/elections/d21-engine/application/queries"
	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	httptransport "d21vote/contexts/elections/d21-engine/transport/http"
)

type Handler struct {
	Elections commands.ElectionUseCase
	Queries   queries.ElectionQueries
	Logger    *slog.Logger
}

func (h Handler) InitializeElectionHandler(
	ctx context.Context,
	authority string,
	idempotencyKey string,
	req httptransport.InitializeElectionRequest,
) (httptransport.ElectionResponse, error) {
	if req.NumWinners < 0 || req.NumWinners > 255 {
		return httptransport.ElectionResponse{}, domainerrors.ErrInvalidWinnerCount
	}
	result, err := h.Elections.InitializeElection(ctx, commands.InitializeElectionCommand{
		Authority:       authority,
		IdempotencyKey:  idempotencyKey,
		Name:            req.Name,
		Description:     req.Description,
		StartTime:       time.Unix(req.StartTime, 0).UTC(),
		EndTime:         time.Unix(req.EndTime, 0).UTC(),
		NumWinners:      uint8(req.NumWinners),
		AllowMinusVotes: req.AllowMinusVotes,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(result.Election, result.Replayed), nil
}

func (h Handler) AddCandidateHandler(
	ctx context.Context,
	electionID string,
	authority string,
	idempotencyKey string,
	req httptransport.AddCandidateRequest,
) (httptransport.CandidateResponse, error) {
	result, err := h.Elections.AddCandidate(ctx, commands.AddCandidateCommand{
		ElectionID:     electionID,
		Authority:      authority,
		IdempotencyKey: idempotencyKey,
		Name:           req.Name,
		Description:    req.Description,
	})
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	response := mapCandidate(result.Candidate)
	response.Replayed = result.Replayed
	return response, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	electionID string,
	voter string,
	idempotencyKey string,
	req httptransport.CastVoteRequest,
) (httptransport.VoterRecordResponse, error) {
	ballot, err := ballotFromRequest(req)
	if err != nil {
		return httptransport.VoterRecordResponse{}, err
	}
	result, err := h.Elections.CastVote(ctx, commands.CastVoteCommand{
		ElectionID:     electionID,
		Voter:          voter,
		IdempotencyKey: idempotencyKey,
		Ballot:         ballot,
	})
	if err != nil {
		return httptransport.VoterRecordResponse{}, err
	}
	response := mapVoterRecord(result.Record)
	response.VoterCount = result.Election.VoterCount
	response.Replayed = result.Replayed
	return response, nil
}

func (h Handler) FinalizeElectionHandler(
	ctx context.Context,
	electionID string,
	authority string,
	idempotencyKey string,
) (httptransport.ElectionResponse, error) {
	result, err := h.Elections.FinalizeElection(ctx, commands.FinalizeElectionCommand{
		ElectionID:     electionID,
		Authority:      authority,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(result.Election, result.Replayed), nil
}

func (h Handler) GetElectionHandler(ctx context.Context, electionID string) (httptransport.ElectionResponse, error) {
	election, err := h.Queries.GetElection(ctx, electionID)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election, false), nil
}

func (h Handler) ListCandidatesHandler(ctx context.Context, electionID string) (httptransport.CandidateListResponse, error) {
	candidates, err := h.Queries.ListCandidates(ctx, electionID)
	if err != nil {
		return httptransport.CandidateListResponse{}, err
	}
	items := make([]httptransport.CandidateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, mapCandidate(candidate))
	}
	return httptransport.CandidateListResponse{Items: items}, nil
}

func (h Handler) GetVoterRecordHandler(ctx context.Context, electionID string, voter string) (httptransport.VoterRecordResponse, error) {
	record, err := h.Queries.GetVoterRecord(ctx, electionID, voter)
	if err != nil {
		return httptransport.VoterRecordResponse{}, err
	}
	return mapVoterRecord(record), nil
}

func (h Handler) VoteBudgetHandler(ctx context.Context, electionID string) (httptransport.VoteBudgetResponse, error) {
	election, err := h.Queries.GetElection(ctx, electionID)
	if err != nil {
		return httptransport.VoteBudgetResponse{}, err
	}
	budget, err := h.Queries.VoteBudget(ctx, electionID)
	if err != nil {
		return httptransport.VoteBudgetResponse{}, err
	}
	return httptransport.VoteBudgetResponse{
		ElectionID:     election.ElectionID,
		MaxPlusVotes:   budget.MaxPlus,
		MaxMinusVotes:  budget.MaxMinus,
		CandidateCount: election.CandidateCount,
	}, nil
}

// ErrInvalidBallotShape reports a wire ballot whose lists cannot be laid onto
// the fixed slots even after dropping trailing nulls.
var ErrInvalidBallotShape = errors.New("ballot lists exceed the plus/minus slots")

// outOfRangeCandidate stands in for wire ids that do not fit a candidate id.
// No election reaches it, so the engine reports InvalidCandidateId in its
// normal check order.
const outOfRangeCandidate = 255

// ballotFromRequest lays the wire lists onto the fixed slots. Trailing nulls
// select nothing and are dropped first.
func ballotFromRequest(req httptransport.CastVoteRequest) (entities.Ballot, error) {
	var ballot entities.Ballot
	plus := trimTrailingNulls(req.PlusVotes)
	minus := trimTrailingNulls(req.MinusVotes)
	if len(plus) > entities.MaxPlusSlots || len(minus) > entities.MaxMinusSlots {
		return entities.Ballot{}, ErrInvalidBallotShape
	}
	for i, value := range plus {
		ballot.Plus[i] = selectionFromWire(value)
	}
	for i, value := range minus {
		ballot.Minus[i] = selectionFromWire(value)
	}
	return ballot, nil
}

func trimTrailingNulls(values []*int) []*int {
	end := len(values)
	for end > 0 && values[end-1] == nil {
		end--
	}
	return values[:end]
}

func selectionFromWire(value *int) entities.Selection {
	if value == nil {
		return entities.Selection{}
	}
	if *value < 0 || *value > outOfRangeCandidate {
		return entities.Pick(outOfRangeCandidate)
	}
	return entities.Pick(uint8(*value))
}

func slotsToWire(slots []entities.Selection) []*int {
	items := make([]*int, 0, len(slots))
	for _, slot := range slots {
		if !slot.Present {
			items = append(items, nil)
			continue
		}
		value := int(slot.CandidateID)
		items = append(items, &value)
	}
	return items
}

func mapElection(election entities.Election, replayed bool) httptransport.ElectionResponse {
	response := httptransport.ElectionResponse{
		ElectionID:      election.ElectionID,
		Authority:       election.Authority,
		Name:            election.Name,
		Description:     election.Description,
		StartTime:       election.StartTime.Unix(),
		EndTime:         election.EndTime.Unix(),
		NumWinners:      election.NumWinners,
		AllowMinusVotes: election.AllowMinusVotes,
		CandidateCount:  election.CandidateCount,
		VoterCount:      election.VoterCount,
		IsFinalized:     election.IsFinalized,
		Replayed:        replayed,
	}
	if election.FinalizedAt != nil {
		finalizedAt := election.FinalizedAt.Unix()
		response.FinalizedAt = &finalizedAt
	}
	return response
}

func mapCandidate(candidate entities.Candidate) httptransport.CandidateResponse {
	return httptransport.CandidateResponse{
		ElectionID:  candidate.ElectionID,
		CandidateID: candidate.CandidateID,
		Name:        candidate.Name,
		Description: candidate.Description,
		PlusVotes:   candidate.PlusVotes,
		MinusVotes:  candidate.MinusVotes,
	}
}

func mapVoterRecord(record entities.VoterRecord) httptransport.VoterRecordResponse {
	return httptransport.VoterRecordResponse{
		ElectionID: record.ElectionID,
		Voter:      record.Voter,
		PlusVotes:  slotsToWire(record.Ballot.Plus[:]),
		MinusVotes: slotsToWire(record.Ballot.Minus[:]),
		HasVoted:   record.HasVoted,
		CastAt:     record.CastAt.Unix(),
	}
}
