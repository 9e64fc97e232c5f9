package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	httpadapter "d21vote/contexts/elections/d21-engine/adapters/http"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	electionhttp "d21vote/contexts/elections/d21-engine/transport/http"
)

func (s *Server) handleInitializeElection(w http.ResponseWriter, r *http.Request) {
	const operation = "initialize_election"
	startedAt := time.Now()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		s.writeElectionError(w, operation, startedAt, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req electionhttp.InitializeElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeElectionError(w, operation, startedAt, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.elections.Handler.InitializeElectionHandler(
		r.Context(),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		s.writeElectionDomainError(w, operation, startedAt, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	s.writeElectionOK(w, operation, startedAt, status, resp)
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	const operation = "get_election"
	startedAt := time.Now()

	resp, err := s.elections.Handler.GetElectionHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		s.writeElectionDomainError(w, operation, startedAt, err)
		return
	}
	s.writeElectionOK(w, operation, startedAt, http.StatusOK, resp)
}

func (s *Server) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	const operation = "add_candidate"
	startedAt := time.Now()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		s.writeElectionError(w, operation, startedAt, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req electionhttp.AddCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeElectionError(w, operation, startedAt, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.elections.Handler.AddCandidateHandler(
		r.Context(),
		r.PathValue("election_id"),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		s.writeElectionDomainError(w, operation, startedAt, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	s.writeElectionOK(w, operation, startedAt, status, resp)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	const operation = "list_candidates"
	startedAt := time.Now()

	resp, err := s.elections.Handler.ListCandidatesHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		s.writeElectionDomainError(w, operation, startedAt, err)
		return
	}
	s.writeElectionOK(w, operation, startedAt, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	const operation = "cast_vote"
	startedAt := time.Now()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		s.writeElectionError(w, operation, startedAt, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req electionhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeElectionError(w, operation, startedAt, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.elections.Handler.CastVoteHandler(
		r.Context(),
		r.PathValue("election_id"),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		s.writeElectionDomainError(w, operation, startedAt, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	s.writeElectionOK(w, operation, startedAt, status, resp)
}

func (s *Server) handleGetVoterRecord(w http.ResponseWriter, r *http.Request) {
	const operation = "get_voter_record"
	startedAt := time.Now()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		s.writeElectionError(w, operation, startedAt, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.elections.Handler.GetVoterRecordHandler(r.Context(), r.PathValue("election_id"), userID)
	if err != nil {
		s.writeElectionDomainError(w, operation, startedAt, err)
		return
	}
	s.writeElectionOK(w, operation, startedAt, http.StatusOK, resp)
}

func (s *Server) handleFinalizeElection(w http.ResponseWriter, r *http.Request) {
	const operation = "finalize_election"
	startedAt := time.Now()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		s.writeElectionError(w, operation, startedAt, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.elections.Handler.FinalizeElectionHandler(
		r.Context(),
		r.PathValue("election_id"),
		userID,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		s.writeElectionDomainError(w, operation, startedAt, err)
		return
	}
	s.writeElectionOK(w, operation, startedAt, http.StatusOK, resp)
}

func (s *Server) handleVoteBudget(w http.ResponseWriter, r *http.Request) {
	const operation = "vote_budget"
	startedAt := time.Now()

	resp, err := s.elections.Handler.VoteBudgetHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		s.writeElectionDomainError(w, operation, startedAt, err)
		return
	}
	s.writeElectionOK(w, operation, startedAt, http.StatusOK, resp)
}

func (s *Server) writeElectionOK(w http.ResponseWriter, operation string, startedAt time.Time, status int, payload any) {
	s.metrics.ObserveOperation(operation, "ok", time.Since(startedAt))
	writeJSON(w, status, payload)
}

func (s *Server) writeElectionDomainError(w http.ResponseWriter, operation string, startedAt time.Time, err error) {
	status, code := electionErrorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("election request failed",
			"event", "http_election_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"operation", operation,
			"error", err.Error(),
		)
		message = "internal server error"
	}
	s.writeElectionError(w, operation, startedAt, status, code, message)
}

func (s *Server) writeElectionError(w http.ResponseWriter, operation string, startedAt time.Time, status int, code string, message string) {
	s.metrics.ObserveOperation(operation, code, time.Since(startedAt))
	writeJSON(w, status, electionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func electionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, httpadapter.ErrInvalidBallotShape):
		return http.StatusBadRequest, "invalid_ballot_shape"
	case errors.Is(err, domainerrors.ErrInvalidTimeRange):
		return http.StatusUnprocessableEntity, "invalid_time_range"
	case errors.Is(err, domainerrors.ErrInvalidWinnerCount):
		return http.StatusUnprocessableEntity, "invalid_winner_count"
	case errors.Is(err, domainerrors.ErrNameTooLong):
		return http.StatusUnprocessableEntity, "name_too_long"
	case errors.Is(err, domainerrors.ErrDescriptionTooLong):
		return http.StatusUnprocessableEntity, "description_too_long"
	case errors.Is(err, domainerrors.ErrTooManyCandidates):
		return http.StatusUnprocessableEntity, "too_many_candidates"
	case errors.Is(err, domainerrors.ErrTooManyPlusVotes):
		return http.StatusUnprocessableEntity, "too_many_plus_votes"
	case errors.Is(err, domainerrors.ErrTooManyMinusVotes):
		return http.StatusUnprocessableEntity, "too_many_minus_votes"
	case errors.Is(err, domainerrors.ErrInsufficientPlusVotes):
		return http.StatusUnprocessableEntity, "insufficient_plus_votes"
	case errors.Is(err, domainerrors.ErrInvalidCandidateID):
		return http.StatusUnprocessableEntity, "invalid_candidate_id"
	case errors.Is(err, domainerrors.ErrDuplicateVote):
		return http.StatusUnprocessableEntity, "duplicate_vote"
	case errors.Is(err, domainerrors.ErrConflictingVote):
		return http.StatusUnprocessableEntity, "conflicting_vote"
	case errors.Is(err, domainerrors.ErrElectionFinalized):
		return http.StatusConflict, "election_finalized"
	case errors.Is(err, domainerrors.ErrElectionStarted):
		return http.StatusConflict, "election_started"
	case errors.Is(err, domainerrors.ErrElectionNotActive):
		return http.StatusConflict, "election_not_active"
	case errors.Is(err, domainerrors.ErrElectionNotEnded):
		return http.StatusConflict, "election_not_ended"
	case errors.Is(err, domainerrors.ErrAlreadyVoted):
		return http.StatusConflict, "already_voted"
	case errors.Is(err, domainerrors.ErrElectionExists):
		return http.StatusConflict, "election_exists"
	case errors.Is(err, domainerrors.ErrIdempotencyConflict):
		return http.StatusConflict, "idempotency_conflict"
	case errors.Is(err, domainerrors.ErrIdempotencyInFlight):
		return http.StatusConflict, "idempotency_in_flight"
	case errors.Is(err, domainerrors.ErrConflict):
		return http.StatusConflict, "state_conflict"
	case errors.Is(err, domainerrors.ErrNotElectionAuthority):
		return http.StatusForbidden, "not_election_authority"
	case errors.Is(err, domainerrors.ErrIdentityRequired):
		return http.StatusUnauthorized, "identity_required"
	case errors.Is(err, domainerrors.ErrElectionNotFound):
		return http.StatusNotFound, "election_not_found"
	case errors.Is(err, domainerrors.ErrCandidateNotFound):
		return http.StatusNotFound, "candidate_not_found"
	case errors.Is(err, domainerrors.ErrVoterRecordNotFound):
		return http.StatusNotFound, "voter_record_not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
