package errors

import "errors"

var (
	// Configuration.
	ErrInvalidTimeRange   = errors.New("invalid time range")
	ErrInvalidWinnerCount = errors.New("invalid winner count")
	ErrNameTooLong        = errors.New("name too long")
	ErrDescriptionTooLong = errors.New("description too long")

	// Lifecycle.
	ErrElectionFinalized = errors.New("election is finalized")
	ErrElectionStarted   = errors.New("election has started")
	ErrElectionNotActive = errors.New("election is not active")
	ErrElectionNotEnded  = errors.New("election not ended")

	// Capacity.
	ErrTooManyCandidates     = errors.New("too many candidates")
	ErrTooManyPlusVotes      = errors.New("too many plus votes")
	ErrTooManyMinusVotes     = errors.New("too many minus votes")
	ErrInsufficientPlusVotes = errors.New("insufficient plus votes for minus voting")

	// Ballot integrity.
	ErrInvalidCandidateID = errors.New("invalid candidate id")
	ErrDuplicateVote      = errors.New("duplicate vote")
	ErrConflictingVote    = errors.New("conflicting vote")

	// Identity.
	ErrAlreadyVoted         = errors.New("already voted")
	ErrIdentityRequired     = errors.New("caller identity is required")
	ErrNotElectionAuthority = errors.New("caller is not the election authority")

	// Storage.
	ErrElectionNotFound    = errors.New("election not found")
	ErrElectionExists      = errors.New("election already exists for authority and name")
	ErrCandidateNotFound   = errors.New("candidate not found")
	ErrVoterRecordNotFound = errors.New("voter record not found")
	ErrConflict            = errors.New("election state conflict")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrIdempotencyInFlight = errors.New("idempotency key is in flight")
)
