package ports

import (
	"context"
	"time"

	"d21vote/contexts/elections/d21-engine/domain/entities"
	contractsv1 "d21vote/contracts/gen/events/v1"
)

// ElectionRepository is the durable record store. Implementations must make
// every create-if-absent linearizable and run WithElection as one atomic,
// per-election serialized unit of work.
type ElectionRepository interface {
	// CreateElection inserts the election only if its id is free and appends
	// the given events in the same unit of work. An existing id yields
	// ErrElectionExists.
	CreateElection(ctx context.Context, election entities.Election, events ...EventEnvelope) error
	GetElection(ctx context.Context, electionID string) (entities.Election, error)
	ListCandidates(ctx context.Context, electionID string) ([]entities.Candidate, error)
	GetVoterRecord(ctx context.Context, electionID string, voter string) (entities.VoterRecord, bool, error)

	// WithElection locks the election, hands fn a snapshot of it and commits
	// the writes issued through tx only when fn returns nil.
	WithElection(ctx context.Context, electionID string, fn func(tx ElectionTx) error) error
}

// ElectionTx is the write surface available inside WithElection.
type ElectionTx interface {
	Election() entities.Election
	GetVoterRecord(ctx context.Context, voter string) (entities.VoterRecord, bool, error)
	SaveElection(ctx context.Context, election entities.Election) error
	// CreateCandidate fails with ErrConflict when the id is already taken.
	CreateCandidate(ctx context.Context, candidate entities.Candidate) error
	// CreateVoterRecord fails with ErrAlreadyVoted when the voter already has
	// a record for the election.
	CreateVoterRecord(ctx context.Context, record entities.VoterRecord) error
	AddCandidateVotes(ctx context.Context, candidateID uint8, plus uint64, minus uint64) error
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	ResultID    string
	ExpiresAt   time.Time
}

// IdempotencyStore reserves keys ahead of the unit of work. A claim is a
// record with an empty ResultID; Put completes it and Release drops it.
type IdempotencyStore interface {
	// Claim reserves record.Key for record.RequestHash unless a live record
	// exists. A completed record with the same hash is returned with true; a
	// different hash fails ErrIdempotencyConflict and a pending claim with the
	// same hash fails ErrIdempotencyInFlight.
	Claim(ctx context.Context, record IdempotencyRecord, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
	Release(ctx context.Context, key string, requestHash string) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// ElectionKeyer derives a stable election id from the (authority, name) key,
// so the same pair always lands on the same record.
type ElectionKeyer interface {
	ElectionID(authority string, name string) string
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
