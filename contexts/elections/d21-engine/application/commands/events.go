package commands

import (
	"context"
	"encoding/json"
	"time"

	"d21vote/contexts/elections/d21-engine/domain/entities"
	"d21vote/contexts/elections/d21-engine/ports"
)

func newElectionEnvelope(
	eventID string,
	eventType string,
	electionID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Election events are partitioned by election so consumers see one
	// election's history in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "d21-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "election_id",
		PartitionKey:     electionID,
		Data:             payload,
	}, nil
}

func (uc ElectionUseCase) buildEvent(
	ctx context.Context,
	eventType string,
	election entities.Election,
	occurredAt time.Time,
	metadata map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	data := map[string]any{
		"election_id":     election.ElectionID,
		"authority":       election.Authority,
		"candidate_count": election.CandidateCount,
		"voter_count":     election.VoterCount,
		"is_finalized":    election.IsFinalized,
		"occurred_at":     occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	return newElectionEnvelope(eventID, eventType, election.ElectionID, occurredAt, data)
}
