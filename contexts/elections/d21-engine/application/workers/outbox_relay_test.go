package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"d21vote/contexts/elections/d21-engine/adapters/memory"
	"d21vote/contexts/elections/d21-engine/domain/entities"
	"d21vote/contexts/elections/d21-engine/ports"
)

type recordingPublisher struct {
	topics []string
	failOn int
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	if p.failOn > 0 && len(p.topics)+1 == p.failOn {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func seedOutbox(t *testing.T, store *memory.Store) {
	t.Helper()
	at := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	err := store.CreateElection(context.Background(),
		entities.Election{ElectionID: "election-1", Authority: "a", Name: "n"},
		ports.EventEnvelope{EventID: "evt-1", EventType: "election.initialized", PartitionKey: "election-1", OccurredAt: at},
		ports.EventEnvelope{EventID: "evt-2", EventType: "election.candidate_added", PartitionKey: "election-1", OccurredAt: at},
		ports.EventEnvelope{EventID: "evt-3", EventType: "election.finalized", PartitionKey: "election-1", OccurredAt: at},
	)
	if err != nil {
		t.Fatalf("seed outbox failed: %v", err)
	}
}

func TestOutboxRelayPublishesAndMarksRows(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store)
	publisher := &recordingPublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store, TopicPrefix: "d21.", BatchSize: 10}

	published, err := relay.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if published != 3 {
		t.Fatalf("expected 3 published rows, got %d", published)
	}
	want := []string{"d21.election.initialized", "d21.election.candidate_added", "d21.election.finalized"}
	for i, topic := range want {
		if publisher.topics[i] != topic {
			t.Fatalf("topic %d: expected %s, got %s", i, topic, publisher.topics[i])
		}
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox, got %d rows", len(pending))
	}
}

func TestOutboxRelayStopsOnPublishFailure(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store)
	publisher := &recordingPublisher{failOn: 2}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, BatchSize: 10}

	published, err := relay.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected publish failure")
	}
	if published != 1 {
		t.Fatalf("expected 1 published row before failure, got %d", published)
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 2 || pending[0].OutboxID != "evt-2" {
		t.Fatalf("expected evt-2 and evt-3 still pending, got %+v", pending)
	}
}

func TestOutboxRelayRunReportsCycleOutcomes(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outcomes := make(chan int, 1)
	relay := OutboxRelay{
		Outbox:    store,
		Publisher: &recordingPublisher{},
		Clock:     store,
		BatchSize: 10,
		Observe: func(published int, err error) {
			if err != nil {
				t.Errorf("unexpected relay error: %v", err)
			}
			select {
			case outcomes <- published:
			default:
			}
			cancel()
		},
	}

	if err := relay.Run(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := <-outcomes; got != 3 {
		t.Fatalf("expected first cycle to report 3 rows, got %d", got)
	}
}
