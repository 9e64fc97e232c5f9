package d21engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	d21engine "d21vote/contexts/elections/d21-engine"
	httpadapter "d21vote/contexts/elections/d21-engine/adapters/http"
	"d21vote/contexts/elections/d21-engine/application/workers"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/ports"
	httptransport "d21vote/contexts/elections/d21-engine/transport/http"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func intPtr(value int) *int {
	return &value
}

func TestElectionReplayVoteAndRelay(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	module := d21engine.NewInMemoryModule(nil)
	module.Store.SetNow(base)

	request := httptransport.InitializeElectionRequest{
		Name:            "Council",
		StartTime:       base.Add(time.Hour).Unix(),
		EndTime:         base.Add(2 * time.Hour).Unix(),
		NumWinners:      2,
		AllowMinusVotes: true,
	}
	first, err := module.Handler.InitializeElectionHandler(ctx, "authority-1", "idem-init-1", request)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	second, err := module.Handler.InitializeElectionHandler(ctx, "authority-1", "idem-init-1", request)
	if err != nil {
		t.Fatalf("replay initialize failed: %v", err)
	}
	if !second.Replayed || first.ElectionID != second.ElectionID {
		t.Fatalf("expected replayed initialize with same id, got %+v", second)
	}

	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		if _, err := module.Handler.AddCandidateHandler(ctx, first.ElectionID, "authority-1", "", httptransport.AddCandidateRequest{Name: name}); err != nil {
			t.Fatalf("add candidate %s failed: %v", name, err)
		}
	}
	budget, err := module.Handler.VoteBudgetHandler(ctx, first.ElectionID)
	if err != nil {
		t.Fatalf("budget failed: %v", err)
	}
	if budget.MaxPlusVotes != 3 || budget.MaxMinusVotes != 1 {
		t.Fatalf("expected budget 3/1, got %+v", budget)
	}

	module.Store.Advance(90 * time.Minute)

	_, err = module.Handler.CastVoteHandler(ctx, first.ElectionID, "voter-1", "", httptransport.CastVoteRequest{
		PlusVotes: []*int{intPtr(0), intPtr(1), intPtr(2), intPtr(3), intPtr(4)},
	})
	if !errors.Is(err, httpadapter.ErrInvalidBallotShape) {
		t.Fatalf("expected ErrInvalidBallotShape for an over-long list, got %v", err)
	}
	_, err = module.Handler.CastVoteHandler(ctx, first.ElectionID, "voter-1", "", httptransport.CastVoteRequest{
		PlusVotes: []*int{intPtr(300)},
	})
	if !errors.Is(err, domainerrors.ErrInvalidCandidateID) {
		t.Fatalf("expected ErrInvalidCandidateID for an out-of-range id, got %v", err)
	}

	vote := httptransport.CastVoteRequest{
		PlusVotes:  []*int{intPtr(0), nil, intPtr(5)},
		MinusVotes: []*int{intPtr(2)},
	}
	cast, err := module.Handler.CastVoteHandler(ctx, first.ElectionID, "voter-1", "idem-vote-1", vote)
	if err != nil {
		t.Fatalf("cast failed: %v", err)
	}
	replay, err := module.Handler.CastVoteHandler(ctx, first.ElectionID, "voter-1", "idem-vote-1", vote)
	if err != nil {
		t.Fatalf("replay cast failed: %v", err)
	}
	if !replay.Replayed || replay.CastAt != cast.CastAt {
		t.Fatalf("expected replayed vote, got %+v", replay)
	}

	candidates, err := module.Handler.ListCandidatesHandler(ctx, first.ElectionID)
	if err != nil {
		t.Fatalf("list candidates failed: %v", err)
	}
	if candidates.Items[0].PlusVotes != 1 || candidates.Items[5].PlusVotes != 1 || candidates.Items[2].MinusVotes != 1 {
		t.Fatalf("unexpected tallies after replay: %+v", candidates.Items)
	}

	publisher := &capturePublisher{}
	relay := workers.OutboxRelay{
		Outbox:      module.Store,
		Publisher:   publisher,
		Clock:       module.Store,
		TopicPrefix: "d21.",
	}
	published, err := relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	// initialize + 6 candidates + 1 vote
	if published != 8 {
		t.Fatalf("expected 8 relayed events, got %d", published)
	}
	if publisher.topics[0] != "d21.election.initialized" || publisher.topics[7] != "d21.election.vote_cast" {
		t.Fatalf("unexpected topics: %v", publisher.topics)
	}
}
