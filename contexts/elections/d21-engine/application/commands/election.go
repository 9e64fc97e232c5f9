package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "d21vote/contexts/elections/d21-engine/application"
	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/domain/rules"
	"d21vote/contexts/elections/d21-engine/ports"
	contractsv1 "d21vote/contracts/gen/events/v1"
)

// InitializeElectionCommand creates a new election owned by Authority.
type InitializeElectionCommand struct {
	Authority       string
	IdempotencyKey  string
	Name            string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	NumWinners      uint8
	AllowMinusVotes bool
}

// ElectionResult carries the election state after a lifecycle command.
type ElectionResult struct {
	Election entities.Election
	Replayed bool
}

// ElectionUseCase is the election lifecycle controller. Each command is a
// single validate-then-mutate unit of work: every precondition is checked
// against a locked election snapshot before anything is written.
type ElectionUseCase struct {
	Elections      ports.ElectionRepository
	Keys           ports.ElectionKeyer
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// InitializeElection validates the configuration and creates the election
// keyed by (authority, name). A second election with the same key fails in
// the repository rather than overwriting the first.
//
// StartTime and EndTime are truncated to whole seconds before the range
// check, so two instants inside the same second fail ErrInvalidTimeRange.
func (uc ElectionUseCase) InitializeElection(ctx context.Context, cmd InitializeElectionCommand) (ElectionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	authority := strings.TrimSpace(cmd.Authority)
	logger.Info("election initialize processing started",
		"event", "election_initialize_started",
		"module", "elections/d21-engine",
		"layer", "application",
		"authority", authority,
		"name", cmd.Name,
	)
	if authority == "" {
		return ElectionResult{}, domainerrors.ErrIdentityRequired
	}
	startTime := cmd.StartTime.UTC().Truncate(time.Second)
	endTime := cmd.EndTime.UTC().Truncate(time.Second)
	if err := rules.ValidateElectionConfig(startTime, endTime, cmd.NumWinners, cmd.Name, cmd.Description); err != nil {
		logger.Warn("election initialize validation failed",
			"event", "election_initialize_validation_failed",
			"module", "elections/d21-engine",
			"layer", "application",
			"authority", authority,
			"error", err.Error(),
		)
		return ElectionResult{}, err
	}

	now := uc.now()
	requestHash := hashCommand("initialize_election", map[string]any{
		"authority":         authority,
		"name":              cmd.Name,
		"description":       cmd.Description,
		"start_time":        startTime.Unix(),
		"end_time":          endTime.Unix(),
		"num_winners":       cmd.NumWinners,
		"allow_minus_votes": cmd.AllowMinusVotes,
	})
	if electionID, found, err := uc.claimKey(ctx, cmd.IdempotencyKey, requestHash, now); err != nil {
		return ElectionResult{}, err
	} else if found {
		election, err := uc.Elections.GetElection(ctx, electionID)
		if err != nil {
			return ElectionResult{}, err
		}
		logger.Info("election initialize replayed",
			"event", "election_initialize_replayed",
			"module", "elections/d21-engine",
			"layer", "application",
			"election_id", election.ElectionID,
		)
		return ElectionResult{Election: election, Replayed: true}, nil
	}

	election := entities.Election{
		ElectionID:      uc.Keys.ElectionID(authority, cmd.Name),
		Authority:       authority,
		Name:            cmd.Name,
		Description:     cmd.Description,
		StartTime:       startTime,
		EndTime:         endTime,
		NumWinners:      cmd.NumWinners,
		AllowMinusVotes: cmd.AllowMinusVotes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	event, err := uc.buildEvent(ctx, contractsv1.EventElectionInitialized, election, now, map[string]any{
		"name":              election.Name,
		"start_time":        election.StartTime.Unix(),
		"end_time":          election.EndTime.Unix(),
		"num_winners":       election.NumWinners,
		"allow_minus_votes": election.AllowMinusVotes,
	})
	if err != nil {
		uc.releaseKey(ctx, cmd.IdempotencyKey, requestHash)
		return ElectionResult{}, err
	}
	if err := uc.Elections.CreateElection(ctx, election, event); err != nil {
		uc.releaseKey(ctx, cmd.IdempotencyKey, requestHash)
		logger.Warn("election initialize rejected by store",
			"event", "election_initialize_store_rejected",
			"module", "elections/d21-engine",
			"layer", "application",
			"election_id", election.ElectionID,
			"error", err.Error(),
		)
		return ElectionResult{}, err
	}
	uc.rememberResult(ctx, cmd.IdempotencyKey, requestHash, election.ElectionID, now)

	logger.Info("election initialized",
		"event", "election_initialized",
		"module", "elections/d21-engine",
		"layer", "application",
		"election_id", election.ElectionID,
		"authority", election.Authority,
		"name", election.Name,
		"num_winners", election.NumWinners,
		"allow_minus_votes", election.AllowMinusVotes,
	)
	return ElectionResult{Election: election}, nil
}

// now reads the clock at second granularity; all window comparisons are done
// on whole unix seconds.
func (uc ElectionUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now.Truncate(time.Second)
}

func requireAuthority(election entities.Election, authority string) error {
	if election.Authority != authority {
		return domainerrors.ErrNotElectionAuthority
	}
	return nil
}
