package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"d21vote/contexts/elections/d21-engine/adapters/ids"
	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	seq       uint64
	published bool
}

// Store keeps the whole engine state in process. One store-wide lock
// serializes units of work, which is stricter than the per-election locking
// of the postgres adapter but observably equivalent.
type Store struct {
	mu sync.RWMutex

	elections   map[string]entities.Election
	candidates  map[string]map[uint8]entities.Candidate
	voters      map[string]map[string]entities.VoterRecord
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	outboxSeq   uint64

	clockMu sync.Mutex
	now     time.Time
}

func NewStore() *Store {
	return &Store{
		elections:   make(map[string]entities.Election),
		candidates:  make(map[string]map[uint8]entities.Candidate),
		voters:      make(map[string]map[string]entities.VoterRecord),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
	}
}

// SetNow pins the store clock. A zero time restores wall-clock time.
func (s *Store) SetNow(now time.Time) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.now = now.UTC()
}

// Advance moves a pinned clock forward by d.
func (s *Store) Advance(d time.Duration) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	if s.now.IsZero() {
		s.now = time.Now().UTC()
	}
	s.now = s.now.Add(d)
}

func (s *Store) Now() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) ElectionID(authority string, name string) string {
	return ids.ElectionID(authority, name)
}

func (s *Store) CreateElection(_ context.Context, election entities.Election, events ...ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	electionID := strings.TrimSpace(election.ElectionID)
	if _, exists := s.elections[electionID]; exists {
		return domainerrors.ErrElectionExists
	}
	rows := make([]outboxRecord, 0, len(events))
	for _, event := range events {
		row, err := s.newOutboxRecord(event)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	s.elections[electionID] = election
	s.candidates[electionID] = make(map[uint8]entities.Candidate)
	s.voters[electionID] = make(map[string]entities.VoterRecord)
	for _, row := range rows {
		s.appendOutboxLocked(row)
	}
	return nil
}

func (s *Store) GetElection(_ context.Context, electionID string) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return election, nil
}

func (s *Store) ListCandidates(_ context.Context, electionID string) ([]entities.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.candidates[strings.TrimSpace(electionID)]
	items := make([]entities.Candidate, 0, len(byID))
	for _, candidate := range byID {
		items = append(items, candidate)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CandidateID < items[j].CandidateID
	})
	return items, nil
}

func (s *Store) GetVoterRecord(_ context.Context, electionID string, voter string) (entities.VoterRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.voters[strings.TrimSpace(electionID)][strings.TrimSpace(voter)]
	return record, ok, nil
}

func (s *Store) WithElection(ctx context.Context, electionID string, fn func(tx ports.ElectionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	electionID = strings.TrimSpace(electionID)
	election, ok := s.elections[electionID]
	if !ok {
		return domainerrors.ErrElectionNotFound
	}
	tx := &electionTx{
		store:      s,
		election:   election,
		candidates: make(map[uint8]entities.Candidate),
		voters:     make(map[string]entities.VoterRecord),
		deltas:     make(map[uint8][2]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) Claim(_ context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	if existing, exists := s.idempotency[key]; exists && existing.ExpiresAt.After(now.UTC()) {
		switch {
		case existing.RequestHash != record.RequestHash:
			return ports.IdempotencyRecord{}, false, domainerrors.ErrIdempotencyConflict
		case existing.ResultID == "":
			return ports.IdempotencyRecord{}, false, domainerrors.ErrIdempotencyInFlight
		default:
			return existing, true, nil
		}
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return ports.IdempotencyRecord{}, false, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	if existing, exists := s.idempotency[key]; exists {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		if existing.ResultID != "" && existing.ResultID != record.ResultID {
			return domainerrors.ErrIdempotencyConflict
		}
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		ResultID:    strings.TrimSpace(record.ResultID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return nil
}

func (s *Store) Release(_ context.Context, key string, requestHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	if existing, exists := s.idempotency[key]; exists && existing.ResultID == "" && existing.RequestHash == requestHash {
		delete(s.idempotency, key)
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].seq < rows[j].seq
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) newOutboxRecord(envelope ports.EventEnvelope) (outboxRecord, error) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return outboxRecord{}, err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok && !bytes.Equal(existing.message.Payload, payload) {
		return outboxRecord{}, domainerrors.ErrConflict
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}, nil
}

func (s *Store) appendOutboxLocked(row outboxRecord) {
	if _, ok := s.outbox[row.message.OutboxID]; ok {
		return
	}
	s.outboxSeq++
	row.seq = s.outboxSeq
	s.outbox[row.message.OutboxID] = row
}

// electionTx stages writes against a locked election; nothing reaches the
// store maps until commit.
type electionTx struct {
	store *Store

	election      entities.Election
	electionDirty bool
	candidates    map[uint8]entities.Candidate
	voters        map[string]entities.VoterRecord
	deltas        map[uint8][2]uint64
	outbox        []outboxRecord
}

func (tx *electionTx) Election() entities.Election {
	return tx.election
}

func (tx *electionTx) GetVoterRecord(_ context.Context, voter string) (entities.VoterRecord, bool, error) {
	voter = strings.TrimSpace(voter)
	if record, ok := tx.voters[voter]; ok {
		return record, true, nil
	}
	record, ok := tx.store.voters[tx.election.ElectionID][voter]
	return record, ok, nil
}

func (tx *electionTx) SaveElection(_ context.Context, election entities.Election) error {
	if election.ElectionID != tx.election.ElectionID {
		return domainerrors.ErrConflict
	}
	tx.election = election
	tx.electionDirty = true
	return nil
}

func (tx *electionTx) CreateCandidate(_ context.Context, candidate entities.Candidate) error {
	if _, ok := tx.candidates[candidate.CandidateID]; ok {
		return domainerrors.ErrConflict
	}
	if _, ok := tx.store.candidates[tx.election.ElectionID][candidate.CandidateID]; ok {
		return domainerrors.ErrConflict
	}
	candidate.ElectionID = tx.election.ElectionID
	tx.candidates[candidate.CandidateID] = candidate
	return nil
}

func (tx *electionTx) CreateVoterRecord(ctx context.Context, record entities.VoterRecord) error {
	if _, found, _ := tx.GetVoterRecord(ctx, record.Voter); found {
		return domainerrors.ErrAlreadyVoted
	}
	record.ElectionID = tx.election.ElectionID
	record.Voter = strings.TrimSpace(record.Voter)
	tx.voters[record.Voter] = record
	return nil
}

func (tx *electionTx) AddCandidateVotes(_ context.Context, candidateID uint8, plus uint64, minus uint64) error {
	_, staged := tx.candidates[candidateID]
	_, committed := tx.store.candidates[tx.election.ElectionID][candidateID]
	if !staged && !committed {
		return domainerrors.ErrCandidateNotFound
	}
	delta := tx.deltas[candidateID]
	delta[0] += plus
	delta[1] += minus
	tx.deltas[candidateID] = delta
	return nil
}

func (tx *electionTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	row, err := tx.store.newOutboxRecord(envelope)
	if err != nil {
		return err
	}
	tx.outbox = append(tx.outbox, row)
	return nil
}

func (tx *electionTx) commit() {
	s := tx.store
	electionID := tx.election.ElectionID
	if tx.electionDirty {
		s.elections[electionID] = tx.election
	}
	for id, candidate := range tx.candidates {
		s.candidates[electionID][id] = candidate
	}
	for voter, record := range tx.voters {
		s.voters[electionID][voter] = record
	}
	for id, delta := range tx.deltas {
		candidate := s.candidates[electionID][id]
		candidate.PlusVotes += delta[0]
		candidate.MinusVotes += delta[1]
		s.candidates[electionID][id] = candidate
	}
	for _, row := range tx.outbox {
		s.appendOutboxLocked(row)
	}
}
