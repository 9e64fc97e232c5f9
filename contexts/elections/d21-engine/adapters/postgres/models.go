package postgresadapter

import (
	"strings"
	"time"

	"d21vote/contexts/elections/d21-engine/domain/entities"
)

type electionModel struct {
	ElectionID      string     `gorm:"column:election_id;primaryKey"`
	Authority       string     `gorm:"column:authority;not null;uniqueIndex:ux_elections_authority_name"`
	Name            string     `gorm:"column:name;not null;uniqueIndex:ux_elections_authority_name"`
	Description     string     `gorm:"column:description;not null"`
	StartTime       time.Time  `gorm:"column:start_time;not null"`
	EndTime         time.Time  `gorm:"column:end_time;not null"`
	NumWinners      int16      `gorm:"column:num_winners;not null"`
	AllowMinusVotes bool       `gorm:"column:allow_minus_votes;not null"`
	CandidateCount  int16      `gorm:"column:candidate_count;not null;default:0"`
	VoterCount      int64      `gorm:"column:voter_count;not null;default:0"`
	IsFinalized     bool       `gorm:"column:is_finalized;not null;default:false"`
	FinalizedAt     *time.Time `gorm:"column:finalized_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (electionModel) TableName() string {
	return "d21_elections"
}

func electionModelFromEntity(election entities.Election) electionModel {
	row := electionModel{
		ElectionID:      strings.TrimSpace(election.ElectionID),
		Authority:       election.Authority,
		Name:            election.Name,
		Description:     election.Description,
		StartTime:       election.StartTime.UTC(),
		EndTime:         election.EndTime.UTC(),
		NumWinners:      int16(election.NumWinners),
		AllowMinusVotes: election.AllowMinusVotes,
		CandidateCount:  int16(election.CandidateCount),
		VoterCount:      int64(election.VoterCount),
		IsFinalized:     election.IsFinalized,
		FinalizedAt:     normalizeOptionalTime(election.FinalizedAt),
		CreatedAt:       election.CreatedAt.UTC(),
		UpdatedAt:       election.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m electionModel) toEntity() entities.Election {
	return entities.Election{
		ElectionID:      m.ElectionID,
		Authority:       m.Authority,
		Name:            m.Name,
		Description:     m.Description,
		StartTime:       m.StartTime.UTC(),
		EndTime:         m.EndTime.UTC(),
		NumWinners:      uint8(m.NumWinners),
		AllowMinusVotes: m.AllowMinusVotes,
		CandidateCount:  uint8(m.CandidateCount),
		VoterCount:      uint64(m.VoterCount),
		IsFinalized:     m.IsFinalized,
		FinalizedAt:     normalizeOptionalTime(m.FinalizedAt),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

type candidateModel struct {
	ElectionID  string    `gorm:"column:election_id;primaryKey"`
	CandidateID int16     `gorm:"column:candidate_id;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description;not null"`
	PlusVotes   int64     `gorm:"column:plus_votes;not null;default:0"`
	MinusVotes  int64     `gorm:"column:minus_votes;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (candidateModel) TableName() string {
	return "d21_candidates"
}

func candidateModelFromEntity(candidate entities.Candidate) candidateModel {
	return candidateModel{
		ElectionID:  strings.TrimSpace(candidate.ElectionID),
		CandidateID: int16(candidate.CandidateID),
		Name:        candidate.Name,
		Description: candidate.Description,
		PlusVotes:   int64(candidate.PlusVotes),
		MinusVotes:  int64(candidate.MinusVotes),
		CreatedAt:   candidate.CreatedAt.UTC(),
	}
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		ElectionID:  m.ElectionID,
		CandidateID: uint8(m.CandidateID),
		Name:        m.Name,
		Description: m.Description,
		PlusVotes:   uint64(m.PlusVotes),
		MinusVotes:  uint64(m.MinusVotes),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

// voterRecordModel stores the ballot slot by slot; a NULL column is an empty
// slot.
type voterRecordModel struct {
	ElectionID string    `gorm:"column:election_id;primaryKey"`
	Voter      string    `gorm:"column:voter;primaryKey"`
	Plus0      *int16    `gorm:"column:plus_0"`
	Plus1      *int16    `gorm:"column:plus_1"`
	Plus2      *int16    `gorm:"column:plus_2"`
	Plus3      *int16    `gorm:"column:plus_3"`
	Minus0     *int16    `gorm:"column:minus_0"`
	Minus1     *int16    `gorm:"column:minus_1"`
	HasVoted   bool      `gorm:"column:has_voted;not null"`
	CastAt     time.Time `gorm:"column:cast_at"`
}

func (voterRecordModel) TableName() string {
	return "d21_voter_records"
}

func voterRecordModelFromEntity(record entities.VoterRecord) voterRecordModel {
	return voterRecordModel{
		ElectionID: strings.TrimSpace(record.ElectionID),
		Voter:      strings.TrimSpace(record.Voter),
		Plus0:      slotColumn(record.Ballot.Plus[0]),
		Plus1:      slotColumn(record.Ballot.Plus[1]),
		Plus2:      slotColumn(record.Ballot.Plus[2]),
		Plus3:      slotColumn(record.Ballot.Plus[3]),
		Minus0:     slotColumn(record.Ballot.Minus[0]),
		Minus1:     slotColumn(record.Ballot.Minus[1]),
		HasVoted:   record.HasVoted,
		CastAt:     record.CastAt.UTC(),
	}
}

func (m voterRecordModel) toEntity() entities.VoterRecord {
	return entities.VoterRecord{
		ElectionID: m.ElectionID,
		Voter:      m.Voter,
		Ballot: entities.Ballot{
			Plus: [entities.MaxPlusSlots]entities.Selection{
				slotSelection(m.Plus0),
				slotSelection(m.Plus1),
				slotSelection(m.Plus2),
				slotSelection(m.Plus3),
			},
			Minus: [entities.MaxMinusSlots]entities.Selection{
				slotSelection(m.Minus0),
				slotSelection(m.Minus1),
			},
		},
		HasVoted: m.HasVoted,
		CastAt:   m.CastAt.UTC(),
	}
}

func slotColumn(slot entities.Selection) *int16 {
	if !slot.Present {
		return nil
	}
	value := int16(slot.CandidateID)
	return &value
}

func slotSelection(value *int16) entities.Selection {
	if value == nil {
		return entities.Selection{}
	}
	return entities.Pick(uint8(*value))
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	ResultID    string    `gorm:"column:result_id;not null"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "d21_idempotency"
}

type outboxModel struct {
	Seq          int64      `gorm:"column:seq;autoIncrement;uniqueIndex"`
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "d21_outbox"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
