package entities

import "time"

const (
	MaxNameLength        = 50
	MaxDescriptionLength = 200
	MaxCandidates        = 50

	MaxPlusSlots  = 4
	MaxMinusSlots = 2
)

// Election is the aggregate root. Everything except the counters and the
// finalization flag is fixed at creation.
type Election struct {
	ElectionID      string
	Authority       string
	Name            string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	NumWinners      uint8
	AllowMinusVotes bool
	CandidateCount  uint8
	VoterCount      uint64
	IsFinalized     bool
	FinalizedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether now falls inside the inclusive voting window.
func (e Election) IsActive(now time.Time) bool {
	return !now.Before(e.StartTime) && !now.After(e.EndTime)
}

// HasStarted reports whether candidate registration is closed.
func (e Election) HasStarted(now time.Time) bool {
	return !now.Before(e.StartTime)
}

// HasEnded reports whether the voting window is strictly in the past.
func (e Election) HasEnded(now time.Time) bool {
	return now.After(e.EndTime)
}

type Candidate struct {
	ElectionID  string
	CandidateID uint8
	Name        string
	Description string
	PlusVotes   uint64
	MinusVotes  uint64
	CreatedAt   time.Time
}

// Selection is one ballot slot. The zero value is an empty slot.
type Selection struct {
	CandidateID uint8
	Present     bool
}

func Pick(candidateID uint8) Selection {
	return Selection{CandidateID: candidateID, Present: true}
}

// Ballot keeps the fixed slot layout of a voter record.
type Ballot struct {
	Plus  [MaxPlusSlots]Selection
	Minus [MaxMinusSlots]Selection
}

// PlusVotes returns the present plus selections in slot order.
func (b Ballot) PlusVotes() []uint8 {
	return presentSelections(b.Plus[:])
}

// MinusVotes returns the present minus selections in slot order.
func (b Ballot) MinusVotes() []uint8 {
	return presentSelections(b.Minus[:])
}

func presentSelections(slots []Selection) []uint8 {
	items := make([]uint8, 0, len(slots))
	for _, slot := range slots {
		if slot.Present {
			items = append(items, slot.CandidateID)
		}
	}
	return items
}

type VoterRecord struct {
	ElectionID string
	Voter      string
	Ballot     Ballot
	HasVoted   bool
	CastAt     time.Time
}

// VoteBudget is the per-voter endorsement allowance of an election.
type VoteBudget struct {
	MaxPlus  uint8
	MaxMinus uint8
}
