package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type InitializeElectionRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	StartTime       int64  `json:"start_time"`
	EndTime         int64  `json:"end_time"`
	NumWinners      int    `json:"num_winners"`
	AllowMinusVotes bool   `json:"allow_minus_votes"`
}

type ElectionResponse struct {
	ElectionID      string `json:"election_id"`
	Authority       string `json:"authority"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	StartTime       int64  `json:"start_time"`
	EndTime         int64  `json:"end_time"`
	NumWinners      uint8  `json:"num_winners"`
	AllowMinusVotes bool   `json:"allow_minus_votes"`
	CandidateCount  uint8  `json:"candidate_count"`
	VoterCount      uint64 `json:"voter_count"`
	IsFinalized     bool   `json:"is_finalized"`
	FinalizedAt     *int64 `json:"finalized_at,omitempty"`
	Replayed        bool   `json:"replayed"`
}

type AddCandidateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CandidateResponse struct {
	ElectionID  string `json:"election_id"`
	CandidateID uint8  `json:"candidate_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PlusVotes   uint64 `json:"plus_votes"`
	MinusVotes  uint64 `json:"minus_votes"`
	Replayed    bool   `json:"replayed,omitempty"`
}

type CandidateListResponse struct {
	Items []CandidateResponse `json:"items"`
}

// CastVoteRequest carries the ballot slots in order. A null entry keeps its
// slot empty.
type CastVoteRequest struct {
	PlusVotes  []*int `json:"plus_votes"`
	MinusVotes []*int `json:"minus_votes"`
}

type VoterRecordResponse struct {
	ElectionID string `json:"election_id"`
	Voter      string `json:"voter"`
	PlusVotes  []*int `json:"plus_votes"`
	MinusVotes []*int `json:"minus_votes"`
	HasVoted   bool   `json:"has_voted"`
	CastAt     int64  `json:"cast_at"`
	VoterCount uint64 `json:"voter_count,omitempty"`
	Replayed   bool   `json:"replayed,omitempty"`
}

type VoteBudgetResponse struct {
	ElectionID     string `json:"election_id"`
	MaxPlusVotes   uint8  `json:"max_plus_votes"`
	MaxMinusVotes  uint8  `json:"max_minus_votes"`
	CandidateCount uint8  `json:"candidate_count"`
}
