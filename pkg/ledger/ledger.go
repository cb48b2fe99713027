package ledger

import (
	"context"
	"time"
)

// Client talks to the voting contract. Implementations must be safe for concurrent use.
// Blocking calls honour ctx; a context deadline is reported as ErrTimeout.
type Client interface {
	// CreateElection submits the create transaction and waits for its receipt. The receipt
	// carries the contract-assigned election id.
	CreateElection(ctx context.Context, params ElectionParams) (*Receipt, error)
	// Vote submits a vote for voter and waits for its receipt.
	Vote(ctx context.Context, chainElectionID uint64, voter string, optionIndex int) (*Receipt, error)
	// WaitForTransaction waits for a transaction submitted elsewhere (e.g. by a wallet) and
	// requires it to have succeeded.
	WaitForTransaction(ctx context.Context, txHash string) (*Receipt, error)
	HasVoted(ctx context.Context, chainElectionID uint64, voter string) (bool, error)
	GetSummary(ctx context.Context, chainElectionID uint64) (*Summary, error)
	GetCandidates(ctx context.Context, chainElectionID uint64) ([]Candidate, error)
	ContractAddress() string
	Close()
}

// ElectionParams mirrors the contract's createElection arguments.
type ElectionParams struct {
	Title                 string
	Description           string
	StartTime             time.Time
	EndTime               time.Time
	IsPublic              bool
	CandidateNames        []string
	CandidateDescriptions []string
}

// Receipt is a confirmed, successful transaction. Event fields are filled from the
// ElectionCreated or Voted log when the transaction emitted one.
type Receipt struct {
	TxHash          string
	BlockNumber     uint64
	ContractAddress string
	ChainElectionID *uint64
	Voter           string
	CandidateID     *uint64
}

type Summary struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	Creator        string    `json:"creator"`
	IsPublic       bool      `json:"isPublic"`
	CandidateCount uint64    `json:"candidateCount"`
	TotalVotes     uint64    `json:"totalVotes"`
}

type Candidate struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	VoteCount   uint64 `json:"voteCount"`
}

// Mode selects the ledger implementation.
type Mode string

const (
	// ModeNone records client-submitted transactions without verifying them.
	ModeNone      Mode = "none"
	ModeSimulated Mode = "simulated"
	ModeEthereum  Mode = "ethereum"
)

// ParseMode accepts the LEDGER_MODE values.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeNone, ModeSimulated, ModeEthereum:
		return m, true
	}
	return "", false
}
