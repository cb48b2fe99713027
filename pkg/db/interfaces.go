package db

import (
	"context"

	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
)

// Store is the Record Store: durable keyed storage for users, elections and votes.
// Implementations must be safe for concurrent use and linearizable per key.
// Lookups of absent records return ErrNotFound.
type Store interface {
	ElectionStore
	VoteStore
	UserStore

	// Backend names the implementation ("memory", "postgres") for logs and health output.
	Backend() string
	Ping(ctx context.Context) error
	Close() error
}

// ElectionStore covers election records and their indices.
type ElectionStore interface {
	// CreateElection assigns an id and stores the election as pending with no contract fields.
	CreateElection(ctx context.Context, in ballot.ElectionInput) (*ballot.Election, error)
	GetElection(ctx context.Context, id int64) (*ballot.Election, error)
	// ListElections returns matching elections ordered by id.
	ListElections(ctx context.Context, filter ballot.ElectionFilter) ([]ballot.Election, error)
	ListElectionsByCreator(ctx context.Context, creatorAddress string) ([]ballot.Election, error)
	// UpdateElectionStatus applies a partial update; nil fields keep prior values.
	UpdateElectionStatus(ctx context.Context, id int64, update ballot.StatusUpdate) (*ballot.Election, error)
	// DeleteElection removes the election and its votes. It returns false when id is absent.
	DeleteElection(ctx context.Context, id int64) (bool, error)
}

// VoteStore covers vote records.
type VoteStore interface {
	// CreateVote assigns an id and timestamp. It does not check for an existing vote by the same
	// voter; callers must serialize HasVoted and CreateVote themselves.
	CreateVote(ctx context.Context, in ballot.VoteInput) (*ballot.Vote, error)
	ListVotesByElection(ctx context.Context, electionID int64) ([]ballot.Vote, error)
	HasVoted(ctx context.Context, electionID int64, voterAddress string) (bool, error)
}

// UserStore covers the optional off-chain user records.
type UserStore interface {
	// CreateUser fails with ErrDuplicate when the username or wallet address is taken.
	CreateUser(ctx context.Context, in ballot.UserInput) (*ballot.User, error)
	GetUser(ctx context.Context, id int64) (*ballot.User, error)
	GetUserByUsername(ctx context.Context, username string) (*ballot.User, error)
	GetUserByWalletAddress(ctx context.Context, address string) (*ballot.User, error)
	UpdateUserWallet(ctx context.Context, id int64, address string) (*ballot.User, error)
}
