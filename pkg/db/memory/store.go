package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
)

// Store is an in-process db.Store. A single RWMutex makes every operation linearizable,
// including the multi-map election delete cascade.
type Store struct {
	mu sync.RWMutex

	elections map[int64]*ballot.Election
	votes     map[int64]*ballot.Vote
	// votesByElection indexes vote ids per election, in insertion order.
	votesByElection map[int64][]int64
	// voters indexes (election, voter) pairs for HasVoted.
	voters map[voterKey]struct{}
	users  map[int64]*ballot.User

	nextElectionID int64
	nextVoteID     int64
	nextUserID     int64

	now func() time.Time
}

type voterKey struct {
	electionID int64
	voter      string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		elections:       make(map[int64]*ballot.Election),
		votes:           make(map[int64]*ballot.Vote),
		votesByElection: make(map[int64][]int64),
		voters:          make(map[voterKey]struct{}),
		users:           make(map[int64]*ballot.User),
		now:             time.Now,
	}
}

// WithClock overrides the clock used for CreatedAt/Timestamp fields.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Backend() string { return "memory" }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateElection(_ context.Context, in ballot.ElectionInput) (*ballot.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextElectionID++
	now := s.now().UTC()
	e := &ballot.Election{
		ID:             s.nextElectionID,
		Title:          in.Title,
		Description:    in.Description,
		StartDate:      in.StartDate.UTC(),
		EndDate:        in.EndDate.UTC(),
		IsPublic:       in.IsPublic,
		Options:        slices.Clone(in.Options),
		CreatorAddress: in.CreatorAddress,
		CreatorID:      in.CreatorID,
		Status:         ballot.ElectionStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.elections[e.ID] = e
	return cloneElection(e), nil
}

func (s *Store) GetElection(_ context.Context, id int64) (*ballot.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.elections[id]
	if !ok {
		return nil, fmt.Errorf("election %d: %w", id, db.ErrNotFound)
	}
	return cloneElection(e), nil
}

func (s *Store) ListElections(_ context.Context, filter ballot.ElectionFilter) ([]ballot.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ballot.Election, 0, len(s.elections))
	for _, e := range s.elections {
		if filter.Matches(e) {
			out = append(out, *cloneElection(e))
		}
	}
	sortElections(out)
	return out, nil
}

func (s *Store) ListElectionsByCreator(_ context.Context, creatorAddress string) ([]ballot.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ballot.Election, 0)
	for _, e := range s.elections {
		if strings.EqualFold(e.CreatorAddress, creatorAddress) {
			out = append(out, *cloneElection(e))
		}
	}
	sortElections(out)
	return out, nil
}

func (s *Store) UpdateElectionStatus(_ context.Context, id int64, update ballot.StatusUpdate) (*ballot.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elections[id]
	if !ok {
		return nil, fmt.Errorf("election %d: %w", id, db.ErrNotFound)
	}
	if update.Status != "" {
		e.Status = update.Status
	}
	if update.ContractAddress != nil {
		v := *update.ContractAddress
		e.ContractAddress = &v
	}
	if update.ChainElectionID != nil {
		v := *update.ChainElectionID
		e.ChainElectionID = &v
	}
	if update.TransactionHash != nil {
		v := *update.TransactionHash
		e.TransactionHash = &v
	}
	e.UpdatedAt = s.now().UTC()
	return cloneElection(e), nil
}

func (s *Store) DeleteElection(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.elections[id]; !ok {
		return false, nil
	}
	delete(s.elections, id)
	for _, voteID := range s.votesByElection[id] {
		if v, ok := s.votes[voteID]; ok {
			delete(s.voters, voterKey{electionID: id, voter: strings.ToLower(v.VoterAddress)})
			delete(s.votes, voteID)
		}
	}
	delete(s.votesByElection, id)
	return true, nil
}

func (s *Store) CreateVote(_ context.Context, in ballot.VoteInput) (*ballot.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.elections[in.ElectionID]; !ok {
		return nil, fmt.Errorf("election %d: %w", in.ElectionID, db.ErrNotFound)
	}

	s.nextVoteID++
	v := &ballot.Vote{
		ID:              s.nextVoteID,
		ElectionID:      in.ElectionID,
		VoterAddress:    in.VoterAddress,
		OptionID:        in.OptionID,
		TransactionHash: in.TransactionHash,
		Timestamp:       s.now().UTC(),
	}
	s.votes[v.ID] = v
	s.votesByElection[in.ElectionID] = append(s.votesByElection[in.ElectionID], v.ID)
	s.voters[voterKey{electionID: in.ElectionID, voter: strings.ToLower(in.VoterAddress)}] = struct{}{}
	cp := *v
	return &cp, nil
}

func (s *Store) ListVotesByElection(_ context.Context, electionID int64) ([]ballot.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.votesByElection[electionID]
	out := make([]ballot.Vote, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.votes[id])
	}
	return out, nil
}

func (s *Store) HasVoted(_ context.Context, electionID int64, voterAddress string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.voters[voterKey{electionID: electionID, voter: strings.ToLower(voterAddress)}]
	return ok, nil
}

func (s *Store) CreateUser(_ context.Context, in ballot.UserInput) (*ballot.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == in.Username {
			return nil, fmt.Errorf("username %q: %w", in.Username, db.ErrDuplicate)
		}
		if in.WalletAddress != nil && u.WalletAddress != nil && strings.EqualFold(*u.WalletAddress, *in.WalletAddress) {
			return nil, fmt.Errorf("wallet %s: %w", *in.WalletAddress, db.ErrDuplicate)
		}
	}

	s.nextUserID++
	u := &ballot.User{
		ID:           s.nextUserID,
		Username:     in.Username,
		PasswordHash: slices.Clone(in.PasswordHash),
		CreatedAt:    s.now().UTC(),
	}
	if in.WalletAddress != nil {
		w := *in.WalletAddress
		u.WalletAddress = &w
	}
	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*ballot.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, db.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*ballot.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, db.ErrNotFound)
}

func (s *Store) GetUserByWalletAddress(_ context.Context, address string) (*ballot.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.WalletAddress != nil && strings.EqualFold(*u.WalletAddress, address) {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("wallet %s: %w", address, db.ErrNotFound)
}

func (s *Store) UpdateUserWallet(_ context.Context, id int64, address string) (*ballot.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, db.ErrNotFound)
	}
	for _, other := range s.users {
		if other.ID != id && other.WalletAddress != nil && strings.EqualFold(*other.WalletAddress, address) {
			return nil, fmt.Errorf("wallet %s: %w", address, db.ErrDuplicate)
		}
	}
	w := address
	u.WalletAddress = &w
	return cloneUser(u), nil
}

func sortElections(es []ballot.Election) {
	sort.Slice(es, func(i, j int) bool { return es[i].ID < es[j].ID })
}

func cloneElection(e *ballot.Election) *ballot.Election {
	cp := *e
	cp.Options = slices.Clone(e.Options)
	if e.ContractAddress != nil {
		v := *e.ContractAddress
		cp.ContractAddress = &v
	}
	if e.ChainElectionID != nil {
		v := *e.ChainElectionID
		cp.ChainElectionID = &v
	}
	if e.TransactionHash != nil {
		v := *e.TransactionHash
		cp.TransactionHash = &v
	}
	if e.CreatorID != nil {
		v := *e.CreatorID
		cp.CreatorID = &v
	}
	return &cp
}

func cloneUser(u *ballot.User) *ballot.User {
	cp := *u
	cp.PasswordHash = slices.Clone(u.PasswordHash)
	if u.WalletAddress != nil {
		w := *u.WalletAddress
		cp.WalletAddress = &w
	}
	return &cp
}

var _ db.Store = (*Store)(nil)
