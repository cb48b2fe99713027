package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Operation names accepted by Simulated.FailNext and Simulated.StallNext.
const (
	OpCreateElection = "createElection"
	OpVote           = "vote"
	OpWait           = "waitForTransaction"
)

// Simulated is an in-memory VotingSystem contract. It enforces the same rules as the
// deployed contract (voting window, one vote per address, candidate range) and supports
// latency and one-shot failure injection for tests.
type Simulated struct {
	mu        sync.Mutex
	address   common.Address
	latency   time.Duration
	now       func() time.Time
	nonce     uint64
	block     uint64
	elections map[uint64]*simElection
	receipts  map[string]*Receipt
	failures  map[string][]error
}

type simElection struct {
	summary    Summary
	candidates []Candidate
	voters     map[common.Address]struct{}
}

// errStall makes an operation block until its context is done.
var errStall = errors.New("stall")

type SimulatedOption func(*Simulated)

// WithLatency delays every transaction by d before it is confirmed.
func WithLatency(d time.Duration) SimulatedOption {
	return func(s *Simulated) { s.latency = d }
}

// WithClock sets the clock used for the voting window check.
func WithClock(now func() time.Time) SimulatedOption {
	return func(s *Simulated) { s.now = now }
}

func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		address:   crypto.CreateAddress(common.Address{}, 0),
		now:       time.Now,
		elections: make(map[uint64]*simElection),
		receipts:  make(map[string]*Receipt),
		failures:  make(map[string][]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next call of op return err.
func (s *Simulated) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// StallNext makes the next call of op block until its context expires.
func (s *Simulated) StallNext(op string) {
	s.FailNext(op, errStall)
}

func (s *Simulated) ContractAddress() string { return s.address.Hex() }

func (s *Simulated) Close() {}

func (s *Simulated) CreateElection(ctx context.Context, p ElectionParams) (*Receipt, error) {
	if err := s.before(ctx, OpCreateElection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !p.EndTime.After(p.StartTime) {
		return nil, rejected(OpCreateElection, "end time must be after start time")
	}
	if len(p.CandidateNames) < 2 || len(p.CandidateNames) != len(p.CandidateDescriptions) {
		return nil, rejected(OpCreateElection, "at least two candidates with descriptions are required")
	}

	id := uint64(len(s.elections) + 1)
	candidates := make([]Candidate, len(p.CandidateNames))
	for i, name := range p.CandidateNames {
		candidates[i] = Candidate{ID: uint64(i), Name: name, Description: p.CandidateDescriptions[i]}
	}
	s.elections[id] = &simElection{
		summary: Summary{
			ID:             id,
			Title:          p.Title,
			Description:    p.Description,
			StartTime:      p.StartTime.UTC(),
			EndTime:        p.EndTime.UTC(),
			Creator:        s.address.Hex(),
			IsPublic:       p.IsPublic,
			CandidateCount: uint64(len(candidates)),
		},
		candidates: candidates,
		voters:     make(map[common.Address]struct{}),
	}

	r := s.mine(OpCreateElection)
	r.ChainElectionID = &id
	return cloneReceipt(r), nil
}

func (s *Simulated) Vote(ctx context.Context, chainElectionID uint64, voter string, optionIndex int) (*Receipt, error) {
	if err := s.before(ctx, OpVote); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elections[chainElectionID]
	if !ok {
		return nil, rejected(OpVote, fmt.Sprintf("election %d does not exist", chainElectionID))
	}
	now := s.now()
	if now.Before(e.summary.StartTime) || now.After(e.summary.EndTime) {
		return nil, rejected(OpVote, "election is not active")
	}
	if optionIndex < 0 || optionIndex >= len(e.candidates) {
		return nil, rejected(OpVote, "invalid candidate")
	}
	addr := common.HexToAddress(voter)
	if _, voted := e.voters[addr]; voted {
		return nil, rejected(OpVote, "already voted")
	}

	e.voters[addr] = struct{}{}
	e.candidates[optionIndex].VoteCount++
	e.summary.TotalVotes++

	r := s.mine(OpVote)
	candidate := uint64(optionIndex)
	r.ChainElectionID = &chainElectionID
	r.Voter = addr.Hex()
	r.CandidateID = &candidate
	return cloneReceipt(r), nil
}

// WaitForTransaction only knows transactions mined by this instance.
func (s *Simulated) WaitForTransaction(ctx context.Context, txHash string) (*Receipt, error) {
	if err := s.before(ctx, OpWait); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.receipts[common.HexToHash(txHash).Hex()]
	if !ok {
		return nil, rejected(OpWait, "unknown transaction "+txHash)
	}
	return cloneReceipt(r), nil
}

func (s *Simulated) HasVoted(_ context.Context, chainElectionID uint64, voter string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elections[chainElectionID]
	if !ok {
		return false, nil
	}
	_, voted := e.voters[common.HexToAddress(voter)]
	return voted, nil
}

func (s *Simulated) GetSummary(_ context.Context, chainElectionID uint64) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elections[chainElectionID]
	if !ok {
		return nil, rejected("getElectionSummary", fmt.Sprintf("election %d not found", chainElectionID))
	}
	summary := e.summary
	return &summary, nil
}

func (s *Simulated) GetCandidates(_ context.Context, chainElectionID uint64) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elections[chainElectionID]
	if !ok {
		return nil, rejected("getAllCandidates", fmt.Sprintf("election %d not found", chainElectionID))
	}
	out := make([]Candidate, len(e.candidates))
	copy(out, e.candidates)
	return out, nil
}

// before applies injected failures and latency.
func (s *Simulated) before(ctx context.Context, op string) error {
	s.mu.Lock()
	var injected error
	if queue := s.failures[op]; len(queue) > 0 {
		injected = queue[0]
		s.failures[op] = queue[1:]
	}
	latency := s.latency
	s.mu.Unlock()

	if injected == errStall {
		<-ctx.Done()
		return wrapWait(ctx, op, ctx.Err())
	}
	if injected != nil {
		return fmt.Errorf("%s: %w", op, injected)
	}
	if latency <= 0 {
		return nil
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return wrapWait(ctx, op, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// mine records a successful receipt. Callers hold s.mu.
func (s *Simulated) mine(op string) *Receipt {
	s.nonce++
	s.block++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, s.nonce)
	hash := crypto.Keccak256Hash([]byte(op), buf)

	r := &Receipt{
		TxHash:          hash.Hex(),
		BlockNumber:     s.block,
		ContractAddress: s.address.Hex(),
	}
	s.receipts[r.TxHash] = r
	return r
}

func cloneReceipt(r *Receipt) *Receipt {
	cp := *r
	if r.ChainElectionID != nil {
		v := *r.ChainElectionID
		cp.ChainElectionID = &v
	}
	if r.CandidateID != nil {
		v := *r.CandidateID
		cp.CandidateID = &v
	}
	return &cp
}

var _ Client = (*Simulated)(nil)
