package lifecycle

import (
	"context"
	"time"

	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/canopy-network/canopyvote/pkg/utils"
	"go.uber.org/zap"
)

func (m *Manager) GetElection(ctx context.Context, id int64) (*ballot.Election, error) {
	return m.getElection(ctx, id)
}

// ListElections returns all elections, or only those whose voting window is open now.
func (m *Manager) ListElections(ctx context.Context, openOnly bool) ([]ballot.Election, error) {
	var filter ballot.ElectionFilter
	if openOnly {
		now := m.now()
		filter.OpenAt = &now
	}
	elections, err := m.store.ListElections(ctx, filter)
	if err != nil {
		return nil, storage("list elections", err)
	}
	return elections, nil
}

func (m *Manager) ListElectionsByCreator(ctx context.Context, address string) ([]ballot.Election, error) {
	creator, ok := utils.NormalizeAddress(address)
	if !ok {
		return nil, invalidField("address", "Creator address must be a valid wallet address")
	}
	elections, err := m.store.ListElectionsByCreator(ctx, creator)
	if err != nil {
		return nil, storage("list elections by creator", err)
	}
	return elections, nil
}

// ListVotes returns the votes of an existing election in the order they were recorded.
func (m *Manager) ListVotes(ctx context.Context, electionID int64) ([]ballot.Vote, error) {
	if _, err := m.getElection(ctx, electionID); err != nil {
		return nil, err
	}
	votes, err := m.store.ListVotesByElection(ctx, electionID)
	if err != nil {
		return nil, storage("list votes", err)
	}
	return votes, nil
}

// HasVoted answers from the Record Store only.
func (m *Manager) HasVoted(ctx context.Context, electionID int64, voterAddress string) (bool, error) {
	voter, ok := utils.NormalizeAddress(voterAddress)
	if !ok {
		return false, invalidField("voterAddress", "Voter address must be a valid wallet address")
	}
	voted, err := m.store.HasVoted(ctx, electionID, voter)
	if err != nil {
		return false, storage("check vote", err)
	}
	return voted, nil
}

type OptionResult struct {
	Index int    `json:"index"`
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}

// Results is the tally of one election. OnChain is the authoritative ledger tally and is
// omitted when the election is not deployed or the ledger cannot be read.
type Results struct {
	ElectionID int64                 `json:"electionId"`
	Title      string                `json:"title"`
	Status     ballot.ElectionStatus `json:"status"`
	TotalVotes int                   `json:"totalVotes"`
	Options    []OptionResult        `json:"options"`
	OnChain    []ledger.Candidate    `json:"onChain,omitempty"`
}

func (m *Manager) Results(ctx context.Context, id int64) (*Results, error) {
	e, err := m.getElection(ctx, id)
	if err != nil {
		return nil, err
	}
	votes, err := m.store.ListVotesByElection(ctx, id)
	if err != nil {
		return nil, storage("list votes", err)
	}

	res := &Results{
		ElectionID: e.ID,
		Title:      e.Title,
		Status:     e.Status,
		Options:    make([]OptionResult, len(e.Options)),
	}
	for i, o := range e.Options {
		res.Options[i] = OptionResult{Index: i, ID: o.ID, Name: o.Name}
	}
	for _, v := range votes {
		if v.OptionID >= 0 && v.OptionID < len(res.Options) {
			res.Options[v.OptionID].Votes++
			res.TotalVotes++
		}
	}

	if m.ledger != nil && e.Deployed() && e.ChainElectionID != nil {
		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		candidates, err := m.ledger.GetCandidates(rctx, *e.ChainElectionID)
		if err != nil {
			m.logger.Warn("On-chain results unavailable", zap.Int64("election_id", id), zap.Error(err))
		} else {
			res.OnChain = candidates
		}
	}
	return res, nil
}

// StalePending lists elections left behind by an interrupted or failed deployment: pending
// ones older than PendingTTL that are not deploying in this process, and failed ones.
func (m *Manager) StalePending(ctx context.Context) ([]ballot.Election, error) {
	cutoff := m.now().Add(-m.cfg.PendingTTL)

	pending, err := m.store.ListElections(ctx, ballot.ElectionFilter{Status: ballot.ElectionStatusPending, CreatedBefore: &cutoff})
	if err != nil {
		return nil, storage("list pending elections", err)
	}
	failed, err := m.store.ListElections(ctx, ballot.ElectionFilter{Status: ballot.ElectionStatusFailed})
	if err != nil {
		return nil, storage("list failed elections", err)
	}

	out := make([]ballot.Election, 0, len(pending)+len(failed))
	for _, e := range pending {
		if _, inFlight := m.deploying.Load(e.ID); inFlight {
			continue
		}
		out = append(out, e)
	}
	return append(out, failed...), nil
}
