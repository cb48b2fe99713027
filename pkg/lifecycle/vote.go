package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/canopy-network/canopyvote/pkg/utils"
	"go.uber.org/zap"
)

// VoteRequest is a ballot. TransactionHash is set when the voter's wallet already sent the
// vote transaction; otherwise the server submits it.
type VoteRequest struct {
	ElectionID      int64
	VoterAddress    string
	OptionID        int
	TransactionHash string
}

// CastVote records at most one vote per (election, voter). The ledger is consulted outside
// the election lock; the off-chain record is written only after the ledger confirmed.
func (m *Manager) CastVote(ctx context.Context, req VoteRequest) (*ballot.Vote, error) {
	e, err := m.getElection(ctx, req.ElectionID)
	if err != nil {
		return nil, err
	}
	if !e.IsOpen(m.now()) {
		return nil, invalid("Election is not open for voting")
	}

	voter, ok := utils.NormalizeAddress(req.VoterAddress)
	if !ok {
		return nil, invalidField("voterAddress", "Voter address must be a valid wallet address")
	}
	if req.OptionID < 0 || req.OptionID >= len(e.Options) {
		return nil, invalidField("optionId", fmt.Sprintf("Option must be between 0 and %d", len(e.Options)-1))
	}

	txHash := ""
	if req.TransactionHash != "" {
		if txHash, ok = utils.NormalizeTxHash(req.TransactionHash); !ok {
			return nil, invalidField("transactionHash", "Transaction hash must be 0x followed by 64 hex characters")
		}
	} else if !m.submits() {
		return nil, invalidField("transactionHash", "Transaction hash is required")
	}

	// Without a contract address the election is not votable, whoever submits the transaction.
	if !e.Deployed() || (m.submits() && e.ChainElectionID == nil) {
		return nil, conflict("Election is not deployed yet")
	}

	voted, err := m.store.HasVoted(ctx, e.ID, voter)
	if err != nil {
		return nil, storage("check vote", err)
	}
	if voted {
		return nil, conflict("You have already voted in this election")
	}

	key := fmt.Sprintf("%d:%s", e.ID, strings.ToLower(voter))
	if _, busy := m.votesInFlight.LoadOrStore(key, struct{}{}); busy {
		return nil, conflict("A vote from this address is already being processed")
	}
	defer m.votesInFlight.Delete(key)

	logger := m.logger.With(zap.Int64("election_id", e.ID), zap.String("voter", voter))

	if m.submits() {
		receipt, err := m.confirmVote(ctx, e, voter, req.OptionID, txHash)
		if err != nil {
			logger.Warn("Vote not confirmed by ledger", zap.Error(err))
			return nil, err
		}
		txHash = receipt.TxHash
	}

	unlock := m.lock(e.ID)
	voted, err = m.store.HasVoted(ctx, e.ID, voter)
	if err != nil {
		unlock()
		return nil, storage("check vote", err)
	}
	if voted {
		unlock()
		return nil, conflict("You have already voted in this election")
	}
	vote, err := m.store.CreateVote(ctx, ballot.VoteInput{
		ElectionID:      e.ID,
		VoterAddress:    voter,
		OptionID:        req.OptionID,
		TransactionHash: txHash,
	})
	unlock()
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound("Election not found")
		}
		return nil, storage("record vote", err)
	}

	logger.Info("Vote recorded", zap.Int("option_id", vote.OptionID), zap.String("tx_hash", vote.TransactionHash))
	m.broadcast(hub.Vote(e.ID, e.Title, vote.OptionID, e.OptionName(vote.OptionID), vote.TransactionHash))
	return vote, nil
}

// confirmVote waits for a wallet-sent transaction or submits the vote itself. The wait is
// detached from the request so a disconnecting client does not abandon a vote mid-flight.
func (m *Manager) confirmVote(ctx context.Context, e *ballot.Election, voter string, optionIndex int, txHash string) (*ledger.Receipt, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.LedgerTimeout)
	defer cancel()

	if txHash == "" {
		receipt, err := m.ledger.Vote(ctx, *e.ChainElectionID, voter, optionIndex)
		if errors.Is(err, ledger.ErrUnsupported) {
			return nil, invalidField("transactionHash", "Transaction hash is required: votes must be sent from the voter's wallet")
		}
		if err != nil {
			return nil, fmt.Errorf("submit vote: %w", err)
		}
		return receipt, nil
	}

	receipt, err := m.ledger.WaitForTransaction(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("confirm vote transaction: %w", err)
	}

	// The receipt's Voted event must describe this very ballot.
	if receipt.Voter == "" || receipt.CandidateID == nil || receipt.ChainElectionID == nil {
		return nil, invalidField("transactionHash", "Transaction is not a vote")
	}
	if *receipt.ChainElectionID != *e.ChainElectionID {
		return nil, invalidField("transactionHash", "Transaction belongs to a different election")
	}
	if !strings.EqualFold(receipt.Voter, voter) {
		return nil, invalidField("transactionHash", "Transaction was sent by a different address")
	}
	if int(*receipt.CandidateID) != optionIndex {
		return nil, invalidField("transactionHash", "Transaction voted for a different option")
	}
	return receipt, nil
}
