package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/utils"
	"go.uber.org/zap"
)

// StatusRequest reports deployment progress, normally from the creator's wallet when the
// server does not submit transactions itself.
type StatusRequest struct {
	Status          string
	ContractAddress *string
	ChainElectionID *uint64
	TransactionHash *string
}

// UpdateStatus applies a status transition. Allowed: pending to pending, active or failed.
// Active and failed are terminal.
func (m *Manager) UpdateStatus(ctx context.Context, id int64, req StatusRequest) (*ballot.Election, error) {
	if req.Status == "" {
		return nil, invalidField("status", "Status is required")
	}
	status := ballot.ElectionStatus(req.Status)
	if !status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("Unknown status %q", req.Status))
	}

	update := ballot.StatusUpdate{Status: status, ChainElectionID: req.ChainElectionID}
	if req.ContractAddress != nil {
		addr, ok := utils.NormalizeAddress(*req.ContractAddress)
		if !ok {
			return nil, invalidField("contractAddress", "Contract address must be a valid address")
		}
		update.ContractAddress = &addr
	}
	if req.TransactionHash != nil {
		hash, ok := utils.NormalizeTxHash(*req.TransactionHash)
		if !ok {
			return nil, invalidField("transactionHash", "Transaction hash must be 0x followed by 64 hex characters")
		}
		update.TransactionHash = &hash
	}

	unlock := m.lock(id)
	current, err := m.getElection(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	if current.Status.Terminal() {
		unlock()
		return nil, conflict("Election is already %s", current.Status)
	}
	if status == ballot.ElectionStatusActive && update.ContractAddress == nil && current.ContractAddress == nil {
		unlock()
		return nil, invalidField("contractAddress", "Contract address is required to activate an election")
	}

	updated, err := m.store.UpdateElectionStatus(ctx, id, update)
	unlock()
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound("Election not found")
		}
		return nil, storage("update election status", err)
	}

	m.logger.Info("Election status updated",
		zap.Int64("election_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)))

	switch updated.Status {
	case ballot.ElectionStatusActive:
		tx := ""
		if updated.TransactionHash != nil {
			tx = *updated.TransactionHash
		}
		m.broadcast(hub.ElectionCreated(updated.ID, updated.Title, tx))
	case ballot.ElectionStatusFailed:
		m.broadcast(hub.ElectionError(updated.ID, fmt.Sprintf("Election %q failed to deploy", updated.Title)))
	}
	return updated, nil
}
