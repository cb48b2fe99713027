package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"go.uber.org/zap"
)

// CreateElection validates and stores a pending election and returns it right away.
// When the server submits to the ledger, deployment continues on the worker pool:
// confirmation activates the election, any failure deletes it again.
func (m *Manager) CreateElection(ctx context.Context, req CreateRequest) (*ballot.Election, error) {
	input, err := req.validate()
	if err != nil {
		return nil, err
	}

	e, err := m.store.CreateElection(ctx, input)
	if err != nil {
		return nil, storage("create election", err)
	}

	logger := m.logger.With(zap.Int64("election_id", e.ID))
	logger.Info("Election created", zap.String("creator", e.CreatorAddress), zap.Bool("deploy", m.submits()))

	if !m.submits() {
		return e, nil
	}

	m.deploying.Store(e.ID, m.now())
	election := *e
	if err := m.pool.Go(func() { m.deploy(&election) }); err != nil {
		m.deploying.Delete(e.ID)
		logger.Warn("Deployment queue rejected election", zap.Error(err))
		m.rollback(&election, err)
		return nil, &kindError{kind: ErrUnavailable, msg: "Election deployment queue is full, try again later", cause: err}
	}
	return e, nil
}

func (m *Manager) deploy(e *ballot.Election) {
	defer m.deploying.Delete(e.ID)
	logger := m.logger.With(zap.Int64("election_id", e.ID))

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.LedgerTimeout)
	defer cancel()

	names := make([]string, len(e.Options))
	descriptions := make([]string, len(e.Options))
	for i, o := range e.Options {
		names[i] = o.Name
		descriptions[i] = o.Description
	}

	logger.Debug("Submitting election to ledger")
	receipt, err := m.ledger.CreateElection(ctx, ledger.ElectionParams{
		Title:                 e.Title,
		Description:           e.Description,
		StartTime:             e.StartDate,
		EndTime:               e.EndDate,
		IsPublic:              e.IsPublic,
		CandidateNames:        names,
		CandidateDescriptions: descriptions,
	})
	if err != nil {
		logger.Warn("Election deployment failed, rolling back", zap.Error(err))
		m.rollback(e, err)
		return
	}

	m.confirm(e, receipt)
}

// rollback compensates a failed deployment: delete the record, or mark it failed when the
// delete itself fails so the stale listing and the reaper pick it up. An election that left
// the pending state meanwhile (a wallet reported its deployment) is kept.
func (m *Manager) rollback(e *ballot.Election, cause error) {
	ctx, cancel := m.background()
	defer cancel()
	logger := m.logger.With(zap.Int64("election_id", e.ID))

	unlock := m.lock(e.ID)
	current, err := m.store.GetElection(ctx, e.ID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		unlock()
		logger.Info("Election already deleted before rollback", zap.NamedError("cause", cause))
		return
	case err != nil:
		logger.Warn("Failed to load election before rollback", zap.Error(err))
	case current.Status != ballot.ElectionStatusPending:
		unlock()
		logger.Warn("Election left pending state while deploying, skipping rollback",
			zap.String("status", string(current.Status)),
			zap.NamedError("cause", cause))
		return
	}

	deleted, err := m.store.DeleteElection(ctx, e.ID)
	if err != nil {
		logger.Warn("Rollback delete failed, marking election failed", zap.Error(err))
		if _, uerr := m.store.UpdateElectionStatus(ctx, e.ID, ballot.StatusUpdate{Status: ballot.ElectionStatusFailed}); uerr != nil {
			logger.Error("Rollback failed, election requires manual cleanup",
				zap.NamedError("delete_error", err),
				zap.NamedError("update_error", uerr),
				zap.NamedError("cause", cause))
		}
	}
	unlock()

	if err == nil && !deleted {
		logger.Info("Election already deleted before rollback")
	}

	m.broadcast(hub.ElectionError(e.ID, fmt.Sprintf("Election %q could not be deployed: %s", e.Title, deployFailure(cause))))
}

func deployFailure(err error) string {
	switch {
	case errors.Is(err, ledger.ErrTimeout):
		return "ledger confirmation timed out"
	case errors.Is(err, ledger.ErrRejected):
		return "transaction rejected by ledger"
	case errors.Is(err, context.Canceled):
		return "server shutting down"
	}
	return err.Error()
}

// confirm activates the election with the ledger's receipt.
func (m *Manager) confirm(e *ballot.Election, receipt *ledger.Receipt) {
	ctx, cancel := m.background()
	defer cancel()
	logger := m.logger.With(
		zap.Int64("election_id", e.ID),
		zap.String("tx_hash", receipt.TxHash),
	)

	unlock := m.lock(e.ID)
	current, err := m.store.GetElection(ctx, e.ID)
	if err != nil {
		unlock()
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Election deleted while deploying, on-chain election left orphaned",
				zap.Uint64p("chain_election_id", receipt.ChainElectionID))
			return
		}
		logger.Error("Failed to load election after deployment", zap.Error(err))
		return
	}
	if current.Status != ballot.ElectionStatusPending {
		unlock()
		logger.Warn("Election left pending state while deploying, keeping it", zap.String("status", string(current.Status)))
		return
	}

	contract := receipt.ContractAddress
	txHash := receipt.TxHash
	_, err = m.store.UpdateElectionStatus(ctx, e.ID, ballot.StatusUpdate{
		Status:          ballot.ElectionStatusActive,
		ContractAddress: &contract,
		ChainElectionID: receipt.ChainElectionID,
		TransactionHash: &txHash,
	})
	unlock()
	if err != nil {
		// The reaper will remove the pending record; the on-chain election stays orphaned.
		logger.Error("Failed to activate deployed election", zap.Error(err),
			zap.Uint64p("chain_election_id", receipt.ChainElectionID))
		return
	}

	logger.Info("Election deployed", zap.Uint64p("chain_election_id", receipt.ChainElectionID))
	m.broadcast(hub.ElectionCreated(e.ID, e.Title, txHash))
}
