package lifecycle

import (
	"context"
	"errors"

	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"go.uber.org/zap"
)

// ReapStalePending finishes the compensation of abandoned deployments by deleting the
// elections StalePending returns. It returns how many were deleted.
func (m *Manager) ReapStalePending(ctx context.Context) (int, error) {
	stale, err := m.StalePending(ctx)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, e := range stale {
		if ctx.Err() != nil {
			return reaped, ctx.Err()
		}
		ok, err := m.reap(ctx, e)
		if err != nil {
			m.logger.Warn("Failed to reap election", zap.Int64("election_id", e.ID), zap.Error(err))
			continue
		}
		if ok {
			reaped++
		}
	}

	if reaped > 0 {
		m.logger.Info("Reaped stale elections", zap.Int("count", reaped))
	}
	return reaped, nil
}

// reap re-checks the election under its lock, since it may have been activated since listing.
func (m *Manager) reap(ctx context.Context, e ballot.Election) (bool, error) {
	unlock := m.lock(e.ID)
	defer unlock()

	current, err := m.store.GetElection(ctx, e.ID)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if current.Status == ballot.ElectionStatusActive {
		return false, nil
	}
	if _, inFlight := m.deploying.Load(e.ID); inFlight {
		return false, nil
	}

	deleted, err := m.store.DeleteElection(ctx, e.ID)
	if err != nil {
		return false, err
	}
	if deleted {
		m.logger.Info("Stale election removed", zap.Int64("election_id", e.ID), zap.String("status", string(current.Status)))
	}
	return deleted, nil
}
