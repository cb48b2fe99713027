package lifecycle

import (
	"context"

	"go.uber.org/zap"
)

// DeleteElection removes an election and its votes. Only elections whose voting window has
// not opened yet may be deleted.
func (m *Manager) DeleteElection(ctx context.Context, id int64) error {
	unlock := m.lock(id)
	defer unlock()

	e, err := m.getElection(ctx, id)
	if err != nil {
		return err
	}

	now := m.now()
	if e.HasEnded(now) {
		return invalid("Cannot delete a completed election")
	}
	if e.HasStarted(now) {
		return invalid("Cannot delete an active election")
	}

	deleted, err := m.store.DeleteElection(ctx, id)
	if err != nil {
		return storage("delete election", err)
	}
	if !deleted {
		return notFound("Election not found")
	}

	_, deploying := m.deploying.Load(id)
	m.logger.Info("Election deleted", zap.Int64("election_id", id), zap.Bool("deploying", deploying))
	return nil
}
