package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteElectionOnlyBeforeStart(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)
	ctx := context.Background()

	upcoming, err := f.manager.CreateElection(ctx, f.request(time.Hour))
	require.NoError(t, err)
	active, err := f.manager.CreateElection(ctx, f.request(-time.Hour))
	require.NoError(t, err)
	completed, err := f.manager.CreateElection(ctx, f.request(-3*time.Hour))
	require.NoError(t, err)

	err = f.manager.DeleteElection(ctx, active.ID)
	assert.ErrorIs(t, err, ErrValidation)
	assert.EqualError(t, err, "Cannot delete an active election")

	err = f.manager.DeleteElection(ctx, completed.ID)
	assert.ErrorIs(t, err, ErrValidation)
	assert.EqualError(t, err, "Cannot delete a completed election")

	require.NoError(t, f.manager.DeleteElection(ctx, upcoming.ID))
	_, err = f.manager.GetElection(ctx, upcoming.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, f.manager.DeleteElection(ctx, upcoming.ID), ErrNotFound)
}

func TestDeleteElectionAtStartInstant(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)
	ctx := context.Background()
	e, err := f.manager.CreateElection(ctx, f.request(time.Minute))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	assert.ErrorIs(t, f.manager.DeleteElection(ctx, e.ID), ErrValidation)
}

func TestDeleteElectionCascadesVotes(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)
	ctx := context.Background()
	e := f.activated(t, f.request(-time.Minute))

	_, err := f.manager.CastVote(ctx, VoteRequest{ElectionID: e.ID, VoterAddress: voterAddr, TransactionHash: "0x" + hex64})
	require.NoError(t, err)

	// Rewind so the election has not started yet and may be deleted.
	f.clock.Advance(-time.Hour)
	require.NoError(t, f.manager.DeleteElection(ctx, e.ID))

	_, err = f.manager.ListVotes(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	votes, err := f.store.ListVotesByElection(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestDeleteElectionKeepsElectionLock(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)
	ctx := context.Background()
	e, err := f.manager.CreateElection(ctx, f.request(time.Hour))
	require.NoError(t, err)

	unlock := f.manager.lock(e.ID)
	before, ok := f.manager.locks.Load(e.ID)
	require.True(t, ok)

	deleted := make(chan error, 1)
	go func() { deleted <- f.manager.DeleteElection(ctx, e.ID) }()
	updated := make(chan error, 1)
	go func() {
		_, err := f.manager.UpdateStatus(ctx, e.ID, StatusRequest{Status: "failed"})
		updated <- err
	}()
	unlock()

	require.NoError(t, <-deleted)
	if err := <-updated; err != nil {
		assert.ErrorIs(t, err, ErrNotFound)
	}

	after, ok := f.manager.locks.Load(e.ID)
	require.True(t, ok)
	assert.Same(t, before, after)
}
