package lifecycle

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateStatusTransitions(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)
	ctx := context.Background()
	sub := f.hub.Add()

	e, err := f.manager.CreateElection(ctx, f.request(time.Hour))
	require.NoError(t, err)

	_, err = f.manager.UpdateStatus(ctx, e.ID, StatusRequest{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.manager.UpdateStatus(ctx, e.ID, StatusRequest{Status: "deployed"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.manager.UpdateStatus(ctx, 404, StatusRequest{Status: "active"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.manager.UpdateStatus(ctx, e.ID, StatusRequest{Status: "active"})
	assert.ErrorIs(t, err, ErrValidation, "activation needs a contract address")

	// pending -> pending keeps partial updates.
	hash := "0x" + hex64
	updated, err := f.manager.UpdateStatus(ctx, e.ID, StatusRequest{Status: "pending", TransactionHash: &hash})
	require.NoError(t, err)
	assert.Equal(t, ballot.ElectionStatusPending, updated.Status)
	assert.Equal(t, hash, *updated.TransactionHash)

	updated, err = f.manager.UpdateStatus(ctx, e.ID, StatusRequest{
		Status:          "active",
		ContractAddress: ptr("0x00000000000000000000000000000000000000aa"),
		ChainElectionID: ptr(uint64(5)),
	})
	require.NoError(t, err)
	assert.Equal(t, ballot.ElectionStatusActive, updated.Status)
	assert.True(t, strings.EqualFold("0x00000000000000000000000000000000000000aa", *updated.ContractAddress))
	assert.Equal(t, hash, *updated.TransactionHash, "omitted fields keep their values")

	ev := waitEvent(t, sub, hub.KindElectionCreated)
	assert.Equal(t, e.ID, *ev.ElectionID)
	assert.Equal(t, hash, ev.TransactionHash)

	_, err = f.manager.UpdateStatus(ctx, e.ID, StatusRequest{Status: "failed"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateStatusFailedBroadcastsError(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)
	ctx := context.Background()
	sub := f.hub.Add()

	e, err := f.manager.CreateElection(ctx, f.request(time.Hour))
	require.NoError(t, err)

	updated, err := f.manager.UpdateStatus(ctx, e.ID, StatusRequest{Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, ballot.ElectionStatusFailed, updated.Status)
	waitEvent(t, sub, hub.KindElectionError)

	_, err = f.manager.UpdateStatus(ctx, e.ID, StatusRequest{Status: "pending"})
	assert.ErrorIs(t, err, ErrConflict)
}
