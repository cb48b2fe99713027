package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateElectionValidation(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"short title", func(r *CreateRequest) { r.Title = "ab" }, "title"},
		{"long title", func(r *CreateRequest) { r.Title = strings.Repeat("a", 101) }, "title"},
		{"short description", func(r *CreateRequest) { r.Description = "too short" }, "description"},
		{"one option", func(r *CreateRequest) { r.Options = r.Options[:1] }, "options"},
		{"duplicate option ids", func(r *CreateRequest) { r.Options[1].ID = r.Options[0].ID }, "options[1].id"},
		{"empty option name", func(r *CreateRequest) { r.Options[0].Name = "  " }, "options[0].name"},
		{"end equals start", func(r *CreateRequest) { r.EndDate = r.StartDate }, "endDate"},
		{"end before start", func(r *CreateRequest) { r.EndDate = r.StartDate.Add(-time.Minute) }, "endDate"},
		{"bad creator", func(r *CreateRequest) { r.CreatorAddress = "0x1234" }, "creatorAddress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(time.Hour)
			req.Options = append([]ballot.Option(nil), req.Options...)
			tt.mutate(&req)

			_, err := f.manager.CreateElection(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	all, err := f.store.ListElections(context.Background(), ballot.ElectionFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "invalid elections must not be stored")
}

func TestCreateElectionWithoutLedgerStaysPending(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)

	e, err := f.manager.CreateElection(context.Background(), f.request(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ballot.ElectionStatusPending, e.Status)
	assert.Equal(t, creatorAddr, e.CreatorAddress)

	got, err := f.manager.GetElection(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, ballot.ElectionStatusPending, got.Status)
	assert.Nil(t, got.ContractAddress)
}

func TestCreateElectionNormalizesCreator(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)
	req := f.request(time.Hour)
	req.CreatorAddress = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

	e, err := f.manager.CreateElection(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, creatorAddr, e.CreatorAddress)
}

func TestCreateElectionDeploys(t *testing.T) {
	f := newFixture(t, ledger.ModeSimulated)
	sub := f.hub.Add()

	e, err := f.manager.CreateElection(context.Background(), f.request(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ballot.ElectionStatusPending, e.Status, "creation returns before deployment")

	ev := waitEvent(t, sub, hub.KindElectionCreated)
	assert.Equal(t, e.ID, *ev.ElectionID)
	assert.NotEmpty(t, ev.TransactionHash)

	got, err := f.store.GetElection(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, ballot.ElectionStatusActive, got.Status)
	require.NotNil(t, got.ContractAddress)
	assert.Equal(t, f.ledger.ContractAddress(), *got.ContractAddress)
	require.NotNil(t, got.ChainElectionID)
	require.NotNil(t, got.TransactionHash)
	assert.Equal(t, ev.TransactionHash, *got.TransactionHash)
}

func TestCreateElectionRollsBackOnRejection(t *testing.T) {
	f := newFixture(t, ledger.ModeSimulated)
	sub := f.hub.Add()
	f.ledger.FailNext(ledger.OpCreateElection, ledger.ErrRejected)

	e, err := f.manager.CreateElection(context.Background(), f.request(time.Hour))
	require.NoError(t, err)

	ev := waitEvent(t, sub, hub.KindElectionError)
	assert.Equal(t, e.ID, *ev.ElectionID)
	assert.Contains(t, ev.Message, "rejected")

	_, err = f.store.GetElection(context.Background(), e.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCreateElectionRollsBackOnTimeout(t *testing.T) {
	f := newFixture(t, ledger.ModeSimulated, func(c *Config) { c.LedgerTimeout = 30 * time.Millisecond })
	sub := f.hub.Add()
	f.ledger.StallNext(ledger.OpCreateElection)

	e, err := f.manager.CreateElection(context.Background(), f.request(time.Hour))
	require.NoError(t, err)

	ev := waitEvent(t, sub, hub.KindElectionError)
	assert.Contains(t, ev.Message, "timed out")
	_, err = f.manager.GetElection(context.Background(), e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRollbackKeepsElectionActivatedByWallet(t *testing.T) {
	f := newFixture(t, ledger.ModeSimulated, func(c *Config) { c.LedgerTimeout = 300 * time.Millisecond })
	sub := f.hub.Add()
	f.ledger.StallNext(ledger.OpCreateElection)
	ctx := context.Background()

	e, err := f.manager.CreateElection(ctx, f.request(time.Hour))
	require.NoError(t, err)

	contract := otherVoter
	updated, err := f.manager.UpdateStatus(ctx, e.ID, StatusRequest{Status: "active", ContractAddress: &contract})
	require.NoError(t, err)
	require.Equal(t, ballot.ElectionStatusActive, updated.Status)
	require.Equal(t, hub.KindElectionCreated, waitEvent(t, sub, hub.KindElectionCreated).Type)

	// Let the stalled deployment time out and run its compensation.
	require.Eventually(t, func() bool {
		_, inFlight := f.manager.deploying.Load(e.ID)
		return !inFlight
	}, 3*time.Second, 10*time.Millisecond)

	got, err := f.store.GetElection(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, ballot.ElectionStatusActive, got.Status)
	require.NotNil(t, got.ContractAddress)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected %s event after skipped rollback", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDeletedWhileDeployingIsNotResurrected(t *testing.T) {
	f := newFixture(t, ledger.ModeSimulated)
	sim := ledger.NewSimulated(ledger.WithLatency(100 * time.Millisecond))
	f.manager.ledger = sim

	e, err := f.manager.CreateElection(context.Background(), f.request(time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.manager.DeleteElection(context.Background(), e.ID))

	// Wait for the saga to finish, then make sure nothing came back.
	require.Eventually(t, func() bool {
		_, inFlight := f.manager.deploying.Load(e.ID)
		return !inFlight
	}, 2*time.Second, 5*time.Millisecond)
	_, err = f.store.GetElection(context.Background(), e.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestNewManagerRequiresLedger(t *testing.T) {
	f := newFixture(t, ledger.ModeNone)
	_, err := NewManager(Config{LedgerMode: ledger.ModeEthereum}, f.store, nil, f.hub, f.manager.logger)
	assert.Error(t, err)
}
