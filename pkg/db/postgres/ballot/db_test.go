package ballot

import (
	"context"
	"os"
	"testing"
	"time"

	dbstore "github.com/canopy-network/canopyvote/pkg/db"
	models "github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newTestDB connects to POSTGRES_URL and skips when it is not set.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	if os.Getenv("POSTGRES_URL") == "" {
		t.Skip("POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := New(ctx, zaptest.NewLogger(t), "ballot_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestElectionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	creator := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	start := time.Now().UTC().Truncate(time.Second)

	e, err := db.CreateElection(ctx, models.ElectionInput{
		Title:          "Integration",
		Description:    "Round trip through postgres",
		StartDate:      start,
		EndDate:        start.Add(time.Hour),
		IsPublic:       true,
		Options:        []models.Option{{ID: 1, Name: "Yes"}, {ID: 2, Name: "No"}},
		CreatorAddress: creator,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ElectionStatusPending, e.Status)
	assert.Len(t, e.Options, 2)

	addr := "0x0000000000000000000000000000000000000001"
	chainID := uint64(3)
	updated, err := db.UpdateElectionStatus(ctx, e.ID, models.StatusUpdate{
		Status:          models.ElectionStatusActive,
		ContractAddress: &addr,
		ChainElectionID: &chainID,
	})
	require.NoError(t, err)
	assert.Equal(t, chainID, *updated.ChainElectionID)
	assert.Nil(t, updated.TransactionHash)

	_, err = db.CreateVote(ctx, models.VoteInput{ElectionID: e.ID, VoterAddress: creator, OptionID: 1, TransactionHash: "0x01"})
	require.NoError(t, err)
	voted, err := db.HasVoted(ctx, e.ID, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.True(t, voted)

	ok, err := db.DeleteElection(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	votes, err := db.ListVotesByElection(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)

	_, err = db.GetElection(ctx, e.ID)
	assert.ErrorIs(t, err, dbstore.ErrNotFound)
}

func TestUserDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	name := "user-" + uuid.NewString()

	_, err := db.CreateUser(ctx, models.UserInput{Username: name, PasswordHash: []byte("x")})
	require.NoError(t, err)
	_, err = db.CreateUser(ctx, models.UserInput{Username: name, PasswordHash: []byte("x")})
	assert.ErrorIs(t, err, dbstore.ErrDuplicate)
}
