package ballot

import (
	"context"
	"fmt"

	dbstore "github.com/canopy-network/canopyvote/pkg/db"
	models "github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/db/postgres"
)

func (db *DB) initVotes(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS votes (
			id BIGSERIAL PRIMARY KEY,
			election_id BIGINT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
			voter_address TEXT NOT NULL,
			option_id INTEGER NOT NULL,
			transaction_hash TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if err := db.Exec(ctx, query); err != nil {
		return err
	}
	// Not unique: vote-once is enforced by the lifecycle layer and the ledger.
	return db.Exec(ctx, `CREATE INDEX IF NOT EXISTS votes_election_voter_idx ON votes (election_id, LOWER(voter_address))`)
}

func (db *DB) CreateVote(ctx context.Context, in models.VoteInput) (*models.Vote, error) {
	query := `
		INSERT INTO votes (election_id, voter_address, option_id, transaction_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, election_id, voter_address, option_id, transaction_hash, timestamp
	`

	var v models.Vote
	err := db.QueryRow(ctx, query, in.ElectionID, in.VoterAddress, in.OptionID, in.TransactionHash).Scan(
		&v.ID,
		&v.ElectionID,
		&v.VoterAddress,
		&v.OptionID,
		&v.TransactionHash,
		&v.Timestamp,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("election %d: %w", in.ElectionID, dbstore.ErrNotFound)
		}
		return nil, fmt.Errorf("insert vote: %w", err)
	}
	v.Timestamp = v.Timestamp.UTC()
	return &v, nil
}

func (db *DB) ListVotesByElection(ctx context.Context, electionID int64) ([]models.Vote, error) {
	query := `
		SELECT id, election_id, voter_address, option_id, transaction_hash, timestamp
		FROM votes
		WHERE election_id = $1
		ORDER BY id
	`

	rows, err := db.Query(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()

	votes := make([]models.Vote, 0)
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.ElectionID, &v.VoterAddress, &v.OptionID, &v.TransactionHash, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.Timestamp = v.Timestamp.UTC()
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (db *DB) HasVoted(ctx context.Context, electionID int64, voterAddress string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM votes WHERE election_id = $1 AND LOWER(voter_address) = LOWER($2))`
	if err := db.QueryRow(ctx, query, electionID, voterAddress).Scan(&exists); err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return exists, nil
}
