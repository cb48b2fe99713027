package ballot

import (
	"context"
	"fmt"
	"strings"

	dbstore "github.com/canopy-network/canopyvote/pkg/db"
	models "github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/db/postgres"
	"github.com/jackc/pgx/v5"
)

func (db *DB) initElections(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS elections (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT TRUE,
			options JSONB NOT NULL,
			creator_address TEXT NOT NULL,
			creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			contract_address TEXT,
			chain_election_id BIGINT,
			transaction_hash TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if err := db.Exec(ctx, query); err != nil {
		return err
	}
	if err := db.Exec(ctx, `CREATE INDEX IF NOT EXISTS elections_creator_idx ON elections (LOWER(creator_address))`); err != nil {
		return err
	}
	return db.Exec(ctx, `CREATE INDEX IF NOT EXISTS elections_status_created_idx ON elections (status, created_at)`)
}

const electionColumns = `id, title, description, start_date, end_date, is_public, options, creator_address,
	creator_id, status, contract_address, chain_election_id, transaction_hash, created_at, updated_at`

func scanElection(row pgx.Row) (*models.Election, error) {
	var (
		e       models.Election
		status  string
		chainID *int64
	)
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.StartDate,
		&e.EndDate,
		&e.IsPublic,
		&e.Options,
		&e.CreatorAddress,
		&e.CreatorID,
		&status,
		&e.ContractAddress,
		&chainID,
		&e.TransactionHash,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = models.ElectionStatus(status)
	if chainID != nil {
		v := uint64(*chainID)
		e.ChainElectionID = &v
	}
	e.StartDate = e.StartDate.UTC()
	e.EndDate = e.EndDate.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func (db *DB) collectElections(ctx context.Context, query string, args ...any) ([]models.Election, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query elections: %w", err)
	}
	defer rows.Close()

	out := make([]models.Election, 0)
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (db *DB) CreateElection(ctx context.Context, in models.ElectionInput) (*models.Election, error) {
	query := `
		INSERT INTO elections (title, description, start_date, end_date, is_public, options, creator_address, creator_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + electionColumns

	e, err := scanElection(db.QueryRow(ctx, query,
		in.Title,
		in.Description,
		in.StartDate.UTC(),
		in.EndDate.UTC(),
		in.IsPublic,
		in.Options,
		in.CreatorAddress,
		in.CreatorID,
		string(models.ElectionStatusPending),
	))
	if err != nil {
		return nil, fmt.Errorf("insert election: %w", err)
	}
	return e, nil
}

func (db *DB) GetElection(ctx context.Context, id int64) (*models.Election, error) {
	e, err := scanElection(db.QueryRow(ctx, `SELECT `+electionColumns+` FROM elections WHERE id = $1`, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("election %d: %w", id, dbstore.ErrNotFound)
		}
		return nil, fmt.Errorf("query election %d: %w", id, err)
	}
	return e, nil
}

// ListElections builds the WHERE clause from the non-zero filter fields.
func (db *DB) ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error) {
	var (
		conds []string
		args  []any
	)
	if filter.OpenAt != nil {
		args = append(args, filter.OpenAt.UTC())
		conds = append(conds, fmt.Sprintf("start_date <= $%d AND end_date >= $%d", len(args), len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, filter.CreatedBefore.UTC())
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + electionColumns + ` FROM elections`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id`
	return db.collectElections(ctx, query, args...)
}

func (db *DB) ListElectionsByCreator(ctx context.Context, creatorAddress string) ([]models.Election, error) {
	return db.collectElections(ctx,
		`SELECT `+electionColumns+` FROM elections WHERE LOWER(creator_address) = LOWER($1) ORDER BY id`,
		creatorAddress,
	)
}

// UpdateElectionStatus keeps stored values for nil fields through COALESCE.
func (db *DB) UpdateElectionStatus(ctx context.Context, id int64, update models.StatusUpdate) (*models.Election, error) {
	var (
		status  *string
		chainID *int64
	)
	if update.Status != "" {
		s := string(update.Status)
		status = &s
	}
	if update.ChainElectionID != nil {
		v := int64(*update.ChainElectionID)
		chainID = &v
	}

	query := `
		UPDATE elections SET
			status = COALESCE($2, status),
			contract_address = COALESCE($3, contract_address),
			chain_election_id = COALESCE($4, chain_election_id),
			transaction_hash = COALESCE($5, transaction_hash),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + electionColumns

	e, err := scanElection(db.QueryRow(ctx, query, id, status, update.ContractAddress, chainID, update.TransactionHash))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("election %d: %w", id, dbstore.ErrNotFound)
		}
		return nil, fmt.Errorf("update election %d: %w", id, err)
	}
	return e, nil
}

// DeleteElection relies on ON DELETE CASCADE to remove the election's votes.
func (db *DB) DeleteElection(ctx context.Context, id int64) (bool, error) {
	tag, err := db.GetExecutor(ctx).Exec(ctx, `DELETE FROM elections WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete election %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}
