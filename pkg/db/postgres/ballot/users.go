package ballot

import (
	"context"
	"fmt"

	dbstore "github.com/canopy-network/canopyvote/pkg/db"
	models "github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/db/postgres"
	"github.com/jackc/pgx/v5"
)

func (db *DB) initUsers(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash BYTEA NOT NULL,
			wallet_address TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if err := db.Exec(ctx, query); err != nil {
		return err
	}
	return db.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS users_wallet_address_idx ON users (LOWER(wallet_address))`)
}

const userColumns = `id, username, password_hash, wallet_address, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.WalletAddress, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, in models.UserInput) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, wallet_address)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	u, err := scanUser(db.QueryRow(ctx, query, in.Username, in.PasswordHash, in.WalletAddress))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", in.Username, dbstore.ErrDuplicate)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return db.getUser(ctx, `WHERE id = $1`, id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.getUser(ctx, `WHERE username = $1`, username)
}

func (db *DB) GetUserByWalletAddress(ctx context.Context, address string) (*models.User, error) {
	return db.getUser(ctx, `WHERE LOWER(wallet_address) = LOWER($1)`, address)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	u, err := scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, arg))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("user %v: %w", arg, dbstore.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (db *DB) UpdateUserWallet(ctx context.Context, id int64, address string) (*models.User, error) {
	query := `
		UPDATE users SET wallet_address = $2
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(db.QueryRow(ctx, query, id, address))
	if err != nil {
		switch {
		case postgres.IsNoRows(err):
			return nil, fmt.Errorf("user %d: %w", id, dbstore.ErrNotFound)
		case postgres.IsUniqueViolation(err):
			return nil, fmt.Errorf("wallet %s: %w", address, dbstore.ErrDuplicate)
		}
		return nil, fmt.Errorf("update user wallet: %w", err)
	}
	return u, nil
}
