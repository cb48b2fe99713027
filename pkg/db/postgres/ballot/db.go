package ballot

import (
	"context"
	"fmt"

	dbstore "github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB is the PostgreSQL Record Store.
type DB struct {
	postgres.Client
	Name string
}

// New connects to the ballot database and ensures its tables exist.
func New(ctx context.Context, logger *zap.Logger, name string) (*DB, error) {
	poolConfig := postgres.DefaultPoolConfig("ballot")
	client, err := postgres.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, poolConfig)
	if err != nil {
		return nil, err
	}

	ballotDB := &DB{
		Client: client,
		Name:   name,
	}

	if err := ballotDB.InitializeDB(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return ballotDB, nil
}

func (db *DB) Backend() string { return "postgres" }

// Close terminates the underlying PostgreSQL connection
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// InitializeDB ensures the required tables exist in one transaction. Users come first
// because elections reference them.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing ballot database", zap.String("database", db.Name))

	return db.BeginFunc(ctx, func(ctx context.Context) error {
		db.Logger.Info("Initialize users table", zap.String("database", db.Name))
		if err := db.initUsers(ctx); err != nil {
			return fmt.Errorf("init users: %w", err)
		}

		db.Logger.Info("Initialize elections table", zap.String("database", db.Name))
		if err := db.initElections(ctx); err != nil {
			return fmt.Errorf("init elections: %w", err)
		}

		db.Logger.Info("Initialize votes table", zap.String("database", db.Name))
		if err := db.initVotes(ctx); err != nil {
			return fmt.Errorf("init votes: %w", err)
		}
		return nil
	})
}

var _ dbstore.Store = (*DB)(nil)
