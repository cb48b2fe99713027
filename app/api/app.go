package api

import (
	"context"

	"github.com/canopy-network/canopyvote/app/api/types"
	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/memory"
	ballotstore "github.com/canopy-network/canopyvote/pkg/db/postgres/ballot"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/canopy-network/canopyvote/pkg/lifecycle"
	"github.com/canopy-network/canopyvote/pkg/logging"
	"github.com/canopy-network/canopyvote/pkg/redis"
	"go.uber.org/zap"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	cfg, err := types.LoadConfig()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	var store db.Store
	switch cfg.StoreBackend {
	case types.StorePostgres:
		store, err = ballotstore.New(ctx, logging.Component(logger, "store"), cfg.BallotDB)
		if err != nil {
			logger.Fatal("Unable to initialize ballot database", zap.Error(err))
		}
	default:
		store = memory.New()
		logger.Warn("Using in-memory record store - data is lost on restart")
	}

	var ledgerClient ledger.Client
	switch cfg.Lifecycle.LedgerMode {
	case ledger.ModeEthereum:
		ledgerClient, err = ledger.NewEthereum(ctx, logging.Component(logger, "ledger"), cfg.Ethereum)
		if err != nil {
			logger.Fatal("Unable to connect to the ledger", zap.Error(err))
		}
	case ledger.ModeSimulated:
		ledgerClient = ledger.NewSimulated(ledger.WithLatency(cfg.SimulatedLatency))
		logger.Info("Using simulated ledger", zap.Duration("latency", cfg.SimulatedLatency))
	default:
		logger.Info("Ledger disabled - clients submit transactions from their wallets")
	}

	events := hub.New(logging.Component(logger, "hub"))

	// Initialize Redis client for cross-instance websocket events (optional)
	var redisClient *redis.Client
	var relay *hub.Relay
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(ctx, logging.Component(logger, "redis"))
		if err != nil {
			logger.Warn("Failed to initialize Redis client - events reach local subscribers only",
				zap.Error(err))
			redisClient = nil
		} else {
			relay = hub.NewRelay(redisClient, events, logging.Component(logger, "relay"))
			go relay.Run(ctx)
			logger.Info("Redis relay started", zap.String("channel", hub.RelayChannel))
		}
	} else {
		logger.Info("Redis disabled - events reach local subscribers only")
	}

	manager, err := lifecycle.NewManager(cfg.Lifecycle, store, ledgerClient, events, logging.Component(logger, "lifecycle"))
	if err != nil {
		logger.Fatal("Unable to initialize lifecycle manager", zap.Error(err))
	}

	app := &types.App{
		Config:      cfg,
		Store:       store,
		Ledger:      ledgerClient,
		Manager:     manager,
		Hub:         events,
		Relay:       relay,
		RedisClient: redisClient,
		Logger:      logger,
	}

	if err := app.SetupScheduler(ctx, cfg.ReaperSchedule); err != nil {
		logger.Fatal("Unable to schedule the reaper", zap.Error(err), zap.String("spec", cfg.ReaperSchedule))
	}

	return app
}
