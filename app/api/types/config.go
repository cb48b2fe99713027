package types

import (
	"fmt"
	"time"

	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/canopy-network/canopyvote/pkg/lifecycle"
	"github.com/canopy-network/canopyvote/pkg/utils"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is everything the API process reads from the environment.
type Config struct {
	Addr string

	StoreBackend string
	BallotDB     string

	Ethereum         ledger.EthereumConfig
	SimulatedLatency time.Duration
	Lifecycle        lifecycle.Config

	// ReaperSchedule is a robfig/cron spec (seconds field enabled) or descriptor such as "@every 1m".
	ReaperSchedule string

	RedisEnabled bool

	AdminToken    string
	SessionSecret []byte
	SessionTTL    time.Duration
	Production    bool
}

// LoadConfig reads and validates the process configuration.
func LoadConfig() (Config, error) {
	mode, ok := ledger.ParseMode(utils.Env("LEDGER_MODE", string(ledger.ModeNone)))
	if !ok {
		return Config{}, fmt.Errorf("LEDGER_MODE must be one of none, simulated, ethereum")
	}

	ledgerTimeout := utils.EnvDuration("LEDGER_TIMEOUT", 60*time.Second)
	cfg := Config{
		Addr:         utils.Env("ADDR", ":3000"),
		StoreBackend: utils.Env("STORE_BACKEND", StoreMemory),
		BallotDB:     utils.Env("BALLOT_DB", "canopyvote"),
		Ethereum: ledger.EthereumConfig{
			RPCURL:          utils.Env("ETH_RPC_URL", ""),
			ContractAddress: utils.Env("ETH_CONTRACT_ADDRESS", ""),
			PrivateKey:      utils.Env("ETH_PRIVATE_KEY", ""),
			ChainID:         utils.EnvInt64("ETH_CHAIN_ID", 0),
			PollInterval:    utils.EnvDuration("LEDGER_POLL_INTERVAL", 2*time.Second),
		},
		SimulatedLatency: utils.EnvDuration("SIMULATED_LEDGER_LATENCY", 0),
		Lifecycle: lifecycle.Config{
			LedgerMode:      mode,
			LedgerTimeout:   ledgerTimeout,
			PendingTTL:      utils.EnvDuration("PENDING_TTL", 2*ledgerTimeout),
			DeployWorkers:   utils.EnvInt("DEPLOY_WORKERS", 4),
			DeployQueueSize: utils.EnvInt("DEPLOY_QUEUE_SIZE", 100),
			StorageTimeout:  utils.EnvDuration("STORAGE_TIMEOUT", 10*time.Second),
		},
		ReaperSchedule: utils.Env("REAPER_SCHEDULE", "@every 1m"),
		RedisEnabled:   utils.EnvBool("REDIS_ENABLED", false),
		AdminToken:     utils.Env("ADMIN_TOKEN", "devtoken"),
		SessionSecret:  []byte(utils.Env("SESSION_SECRET", "change-me-please")),
		SessionTTL:     utils.EnvDuration("SESSION_TTL", 8*time.Hour),
		Production:     utils.Env("ENVIRONMENT", "development") == "production",
	}

	switch cfg.StoreBackend {
	case StoreMemory, StorePostgres:
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND must be memory or postgres, got %q", cfg.StoreBackend)
	}
	if cfg.Production && string(cfg.SessionSecret) == "change-me-please" {
		return Config{}, fmt.Errorf("SESSION_SECRET must be set in production")
	}
	return cfg, nil
}
