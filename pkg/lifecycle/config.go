package lifecycle

import (
	"time"

	"github.com/canopy-network/canopyvote/pkg/ledger"
)

type Config struct {
	// LedgerMode decides who submits transactions. With ModeNone clients deploy and vote
	// from their wallet and report back.
	LedgerMode ledger.Mode
	// LedgerTimeout bounds every wait for a ledger confirmation.
	LedgerTimeout time.Duration
	// PendingTTL is the age after which a pending election is considered abandoned.
	PendingTTL      time.Duration
	DeployWorkers   int
	DeployQueueSize int
	// StorageTimeout bounds compensation writes that run after the request has returned.
	StorageTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		LedgerMode:      ledger.ModeNone,
		LedgerTimeout:   60 * time.Second,
		PendingTTL:      120 * time.Second,
		DeployWorkers:   4,
		DeployQueueSize: 100,
		StorageTimeout:  10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LedgerMode == "" {
		c.LedgerMode = d.LedgerMode
	}
	if c.LedgerTimeout <= 0 {
		c.LedgerTimeout = d.LedgerTimeout
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = 2 * c.LedgerTimeout
	}
	if c.DeployWorkers <= 0 {
		c.DeployWorkers = d.DeployWorkers
	}
	if c.DeployQueueSize <= 0 {
		c.DeployQueueSize = d.DeployQueueSize
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = d.StorageTimeout
	}
	return c
}
